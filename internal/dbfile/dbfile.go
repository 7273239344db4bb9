// Package dbfile provides positioned, lock-protected I/O on a table file.
package dbfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var (
	// ErrLocked is returned when another open handle holds the file lock.
	ErrLocked = errors.New("database file is locked by another process")
	// ErrClosed is returned for operations on a closed File.
	ErrClosed = errors.New("database file is closed")
)

// File is an exclusively locked database file.
type File struct {
	file *os.File
	fd   int
	size int64
}

// Open opens or creates the file at path and takes an exclusive,
// non-blocking advisory lock on it.
func Open(path string) (*File, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	fd := int(file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		unix.Flock(fd, unix.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &File{
		file: file,
		fd:   fd,
		size: info.Size(),
	}, nil
}

// Size returns the current file length in bytes.
func (f *File) Size() int64 {
	return f.size
}

// ReadAt fills buf from offset. It returns io.ErrUnexpectedEOF if the file
// ends before buf is full.
func (f *File) ReadAt(buf []byte, offset int64) error {
	if f.file == nil {
		return ErrClosed
	}
	for read := 0; read < len(buf); {
		n, err := unix.Pread(f.fd, buf[read:], offset+int64(read))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("pread at %d: %w", offset+int64(read), err)
		}
		if n == 0 {
			return fmt.Errorf("pread at %d: %w", offset+int64(read), io.ErrUnexpectedEOF)
		}
		read += n
	}
	return nil
}

// WriteAt writes all of buf at offset, extending the file if needed.
func (f *File) WriteAt(buf []byte, offset int64) error {
	if f.file == nil {
		return ErrClosed
	}
	for written := 0; written < len(buf); {
		n, err := unix.Pwrite(f.fd, buf[written:], offset+int64(written))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("pwrite at %d: %w", offset+int64(written), err)
		}
		written += n
	}
	if end := offset + int64(len(buf)); end > f.size {
		f.size = end
	}
	return nil
}

// Sync flushes file contents to stable storage.
func (f *File) Sync() error {
	if f.file == nil {
		return ErrClosed
	}
	if err := unix.Fsync(f.fd); err != nil {
		return fmt.Errorf("failed to fsync: %w", err)
	}
	return nil
}

// Close releases the lock and closes the file.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	if err := unix.Flock(f.fd, unix.LOCK_UN); err != nil {
		f.file.Close()
		f.file = nil
		return fmt.Errorf("failed to unlock file: %w", err)
	}
	if err := f.file.Close(); err != nil {
		f.file = nil
		return fmt.Errorf("failed to close file: %w", err)
	}
	f.file = nil
	return nil
}
