// Package row encodes the fixed-width record stored in every table cell.
package row

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// UsernameSize is the fixed width of the username column.
	UsernameSize = 32
	// EmailSize is the fixed width of the email column.
	EmailSize = 255

	IDSize = 4

	IDOffset       = 0
	UsernameOffset = IDOffset + IDSize
	EmailOffset    = UsernameOffset + UsernameSize

	// Size is the serialized size of a Row: 4 + 32 + 255 = 291 bytes.
	Size = IDSize + UsernameSize + EmailSize
)

// Row is one logical record of the table.
// String columns are stored zero-padded to their fixed width.
type Row struct {
	ID       uint32
	Username [UsernameSize]byte
	Email    [EmailSize]byte
}

// New builds a Row from already-validated values.
// Strings longer than their column are truncated; callers are expected to
// have rejected them before getting here.
func New(id uint32, username, email string) Row {
	r := Row{ID: id}
	copy(r.Username[:], username)
	copy(r.Email[:], email)
	return r
}

// Serialize writes the row into buf, which must hold at least Size bytes.
func (r *Row) Serialize(buf []byte) {
	_ = buf[Size-1]
	binary.LittleEndian.PutUint32(buf[IDOffset:IDOffset+IDSize], r.ID)
	copy(buf[UsernameOffset:UsernameOffset+UsernameSize], r.Username[:])
	copy(buf[EmailOffset:EmailOffset+EmailSize], r.Email[:])
}

// Deserialize reads the row from buf, which must hold at least Size bytes.
func (r *Row) Deserialize(buf []byte) {
	_ = buf[Size-1]
	r.ID = binary.LittleEndian.Uint32(buf[IDOffset : IDOffset+IDSize])
	copy(r.Username[:], buf[UsernameOffset:UsernameOffset+UsernameSize])
	copy(r.Email[:], buf[EmailOffset:EmailOffset+EmailSize])
}

// UsernameString returns the username up to the first zero byte.
func (r *Row) UsernameString() string {
	return cString(r.Username[:])
}

// EmailString returns the email up to the first zero byte.
func (r *Row) EmailString() string {
	return cString(r.Email[:])
}

// String formats the row the way select prints it.
func (r Row) String() string {
	return fmt.Sprintf("(%d, %s, %s)", r.ID, r.UsernameString(), r.EmailString())
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
