package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// LineReader yields one input line per call and io.EOF at end of input.
// Implementations print their own prompt.
type LineReader interface {
	Readline() (string, error)
}

type promptReader struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
}

// NewLineReader reads lines from in, writing prompt to out before each read.
// It is used for piped input and in tests.
func NewLineReader(in io.Reader, out io.Writer, prompt string) LineReader {
	return &promptReader{
		scanner: bufio.NewScanner(in),
		out:     out,
		prompt:  prompt,
	}
}

func (r *promptReader) Readline() (string, error) {
	if _, err := fmt.Fprint(r.out, r.prompt); err != nil {
		return "", err
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// TerminalReader reads from an interactive terminal with line editing and
// in-memory history.
type TerminalReader struct {
	rl *readline.Instance
}

// NewTerminalReader sets up line editing on the process terminal.
func NewTerminalReader(prompt string) (*TerminalReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       ".exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init terminal: %w", err)
	}
	return &TerminalReader{rl: rl}, nil
}

// IsTerminal reports whether stdin and stdout are attached to a terminal.
func IsTerminal() bool {
	return readline.DefaultIsTerminal()
}

// Readline returns the next line. Ctrl-C discards the current line.
func (t *TerminalReader) Readline() (string, error) {
	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", nil
	}
	return line, err
}

// Stdout returns a writer that does not clobber the prompt.
func (t *TerminalReader) Stdout() io.Writer {
	return t.rl.Stdout()
}

// Close restores the terminal.
func (t *TerminalReader) Close() error {
	return t.rl.Close()
}
