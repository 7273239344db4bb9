// Package statement parses and validates the insert and select commands
// accepted by the command loop.
package statement

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/oda/rowstore"
	"github.com/oda/rowstore/internal/row"
)

// Type identifies the kind of statement.
type Type int

const (
	Insert Type = iota
	Select
)

func (t Type) String() string {
	switch t {
	case Insert:
		return "insert"
	case Select:
		return "select"
	default:
		return "unknown"
	}
}

var (
	ErrUnrecognized  = errors.New("unrecognized statement")
	ErrSyntax        = errors.New("syntax error")
	ErrStringTooLong = errors.New("string is too long")
	ErrNegativeID    = errors.New("id must be positive")
)

// Statement is a parsed, validated command.
type Statement struct {
	Type Type
	// Row is set for Insert only.
	Row row.Row
}

// Prepare parses input. Insert statements are validated here so that the
// storage engine never sees an id or string it cannot store.
func Prepare(input string) (Statement, error) {
	switch {
	case strings.HasPrefix(input, "insert"):
		return prepareInsert(input)
	case strings.HasPrefix(input, "select"):
		return Statement{Type: Select}, nil
	default:
		return Statement{}, fmt.Errorf("%w: %q", ErrUnrecognized, input)
	}
}

// prepareInsert parses "insert <id> <username> <email>".
func prepareInsert(input string) (Statement, error) {
	fields := strings.Fields(input)
	if len(fields) < 4 || fields[0] != "insert" {
		return Statement{}, fmt.Errorf("%w: %q", ErrSyntax, input)
	}

	id, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return Statement{}, fmt.Errorf("%w: bad id %q", ErrSyntax, fields[1])
	}

	return NewInsert(id, fields[2], fields[3])
}

// NewInsert validates an insert built from already-split values.
func NewInsert(id int64, username, email string) (Statement, error) {
	if id < 0 {
		return Statement{}, ErrNegativeID
	}
	if id > math.MaxInt32 {
		return Statement{}, fmt.Errorf("%w: id %d out of range", ErrSyntax, id)
	}
	if len(username) > row.UsernameSize || len(email) > row.EmailSize {
		return Statement{}, ErrStringTooLong
	}

	return Statement{
		Type: Insert,
		Row:  row.New(uint32(id), username, email),
	}, nil
}

// Execute runs the statement against table. Select prints one row per line
// to out.
func (s Statement) Execute(table *rowstore.Table, out io.Writer) error {
	switch s.Type {
	case Insert:
		return table.Insert(s.Row)
	case Select:
		for r, err := range table.Rows() {
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(out, r); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: type %d", ErrUnrecognized, s.Type)
	}
}
