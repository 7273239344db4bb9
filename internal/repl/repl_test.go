package repl

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oda/rowstore"
	"github.com/oda/rowstore/pkg/metrics"
)

// runScript feeds commands to a fresh REPL over the table at path and
// returns the output split into lines.
func runScript(t *testing.T, path string, commands []string, opts ...Option) []string {
	t.Helper()

	table, err := rowstore.Open(path, rowstore.WithSyncOnClose(false))
	require.NoError(t, err)

	var out bytes.Buffer
	in := NewLineReader(strings.NewReader(strings.Join(commands, "\n")), &out, Prompt)
	require.NoError(t, New(table, in, &out, opts...).Run())

	return strings.Split(out.String(), "\n")
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.dat")
}

func TestInsertRetrieve(t *testing.T) {
	result := runScript(t, dbPath(t), []string{
		"insert 1 user1 person1@example.com",
		"select",
		".exit",
	})

	assert.Equal(t, []string{
		"db > Executed.",
		"db > (1, user1, person1@example.com)",
		"Executed.",
		"db > ",
	}, result)
}

func TestPrintsErrorWhenTableFull(t *testing.T) {
	var script []string
	for i := 0; i < 14; i++ {
		script = append(script, fmt.Sprintf("insert %d user%d person%d@example.com", i, i, i))
	}
	script = append(script, ".exit")

	result := runScript(t, dbPath(t), script)
	require.Len(t, result, 15)
	assert.Equal(t, "db > Executed.", result[12])
	assert.Equal(t, "db > Error: Table full.", result[13])
}

func TestInsertMaxLength(t *testing.T) {
	longUsername := strings.Repeat("a", 32)
	longEmail := strings.Repeat("a", 255)

	result := runScript(t, dbPath(t), []string{
		fmt.Sprintf("insert 1 %s %s", longUsername, longEmail),
		"select",
		".exit",
	})

	assert.Equal(t, []string{
		"db > Executed.",
		fmt.Sprintf("db > (1, %s, %s)", longUsername, longEmail),
		"Executed.",
		"db > ",
	}, result)
}

func TestPrintsErrorWhenStringsTooLong(t *testing.T) {
	longUsername := strings.Repeat("a", 33)
	longEmail := strings.Repeat("a", 256)

	result := runScript(t, dbPath(t), []string{
		fmt.Sprintf("insert 1 %s %s", longUsername, longEmail),
		"select",
		".exit",
	})

	assert.Equal(t, []string{
		"db > String is too long.",
		"db > Executed.",
		"db > ",
	}, result)
}

func TestPrintsErrorWhenIDNegative(t *testing.T) {
	result := runScript(t, dbPath(t), []string{
		"insert -1 longedok foo@bar.com",
		"select",
		".exit",
	})

	assert.Equal(t, []string{
		"db > ID must be positive.",
		"db > Executed.",
		"db > ",
	}, result)
}

func TestKeepsDataAfterClosingConnection(t *testing.T) {
	path := dbPath(t)

	result1 := runScript(t, path, []string{
		"insert 1 user1 person1@example.com",
		".exit",
	})
	assert.Equal(t, []string{
		"db > Executed.",
		"db > ",
	}, result1)

	result2 := runScript(t, path, []string{
		"select",
		".exit",
	})
	assert.Equal(t, []string{
		"db > (1, user1, person1@example.com)",
		"Executed.",
		"db > ",
	}, result2)
}

func TestEndOfInputStillFlushes(t *testing.T) {
	path := dbPath(t)

	runScript(t, path, []string{"insert 7 user7 person7@example.com"})

	result := runScript(t, path, []string{"select", ".exit"})
	assert.Equal(t, "db > (7, user7, person7@example.com)", result[0])
}

func TestUnrecognizedInput(t *testing.T) {
	result := runScript(t, dbPath(t), []string{
		"update 1 a b",
		"insert x",
		".frobnicate",
		"",
		".exit",
	})

	assert.Equal(t, []string{
		"db > Unrecognized keyword at start of 'update 1 a b'",
		"db > Syntax error. Could not parse statement.",
		"db > Unrecognized command: .frobnicate",
		"db > db > ",
	}, result)
}

func TestPrintConstants(t *testing.T) {
	result := runScript(t, dbPath(t), []string{".constants", ".exit"})

	assert.Equal(t, []string{
		"db > Constants:",
		"ROW_SIZE: 291",
		"COMMON_NODE_HEADER_SIZE: 6",
		"LEAF_NODE_HEADER_SIZE: 10",
		"LEAF_NODE_CELL_SIZE: 295",
		"LEAF_NODE_SPACE_FOR_CELLS: 4086",
		"LEAF_NODE_MAX_CELLS: 13",
		"db > ",
	}, result)
}

func TestPrintBtree(t *testing.T) {
	result := runScript(t, dbPath(t), []string{
		"insert 3 user3 person3@example.com",
		"insert 1 user1 person1@example.com",
		"insert 2 user2 person2@example.com",
		".btree",
		".exit",
	})

	assert.Equal(t, []string{
		"db > Executed.",
		"db > Executed.",
		"db > Executed.",
		"db > Tree:",
		"leaf (size 3)",
		"  - 0 : 3",
		"  - 1 : 1",
		"  - 2 : 2",
		"db > ",
	}, result)
}

func TestDuplicateKeyInSortedMode(t *testing.T) {
	table, err := rowstore.Open(dbPath(t), rowstore.WithSortedInsert(true))
	require.NoError(t, err)

	var out bytes.Buffer
	in := NewLineReader(strings.NewReader("insert 1 a a@b\ninsert 1 a a@b\n.exit"), &out, Prompt)
	require.NoError(t, New(table, in, &out).Run())

	assert.Equal(t, "db > Executed.\ndb > Error: Duplicate key.\ndb > ", out.String())
}

func TestStats(t *testing.T) {
	m := metrics.New()
	table, err := rowstore.Open(dbPath(t), rowstore.WithMetrics(m))
	require.NoError(t, err)

	var out bytes.Buffer
	in := NewLineReader(strings.NewReader("insert 1 a a@b\n.stats\n.exit"), &out, Prompt)
	require.NoError(t, New(table, in, &out, WithMetrics(m)).Run())

	assert.Contains(t, out.String(), "rowstore_table_rows_inserted_total: 1\n")
}

func TestStatsDisabled(t *testing.T) {
	result := runScript(t, dbPath(t), []string{".stats", ".exit"})
	assert.Equal(t, []string{"db > metrics disabled", "db > "}, result)
}
