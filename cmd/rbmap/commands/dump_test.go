package commands

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

func TestDumpCommand_IntegerKeys(t *testing.T) {
	t.Parallel()

	out, _, err := executeCommand(t, NewDumpCommand(), "10", "20", "30")
	require.NoError(t, err)

	want := strings.Join([]string{
		"      /B:30",
		"B:20",
		`      \B:10`,
		"len: 3  black height: 2  height: 2",
		"",
	}, "\n")

	assert.Equal(t, want, out)
}

func TestDumpCommand_DeleteFlag(t *testing.T) {
	t.Parallel()

	out, _, err := executeCommand(t, NewDumpCommand(), "10", "20", "30", "--delete", "20")
	require.NoError(t, err)

	assert.Equal(t, "      /R:30\nB:10\nlen: 2  black height: 1  height: 2\n", out)
}

func TestDumpCommand_RepeatedDeletes(t *testing.T) {
	t.Parallel()

	out, _, err := executeCommand(t, NewDumpCommand(), "1", "2", "3", "4", "5", "-d", "1", "-d", "5", "-d", "9")
	require.NoError(t, err)

	assert.Contains(t, out, "len: 3")
	assert.NotContains(t, out, ":1\n")
	assert.NotContains(t, out, ":5\n")
}

func TestDumpCommand_StringKeys(t *testing.T) {
	t.Parallel()

	out, _, err := executeCommand(t, NewDumpCommand(), "--strings", "b", "a", "c")
	require.NoError(t, err)

	assert.Equal(t, "      /R:c\nB:b\n      \\R:a\nlen: 3  black height: 1  height: 2\n", out)
}

func TestDumpCommand_InvalidKey(t *testing.T) {
	t.Parallel()

	_, _, err := executeCommand(t, NewDumpCommand(), "1", "two")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestDumpCommand_RequiresKeys(t *testing.T) {
	t.Parallel()

	_, _, err := executeCommand(t, NewDumpCommand())
	require.Error(t, err)
}

func TestRecoverInvariant_ConvertsInvariantPanic(t *testing.T) {
	t.Parallel()

	err := recoverInvariant(func() {
		panic(&rbtree.InvariantError{Reason: "root is RED", Dump: "R:1\n"})
	})

	require.ErrorIs(t, err, rbtree.ErrInvariant)
	assert.Contains(t, err.Error(), "root is RED")
	assert.Contains(t, err.Error(), "R:1")
}

// violatingObserver reports a broken tree whenever a delete completes.
type violatingObserver struct{}

func (violatingObserver) Observe(op rbtree.Op, _ rbtree.Stats) {
	if op == rbtree.OpDelete {
		panic(&rbtree.InvariantError{Reason: "spliced node is RED", Dump: "R:20\n"})
	}
}

func TestRenderDump_ReportsViolationDuringDelete(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	err := renderDump(&out, color.New(color.FgRed), slog.New(slog.DiscardHandler),
		[]int{10, 20, 30}, []int{20}, rbtree.WithObserver(violatingObserver{}))

	require.ErrorIs(t, err, rbtree.ErrInvariant)
	assert.Contains(t, err.Error(), "spliced node is RED")
	assert.Empty(t, out.String())
}

func TestRecoverInvariant_PropagatesOtherPanics(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "boom", func() {
		_ = recoverInvariant(func() { panic("boom") })
	})
}

func TestRecoverInvariant_NoPanic(t *testing.T) {
	t.Parallel()

	assert.NoError(t, recoverInvariant(func() {}))
}
