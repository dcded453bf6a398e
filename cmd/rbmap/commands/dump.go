package commands

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// ErrInvalidKey is returned when an integer key cannot be parsed.
var ErrInvalidKey = errors.New("invalid integer key")

const redPrefix = "R:"

// DumpCommand holds the flags of the dump command.
type DumpCommand struct {
	deletes    []string
	stringKeys bool
}

// NewDumpCommand creates the dump command.
func NewDumpCommand() *cobra.Command {
	dc := &DumpCommand{}

	cmd := &cobra.Command{
		Use:   "dump <keys...>",
		Short: "Insert keys in order and print the resulting tree",
		Long: `Insert keys in the given order, delete the --delete keys in order, then
print the tree sideways with the right subtree on top, followed by its black height.`,
		Example: "  rbmap dump 10 20 30 40 --delete 20",
		Args:    cobra.MinimumNArgs(1),
		RunE:    dc.run,
	}

	cmd.Flags().StringArrayVarP(&dc.deletes, "delete", "d", nil, "Key to delete after inserting (repeatable)")
	cmd.Flags().BoolVar(&dc.stringKeys, "strings", false, "Treat keys as strings instead of integers")

	return cmd
}

func (dc *DumpCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	providers, err := initTelemetry(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = providers.Shutdown(cmd.Context())
	}()

	red := painter(cmd, color.FgRed, color.Bold)

	if dc.stringKeys {
		return renderDump(cmd.OutOrStdout(), red, providers.Logger, args, dc.deletes)
	}

	keys, err := parseKeys(args)
	if err != nil {
		return err
	}

	deletes, err := parseKeys(dc.deletes)
	if err != nil {
		return err
	}

	return renderDump(cmd.OutOrStdout(), red, providers.Logger, keys, deletes)
}

func parseKeys(raw []string) ([]int, error) {
	keys := make([]int, 0, len(raw))

	for _, arg := range raw {
		key, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, arg)
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func renderDump[K cmp.Ordered](
	w io.Writer, red *color.Color, logger *slog.Logger, keys, deletes []K, opts ...rbtree.Option,
) error {
	opts = append([]rbtree.Option{rbtree.WithLogger(logger), rbtree.WithCapacity(len(keys))}, opts...)
	m := rbtree.New[K, struct{}](opts...)

	var blackHeight int

	err := recoverInvariant(func() {
		for _, key := range keys {
			m.Set(key, struct{}{})
		}

		for _, key := range deletes {
			m.Delete(key)
		}

		blackHeight = m.Check()
	})
	if err != nil {
		return err
	}

	for line := range m.Dump() {
		if strings.HasPrefix(strings.TrimLeft(line, ` /\`), redPrefix) {
			line = red.Sprint(line)
		}

		_, err = fmt.Fprintln(w, line)
		if err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}

	_, err = fmt.Fprintf(w, "len: %d  black height: %d  height: %d\n", m.Len(), blackHeight, m.Height())
	if err != nil {
		return fmt.Errorf("write dump: %w", err)
	}

	logger.Debug("tree dumped", "len", m.Len(), "stats", m.Stats())

	return nil
}

// recoverInvariant runs fn and converts an invariant panic into an error.
// Any other panic propagates.
func recoverInvariant(fn func()) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		invErr, ok := recovered.(*rbtree.InvariantError)
		if !ok {
			panic(recovered)
		}

		err = fmt.Errorf("tree check failed: %w\n%s", invErr, invErr.Dump)
	}()

	fn()

	return nil
}
