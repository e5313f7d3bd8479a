package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Snapshot string // optional - only passes over this snapshot hash
	Pass     string // optional - one pass, with every output
}

// TracePass is one recorded pass in the listing.
type TracePass struct {
	ID           string            `json:"id"`
	Seq          int64             `json:"seq"`
	Token        string            `json:"token"`
	Status       ir.PassStatus     `json:"status"`
	SnapshotHash string            `json:"snapshot_hash"`
	Expressions  map[string]string `json:"expressions"`
	Outputs      []TraceOutput     `json:"outputs,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// TraceOutput is one port value, listed only for a single-pass trace.
type TraceOutput struct {
	Node     string `json:"node"`
	Port     string `json:"port"`
	Value    string `json:"value"`
	Terminal bool   `json:"terminal,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Passes []TracePass `json:"passes"`
	Stats  TraceStats  `json:"stats"`
}

// TraceStats holds summary statistics for the listing.
type TraceStats struct {
	Passes    int `json:"passes"`
	Completed int `json:"completed"`
	Aborted   int `json:"aborted"`
	Snapshots int `json:"snapshots"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List recorded passes",
		Long: `List the evaluation passes recorded in a database by compile --db.

Passes are listed in seq order with their terminal expressions. Aborted
passes are shown but their outputs are not a usable artifact.

Examples:
  policygraph trace --db passes.db
  policygraph trace --db passes.db --snapshot 3f2a...
  policygraph trace --db passes.db --pass 0192... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "only passes over this snapshot hash")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "show a single pass with every output")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Opening would create a missing database file.
	if _, err := os.Stat(opts.Database); err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("opening database: %v", err))
	}
	defer st.Close()

	passes, err := readTracePasses(ctx, st, opts)
	if errors.Is(err, store.ErrNotFound) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("pass not found: %s", opts.Pass))
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("reading passes: %v", err))
	}

	result := buildTraceResult(passes, opts.Pass != "")
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func readTracePasses(ctx context.Context, st *store.Store, opts *TraceOptions) ([]ir.Pass, error) {
	switch {
	case opts.Pass != "":
		p, err := st.ReadPass(ctx, opts.Pass)
		if err != nil {
			return nil, err
		}
		return []ir.Pass{p}, nil
	case opts.Snapshot != "":
		return st.ReadPassesForSnapshot(ctx, opts.Snapshot)
	default:
		return st.ReadPasses(ctx)
	}
}

// buildTraceResult converts stored passes; withOutputs lists every port
// value, not only terminal expressions.
func buildTraceResult(passes []ir.Pass, withOutputs bool) TraceResult {
	result := TraceResult{Passes: make([]TracePass, 0, len(passes))}
	snapshots := make(map[string]bool)

	for i := range passes {
		p := &passes[i]
		tp := TracePass{
			ID:           p.ID,
			Seq:          p.Seq,
			Token:        p.Token,
			Status:       p.Status,
			SnapshotHash: p.SnapshotHash,
			Expressions:  p.Expressions(),
			Warnings:     p.Warnings,
		}
		if withOutputs {
			for _, pv := range p.Outputs {
				tp.Outputs = append(tp.Outputs, TraceOutput{
					Node:     pv.Node,
					Port:     pv.Port,
					Value:    ir.FormatValue(pv.Value),
					Terminal: pv.Terminal,
				})
			}
		}
		result.Passes = append(result.Passes, tp)

		snapshots[p.SnapshotHash] = true
		if p.Status == ir.PassAborted {
			result.Stats.Aborted++
		} else {
			result.Stats.Completed++
		}
	}
	result.Stats.Passes = len(passes)
	result.Stats.Snapshots = len(snapshots)
	return result
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	if len(result.Passes) == 0 {
		fmt.Fprintln(w, "No passes recorded.")
		return nil
	}

	for _, p := range result.Passes {
		fmt.Fprintf(w, "[%d] %s %s snapshot=%s\n", p.Seq, p.Token, p.Status, shortHash(p.SnapshotHash))

		ids := make([]string, 0, len(p.Expressions))
		for id := range p.Expressions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "    %s: %s\n", id, p.Expressions[id])
		}
		for _, o := range p.Outputs {
			fmt.Fprintf(w, "    %s.%s = %s\n", o.Node, o.Port, o.Value)
		}
		for _, warning := range p.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", warning)
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "\n%d pass(es): %d completed, %d aborted, %d snapshot(s)\n", s.Passes, s.Completed, s.Aborted, s.Snapshots)
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
