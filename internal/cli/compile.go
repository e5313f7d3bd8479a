package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/engine"
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Demo     bool
	Database string // overrides store.path from config
	Node     string // print only this node's output
}

// CompilationResult is the settled pass reduced to what a user reads.
type CompilationResult struct {
	Graph       string            `json:"graph,omitempty"`
	Source      string            `json:"source"`
	Seq         int64             `json:"seq"`
	Token       string            `json:"token"`
	Status      ir.PassStatus     `json:"status"`
	Expressions map[string]string `json:"expressions"`
	Warnings    []string          `json:"warnings,omitempty"`
	Recorded    string            `json:"recorded,omitempty"` // database path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [graph-path]",
		Short: "Compile a graph to policy expressions",
		Long: `Load a graph definition, settle it and print the policy expression of
every terminal node.

graph-path is a directory of CUE files, a single .cue file or an .hcl
file. With --db, every pass is recorded and can be listed with trace.

Examples:
  policygraph compile ./graphs/vault
  policygraph compile vault.hcl --node root
  policygraph compile --demo --db passes.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCompile(cmd.Context(), opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "compile the built-in demo graph")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record passes in this SQLite database")
	cmd.Flags().StringVar(&opts.Node, "node", "", "print only this node's output")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	switch {
	case opts.Demo && path != "":
		return NewExitError(ExitCommandError, "--demo takes no graph path")
	case !opts.Demo && path == "":
		return NewExitError(ExitCommandError, "a graph path or --demo is required")
	}

	registry := opts.registry()
	var loaded *LoadResult
	if opts.Demo {
		loaded = DemoGraph(registry)
	} else {
		var err error
		loaded, err = LoadGraph(path, registry)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		formatter.VerboseLog("Loaded %d node(s) from %s (%s)", len(loaded.Graph.Nodes), path, loaded.Source)
	}

	if opts.Node != "" && loaded.Graph.Node(opts.Node) == nil {
		return outputCommandError(formatter, ErrCodeUnknownNode, fmt.Sprintf("unknown node %q", opts.Node))
	}

	logger := opts.logger()
	ed := editor.New(registry, loaded.Graph, editor.WithLogger(logger))
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxSettlePasses(opts.config().Engine.MaxSettlePasses),
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.config().Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("opening database: %v", err))
		}
		defer st.Close()

		clock, err := resumeClock(ctx, st)
		if err != nil {
			return outputCommandError(formatter, ErrCodeStore, fmt.Sprintf("reading pass history: %v", err))
		}
		engineOpts = append(engineOpts, engine.WithStore(st), engine.WithClock(clock))
		formatter.VerboseLog("Recording passes in %s from seq %d", dbPath, clock.Current()+1)
	}

	eng := engine.New(ed, registry, engineOpts...)
	pass, err := eng.Settle(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("evaluation failed: %v", err))
	}

	result := CompilationResult{
		Graph:       loaded.Graph.Name,
		Source:      loaded.Source,
		Seq:         pass.Seq,
		Token:       pass.Token,
		Status:      pass.Status,
		Expressions: pass.Expressions(),
		Warnings:    pass.Warnings,
		Recorded:    dbPath,
	}
	if opts.Node != "" {
		result.Expressions = nodeExpression(ed.Node(opts.Node), pass)
	}
	return outputCompileSuccess(formatter, result)
}

// resumeClock continues numbering after the latest recorded pass.
func resumeClock(ctx context.Context, st *store.Store) (*engine.Clock, error) {
	latest, err := st.LatestPass(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return engine.NewClock(), nil
	}
	if err != nil {
		return nil, err
	}
	return engine.NewClockAt(latest.Seq), nil
}

// nodeExpression picks the node's output value from the pass, preferring a
// policy output.
func nodeExpression(node *ir.Node, pass *ir.Pass) map[string]string {
	out := map[string]string{}
	if node == nil {
		return out
	}
	for _, socket := range []ir.Socket{ir.SocketPolicy, ir.SocketNumber} {
		for _, o := range node.Outputs {
			if o.Socket != socket {
				continue
			}
			if v, ok := pass.Output(node.ID, o.Name); ok {
				out[node.ID] = ir.FormatValue(v)
				return out
			}
		}
	}
	return out
}

func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	name := result.Graph
	if name == "" {
		name = result.Source
	}
	fmt.Fprintf(w, "✓ Compiled %s (pass %d, %s)\n\n", name, result.Seq, result.Status)

	ids := make([]string, 0, len(result.Expressions))
	for id := range result.Expressions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %s\n", id, result.Expressions[id])
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if result.Recorded != "" {
		fmt.Fprintf(w, "\nRecorded pass %s in %s\n", result.Token, result.Recorded)
	}
	return nil
}

// outputLoadError reports a load failure with its source position.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message, pos := loadErrorParts(err)
	var details any
	if pos.IsValid() {
		details = pos
		if !formatter.JSON() {
			message = fmt.Sprintf("%s: %s", pos, message)
		}
	}
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
