package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2/maybe"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/antmicro/verible/internal/format"
	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

const (
	exitOK       = 0
	exitCheck    = 1
	exitUnsafe   = 2
	exitInternal = 3
)

// cliOptions collects the flags cobra/pflag bind, before they are resolved
// into a format.Options (and merged with any .svfmt.yaml config).
type cliOptions struct {
	write            bool
	check            bool
	stdin            bool
	stdout           bool
	assumeFilename   string
	configPath       string
	columnLimit      int
	indentSpaces     int
	wrapSpaces       int
	maxBlankLines    int
	noFormatPorts    bool
	rangeSpec        string
	maxSearchStates  int
	showPartitionTree bool
	showLargestN      int
	showEqualWraps    bool
	anyStop           bool
	debugTokens       bool
	debugCST          bool
}

// run builds and executes a cobra command over args, returning a process
// exit code, with cobra doing the flag parsing underneath.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	var opts cliOptions
	exitCode := exitOK

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	cmd := &cobra.Command{
		Use:           "svfmt [files...]",
		Short:         "Format SystemVerilog source files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, fileArgs []string) error {
			code, err := execute(ctx, stdin, stdout, stderr, log, opts, fileArgs)
			exitCode = code
			return err
		},
	}
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.write, "write", "w", false, "write result to the source file instead of stdout")
	flags.BoolVar(&opts.check, "check", false, "exit nonzero if any input is not already formatted, without writing")
	flags.BoolVar(&opts.stdin, "stdin", false, "read source from stdin")
	flags.BoolVar(&opts.stdout, "stdout", false, "write result to stdout even when --write is set")
	flags.StringVar(&opts.assumeFilename, "assume-filename", "", "filename to report for --stdin input")
	flags.StringVar(&opts.configPath, "config", "", "path to a .svfmt.yaml config file (default: ./.svfmt.yaml if present)")
	flags.IntVar(&opts.columnLimit, "column-limit", 0, "line length budget (0 uses the configured/default value)")
	flags.IntVar(&opts.indentSpaces, "indentation-spaces", 0, "spaces per indentation level (0 uses the configured/default value)")
	flags.IntVar(&opts.wrapSpaces, "wrap-spaces", 0, "continuation indent added on a wrapped line (0 uses the configured/default value)")
	flags.IntVar(&opts.maxBlankLines, "max-blank-lines", 0, "maximum consecutive blank lines to preserve (0 uses the configured/default value)")
	flags.BoolVar(&opts.noFormatPorts, "no-format-module-ports", false, "treat module port lists as a disabled range")
	flags.StringVar(&opts.rangeSpec, "range", "", "format only the bytes in start:end instead of the whole file, and print the edit")
	flags.IntVar(&opts.maxSearchStates, "max-search-states", 0, "wrap-search state budget per line (0 uses the configured/default value)")
	flags.BoolVar(&opts.showPartitionTree, "show-token-partition-tree", false, "dump the token-partition tree to stderr")
	flags.IntVar(&opts.showLargestN, "show-largest-token-partitions", 0, "dump the N largest leaf partitions by token count")
	flags.BoolVar(&opts.showEqualWraps, "show-equally-optimal-wrappings", false, "dump every tied-optimal wrap path for each line")
	flags.BoolVar(&opts.anyStop, "any-stop", false, "stop and emit only diagnostics when any diagnostic dump above is requested")
	flags.BoolVar(&opts.debugTokens, "debug-tokens", false, "dump the lexed token stream to stderr")
	flags.BoolVar(&opts.debugCST, "debug-cst", false, "dump the parsed syntax tree to stderr")

	if err := cmd.Execute(); err != nil {
		if exitCode == exitOK {
			exitCode = exitInternal
		}
		fmt.Fprintln(stderr, err)
	}
	return exitCode
}

func execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, log *logrus.Logger, opts cliOptions, fileArgs []string) (int, error) {
	if opts.stdin && len(fileArgs) > 0 {
		return exitInternal, errors.New("--stdin cannot be combined with file arguments")
	}
	if opts.write && opts.stdin {
		return exitInternal, errors.New("--write cannot be combined with --stdin")
	}
	if opts.check && opts.write {
		return exitInternal, errors.New("--check cannot be combined with --write")
	}
	if !opts.stdin && len(fileArgs) == 0 {
		return exitInternal, errors.New("no input: pass file arguments or --stdin")
	}

	fileOpts, err := resolveOptions(opts)
	if err != nil {
		return exitInternal, err
	}

	sources, err := collectSources(stdin, opts, fileArgs)
	if err != nil {
		return exitInternal, err
	}

	anyUnformatted := false
	for _, src := range sources {
		code, changed, err := processSource(ctx, stdout, stderr, log, opts, fileOpts, src)
		if err != nil {
			return code, err
		}
		if changed {
			anyUnformatted = true
		}
	}

	if opts.check && anyUnformatted {
		return exitCheck, nil
	}
	return exitOK, nil
}

type namedSource struct {
	uri  string
	path string // empty for stdin
	data []byte
}

func collectSources(stdin io.Reader, opts cliOptions, fileArgs []string) ([]namedSource, error) {
	if opts.stdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		uri := opts.assumeFilename
		if uri == "" {
			uri = "<stdin>"
		}
		return []namedSource{{uri: uri, data: data}}, nil
	}

	out := make([]namedSource, 0, len(fileArgs))
	for _, path := range fileArgs {
		data, err := os.ReadFile(path) //nolint:gosec // CLI intentionally formats user-specified files.
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		out = append(out, namedSource{uri: path, path: path, data: data})
	}
	return out, nil
}

func resolveOptions(opts cliOptions) (format.Options, error) {
	cfg, err := loadFileConfig(opts.configPath)
	if err != nil {
		return format.Options{}, fmt.Errorf("loading config: %w", err)
	}

	fo := format.Options{
		Style: format.Style{
			ColumnLimit:                  opts.columnLimit,
			IndentationSpaces:            opts.indentSpaces,
			WrapSpaces:                   opts.wrapSpaces,
			MaxBlankLines:                opts.maxBlankLines,
			FormatModulePortDeclarations: !opts.noFormatPorts,
		},
		Execution: format.ExecutionControl{
			MaxSearchStates:             opts.maxSearchStates,
			ShowTokenPartitionTree:      opts.showPartitionTree,
			ShowLargestTokenPartitions:  opts.showLargestN,
			ShowEquallyOptimalWrappings: opts.showEqualWraps,
			AnyStop:                     opts.anyStop,
		},
	}
	fo = cfg.applyTo(fo)
	return fo, nil
}

func processSource(ctx context.Context, stdout, stderr io.Writer, log *logrus.Logger, opts cliOptions, fo format.Options, src namedSource) (int, bool, error) {
	entry := log.WithField("file", src.uri)

	if opts.rangeSpec != "" {
		return processRange(ctx, stdout, entry, fo, opts.rangeSpec, src)
	}

	fo.Execution.Diagnostics = stderr
	res, err := format.Source(ctx, src.data, src.uri, fo)
	if err != nil {
		return diagnoseFormatError(entry, err)
	}

	if opts.debugTokens || opts.debugCST {
		dumpDebugViews(stderr, entry, src, opts)
	}

	entry = entry.WithField("search_states_exhausted", res.ResourceExhausted)
	if res.ResourceExhausted {
		entry.Warn("wrap-search budget exhausted on one or more lines; output is best-effort")
	}
	for _, d := range res.Diagnostics {
		logDiagnostic(entry, src.data, d)
	}

	if opts.check {
		return exitOK, res.Changed, nil
	}

	switch {
	case opts.write && !opts.stdout:
		if src.path == "" {
			return exitInternal, false, errors.New("--write requires a file argument, not --stdin")
		}
		if err := maybe.WriteFile(src.path, res.Output, 0o644); err != nil {
			return exitInternal, false, fmt.Errorf("writing %s: %w", src.path, err)
		}
	default:
		if _, err := stdout.Write(res.Output); err != nil {
			return exitInternal, false, fmt.Errorf("writing output: %w", err)
		}
	}

	return exitOK, res.Changed, nil
}

func processRange(ctx context.Context, stdout io.Writer, entry *logrus.Entry, fo format.Options, spec string, src namedSource) (int, bool, error) {
	span, err := parseRangeSpec(spec)
	if err != nil {
		return exitInternal, false, err
	}

	tree, err := syntax.Parse(ctx, src.data, syntax.ParseOptions{URI: src.uri})
	if err != nil {
		return exitInternal, false, fmt.Errorf("parsing %s: %w", src.uri, err)
	}

	res, err := format.Range(ctx, tree, span, fo)
	if err != nil {
		return diagnoseFormatError(entry, err)
	}
	for _, e := range res.Edits {
		if _, err := fmt.Fprintf(stdout, "%d:%d\n", e.Span.Start, e.Span.End); err != nil {
			return exitInternal, false, err
		}
		if _, err := stdout.Write(e.NewText); err != nil {
			return exitInternal, false, err
		}
		if _, err := stdout.Write([]byte("\n")); err != nil {
			return exitInternal, false, err
		}
	}
	return exitOK, len(res.Edits) > 0, nil
}

func parseRangeSpec(spec string) (text.Span, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return text.Span{}, fmt.Errorf("invalid --range %q, want start:end", spec)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return text.Span{}, fmt.Errorf("invalid --range start %q: %w", parts[0], err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return text.Span{}, fmt.Errorf("invalid --range end %q: %w", parts[1], err)
	}
	return text.NewSpan(text.ByteOffset(start), text.ByteOffset(end))
}

func diagnoseFormatError(entry *logrus.Entry, err error) (int, bool, error) {
	var unsafe *format.ErrUnsafeToFormat
	if format.AsUnsafeToFormat(err, &unsafe) {
		entry.WithField("reason", unsafe.Reason).Error("refused to format unsafe input")
		return exitUnsafe, false, err
	}
	if format.IsErrDataLoss(err) {
		entry.Error("verifier rejected output: data loss detected, original file left untouched")
		return exitUnsafe, false, err
	}
	if format.IsErrCancelled(err) {
		entry.Warn("formatting cancelled")
		return exitInternal, false, err
	}
	entry.WithError(err).Error("internal formatting error")
	return exitInternal, false, err
}

// diagnosticDisplayText renders one syntax.Diagnostic as a human-readable
// line plus any related-location notes.
func diagnosticDisplayText(src []byte, d syntax.Diagnostic) (string, []string) {
	line := "?"
	if li := text.NewLineIndex(src); li != nil {
		if pt, err := li.OffsetToPoint(d.Span.Start); err == nil {
			line = strconv.Itoa(pt.Line + 1)
		}
	}

	severity := "error"
	switch d.Severity {
	case syntax.SeverityWarning:
		severity = "warning"
	case syntax.SeverityInfo:
		severity = "info"
	}

	head := fmt.Sprintf("%s:%s: [%s] %s", severity, line, d.Code, d.Message)

	notes := make([]string, 0, len(d.Related))
	for _, rel := range d.Related {
		notes = append(notes, fmt.Sprintf("  note: %s", rel.Message))
	}
	return head, notes
}

func logDiagnostic(entry *logrus.Entry, src []byte, d syntax.Diagnostic) {
	head, notes := diagnosticDisplayText(src, d)
	fields := logrus.Fields{"code": d.Code, "source": d.Source}
	switch d.Severity {
	case syntax.SeverityWarning:
		entry.WithFields(fields).Warn(head)
	case syntax.SeverityInfo:
		entry.WithFields(fields).Info(head)
	default:
		entry.WithFields(fields).Error(head)
	}
	for _, n := range notes {
		entry.Debug(n)
	}
}

func dumpDebugViews(stderr io.Writer, entry *logrus.Entry, src namedSource, opts cliOptions) {
	ctx := context.Background()
	tree, err := syntax.Parse(ctx, src.data, syntax.ParseOptions{URI: src.uri})
	if err != nil {
		entry.WithError(err).Error("debug dump: parse failed")
		return
	}
	if opts.debugTokens {
		fmt.Fprintf(stderr, "-- tokens: %s --\n", src.uri)
		for _, tok := range tree.Tokens {
			fmt.Fprintf(stderr, "%s %q\n", tok.Kind, string(tok.Bytes(src.data)))
		}
	}
	if opts.debugCST {
		fmt.Fprintf(stderr, "-- cst: %s --\n", src.uri)
		for i := range tree.Nodes {
			if i == 0 {
				continue
			}
			fmt.Fprintf(stderr, "%s\n", tree.Nodes[i].String())
		}
	}
}
