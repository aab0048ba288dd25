// Package format implements the SystemVerilog formatting-engine core: an
// annotator, a disabled-range resolver, a token-partition tree unwrapper, a
// per-line wrap-search layout stage, an emitter, and a verifier.
package format

import (
	"errors"
	"fmt"
	"io"

	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/text"
)

const (
	defaultColumnLimit           = 100
	defaultIndentationSpaces     = 2
	defaultWrapSpaces            = 4
	defaultOverColumnLimitPenalty = 100
	defaultMaxBlankLines         = 2
	defaultMaxSearchStates       = 50_000
)

// LineRange is an inclusive, 1-based source line interval.
type LineRange struct {
	First int
	Last  int
}

// Style holds the knobs that drive spacing, wrapping, and layout decisions.
type Style struct {
	ColumnLimit            int
	IndentationSpaces      int
	WrapSpaces             int
	OverColumnLimitPenalty int
	MaxBlankLines          int

	// FormatModulePortDeclarations gates whether port lists are reformatted
	// at all; when false they become a disabled range (see disabled.go).
	FormatModulePortDeclarations bool
}

// ExecutionControl tunes search cost and diagnostic output, mirroring the
// engine's external execution_control surface.
type ExecutionControl struct {
	// MaxSearchStates bounds the wrap-search state budget per unwrapped line.
	MaxSearchStates int

	ShowTokenPartitionTree      bool
	ShowLargestTokenPartitions  int
	ShowEquallyOptimalWrappings bool

	// AnyStop, when true and any diagnostic above is requested, makes the
	// engine write diagnostics to Diagnostics and return ErrCancelled
	// without producing formatted text.
	AnyStop bool

	// Diagnostics receives rendered diagnostic output (partition tree dumps,
	// equally-optimal-wrapping notes). Defaults to io.Discard.
	Diagnostics io.Writer
}

// Options configures formatter behavior for one Document/Source/Range call.
type Options struct {
	Style
	Execution ExecutionControl

	// EnabledLines restricts formatting to these 1-based line intervals.
	// An empty slice means the entire file is enabled.
	EnabledLines []LineRange
}

// Result is the full-document formatting result.
type Result struct {
	Output      []byte
	Changed     bool
	Diagnostics []syntax.Diagnostic

	// ResourceExhausted is set when one or more unwrapped lines hit the
	// search-state budget. Output still holds the best-effort text found so
	// far; this is a non-fatal warning, not an error.
	ResourceExhausted bool
}

// RangeResult is the range-formatting result.
type RangeResult struct {
	Edits             []text.ByteEdit
	Diagnostics       []syntax.Diagnostic
	ResourceExhausted bool
}

// UnsafeReason identifies why a request was refused as unsafe (InvalidInput).
type UnsafeReason string

const (
	// UnsafeReasonInvalidUTF8 indicates invalid UTF-8 bytes in the source input.
	UnsafeReasonInvalidUTF8 UnsafeReason = "invalid_utf8"
	// UnsafeReasonSyntaxErrors indicates fail-closed refusal due to parser/lexer error diagnostics.
	UnsafeReasonSyntaxErrors UnsafeReason = "syntax_errors"
)

// ErrUnsafeToFormat reports the InvalidInput error kind: the engine refuses
// to run at all over this input.
type ErrUnsafeToFormat struct {
	Reason  UnsafeReason
	Message string
}

func (e *ErrUnsafeToFormat) Error() string {
	if e == nil {
		return "unsafe to format"
	}
	if e.Message == "" {
		return fmt.Sprintf("unsafe to format (%s)", e.Reason)
	}
	return fmt.Sprintf("unsafe to format (%s): %s", e.Reason, e.Message)
}

// IsErrUnsafeToFormat reports whether err is a formatter safety refusal.
func IsErrUnsafeToFormat(err error) bool {
	var target *ErrUnsafeToFormat
	return AsUnsafeToFormat(err, &target)
}

// AsUnsafeToFormat reports whether err contains an ErrUnsafeToFormat.
func AsUnsafeToFormat(err error, target **ErrUnsafeToFormat) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.As(err, target)
}

// ErrDataLoss reports the DataLoss error kind: the verifier found that the
// formatted text does not re-lex to the same token stream as the input.
// Callers must fall back to the original text.
type ErrDataLoss struct {
	Message string
}

func (e *ErrDataLoss) Error() string {
	if e == nil {
		return "data loss detected, formatting aborted"
	}
	return fmt.Sprintf("data loss detected, formatting aborted: %s", e.Message)
}

// IsErrDataLoss reports whether err is a verifier data-loss failure.
func IsErrDataLoss(err error) bool {
	var target *ErrDataLoss
	return errors.As(err, &target)
}

// ErrCancelled reports the Cancelled error kind: either the caller's context
// was cancelled mid-format, or execution_control requested a diagnostic stop.
type ErrCancelled struct {
	Message string
}

func (e *ErrCancelled) Error() string {
	if e == nil {
		return "formatting cancelled"
	}
	if e.Message == "" {
		return "formatting cancelled"
	}
	return fmt.Sprintf("formatting cancelled: %s", e.Message)
}

// IsErrCancelled reports whether err is a cancellation.
func IsErrCancelled(err error) bool {
	var target *ErrCancelled
	return errors.As(err, &target)
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.ColumnLimit < 0 {
		return Options{}, fmt.Errorf("invalid ColumnLimit %d", opts.ColumnLimit)
	}
	if opts.IndentationSpaces < 0 {
		return Options{}, fmt.Errorf("invalid IndentationSpaces %d", opts.IndentationSpaces)
	}
	if opts.WrapSpaces < 0 {
		return Options{}, fmt.Errorf("invalid WrapSpaces %d", opts.WrapSpaces)
	}
	if opts.OverColumnLimitPenalty < 0 {
		return Options{}, fmt.Errorf("invalid OverColumnLimitPenalty %d", opts.OverColumnLimitPenalty)
	}
	if opts.MaxBlankLines < 0 {
		return Options{}, fmt.Errorf("invalid MaxBlankLines %d", opts.MaxBlankLines)
	}
	if opts.Execution.MaxSearchStates < 0 {
		return Options{}, fmt.Errorf("invalid MaxSearchStates %d", opts.Execution.MaxSearchStates)
	}

	if opts.ColumnLimit == 0 {
		opts.ColumnLimit = defaultColumnLimit
	}
	if opts.IndentationSpaces == 0 {
		opts.IndentationSpaces = defaultIndentationSpaces
	}
	if opts.WrapSpaces == 0 {
		opts.WrapSpaces = defaultWrapSpaces
	}
	if opts.OverColumnLimitPenalty == 0 {
		opts.OverColumnLimitPenalty = defaultOverColumnLimitPenalty
	}
	if opts.MaxBlankLines == 0 {
		opts.MaxBlankLines = defaultMaxBlankLines
	}
	if opts.Execution.MaxSearchStates == 0 {
		opts.Execution.MaxSearchStates = defaultMaxSearchStates
	}
	if opts.Execution.Diagnostics == nil {
		opts.Execution.Diagnostics = io.Discard
	}
	return opts, nil
}

// DefaultOptions returns the style the engine documents as its defaults.
// FormatModulePortDeclarations defaults to true at this layer rather than
// via the Options zero value, the same way cmd/svfmt registers its flag
// default explicitly instead of relying on a bare bool's zero value.
func DefaultOptions() Options {
	return Options{
		Style: Style{
			ColumnLimit:                  defaultColumnLimit,
			IndentationSpaces:            defaultIndentationSpaces,
			WrapSpaces:                   defaultWrapSpaces,
			OverColumnLimitPenalty:       defaultOverColumnLimitPenalty,
			MaxBlankLines:                defaultMaxBlankLines,
			FormatModulePortDeclarations: true,
		},
		Execution: ExecutionControl{
			MaxSearchStates: defaultMaxSearchStates,
			Diagnostics:     io.Discard,
		},
	}
}

func lineInEnabledRanges(ranges []LineRange, line int) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if line >= r.First && line <= r.Last {
			return true
		}
	}
	return false
}
