package format

import (
	"context"
	"testing"

	"github.com/antmicro/verible/internal/syntax"
	"github.com/antmicro/verible/internal/testutil"
	"github.com/antmicro/verible/internal/text"
)

func FuzzDocumentAndRange(f *testing.F) {
	addFormatSeeds(f)

	f.Fuzz(func(t *testing.T, src []byte) {
		t.Helper()
		if len(src) > 512*1024 {
			t.Skip()
		}

		tree, err := syntax.Parse(context.Background(), src, syntax.ParseOptions{URI: "fuzz.sv"})
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}

		res, err := Document(context.Background(), tree, Options{})
		if err != nil && !IsErrUnsafeToFormat(err) {
			t.Fatalf("Document unexpected error: %v", err)
		}
		if err == nil {
			// Idempotence: formatting already-formatted output must be a no-op.
			tree2, perr := syntax.Parse(context.Background(), res.Output, syntax.ParseOptions{URI: "fuzz.sv"})
			if perr == nil {
				res2, ferr := Document(context.Background(), tree2, Options{})
				if ferr == nil && string(res2.Output) != string(res.Output) {
					t.Fatalf("formatting is not idempotent:\nfirst:\n%s\nsecond:\n%s", res.Output, res2.Output)
				}
			}
		}

		if len(src) == 0 {
			return
		}
		r := fuzzSpan(src)
		_, err = Range(context.Background(), tree, r, Options{})
		if err != nil && !IsErrUnsafeToFormat(err) {
			t.Fatalf("Range unexpected error: %v", err)
		}
	})
}

func addFormatSeeds(f *testing.F) {
	f.Helper()

	for _, s := range [][]byte{
		nil,
		[]byte(""),
		[]byte("module m;\nendmodule\n"),
		[]byte("module m(input a, output b);\n  assign b = a;\nendmodule\n"),
		[]byte("module m;\n  initial $display(\"unterminated\nendmodule\n"), // unsafe refusal expected
		[]byte("/* unterminated block comment"),                            // unsafe refusal expected
		[]byte("module m;\n  wire a;\n\n  // comment\n  wire b;\nendmodule\n"),
		{0xff, 0xfe, 0xfd}, // invalid UTF-8 -> unsafe refusal expected
	} {
		f.Add(s)
	}

	if cases, err := testutil.FormatGoldenCases(); err == nil {
		for _, c := range cases {
			f.Add(testutil.ReadFile(f, c.InputPath))
		}
	}
}

func fuzzSpan(src []byte) text.Span {
	if len(src) == 0 {
		return text.Span{}
	}
	start := 0
	end := len(src)
	if len(src) >= 1 {
		start = int(src[0]) % len(src)
	}
	if len(src) >= 2 {
		end = int(src[1]) % (len(src) + 1)
	}
	if end < start {
		start, end = end, start
	}
	return text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(end)}
}
