package lexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/antmicro/verible/internal/text"
)

func TestTokenAndTriviaBytesUseRawSpans(t *testing.T) {
	t.Parallel()

	src := []byte("  abc")
	tr := Trivia{Kind: TriviaWhitespace, Span: text.Span{Start: 0, End: 2}}
	tok := Token{Kind: TokenIdentifier, Span: text.Span{Start: 2, End: 5}}

	if got := string(tr.Bytes(src)); got != "  " {
		t.Fatalf("Trivia.Bytes() = %q, want %q", got, "  ")
	}
	if got := string(tok.Bytes(src)); got != "abc" {
		t.Fatalf("Token.Bytes() = %q, want %q", got, "abc")
	}
}

func TestLexGoldenRepresentativeValidInput(t *testing.T) {
	t.Parallel()

	src := []byte(`module m(input a,input b); // header
  assign a = b + 1;
endmodule
`)

	res := Lex(src)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}

	got := renderTokens(src, res.Tokens)
	want := strings.TrimSpace(`
KwModule("module") lead=[]
Identifier("m") lead=[Whitespace(" ")]
LParen("(") lead=[]
KwInput("input") lead=[]
Identifier("a") lead=[Whitespace(" ")]
Comma(",") lead=[]
KwInput("input") lead=[]
Identifier("b") lead=[Whitespace(" ")]
RParen(")") lead=[]
Semi(";") lead=[]
KwAssign("assign") lead=[Whitespace(" "),LineComment("// header"),Newline("\n"),Whitespace("  ")]
Identifier("a") lead=[Whitespace(" ")]
Equal("=") lead=[Whitespace(" ")]
Identifier("b") lead=[Whitespace(" ")]
Plus("+") lead=[Whitespace(" ")]
IntLiteral("1") lead=[Whitespace(" ")]
Semi(";") lead=[]
KwEndmodule("endmodule") lead=[Newline("\n")]
EOF("") lead=[Newline("\n")]
`)
	if got != want {
		t.Fatalf("golden mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestLexMalformedInputsEmitErrorTokensAndDiagnostics(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		src          []byte
		wantDiagCode DiagnosticCode
	}{
		"unterminated string": {
			src:          []byte(`"abc`),
			wantDiagCode: DiagnosticUnterminatedString,
		},
		"unterminated block comment": {
			src:          []byte("/* abc"),
			wantDiagCode: DiagnosticUnterminatedBlockComment,
		},
		"invalid byte": {
			src:          []byte{0xff},
			wantDiagCode: DiagnosticInvalidByte,
		},
		"empty sized literal digits": {
			src:          []byte(`8'h`),
			wantDiagCode: DiagnosticInvalidNumericLiteral,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res := Lex(tc.src)
			if len(res.Diagnostics) == 0 {
				t.Fatalf("expected diagnostics for %q", tc.src)
			}
			if res.Diagnostics[0].Code != tc.wantDiagCode {
				t.Fatalf("diagnostic code = %s, want %s", res.Diagnostics[0].Code, tc.wantDiagCode)
			}
			if len(res.Tokens) == 0 || res.Tokens[0].Kind != TokenError {
				t.Fatalf("expected first token to be TokenError, got %+v", res.Tokens)
			}
			if !res.Tokens[0].Flags.Has(TokenFlagMalformed) {
				t.Fatalf("expected malformed flag on error token, got %v", res.Tokens[0].Flags)
			}
			if got := res.Tokens[len(res.Tokens)-1].Kind; got != TokenEOF {
				t.Fatalf("expected EOF token at end, got %s", got)
			}
		})
	}
}

func TestLexSizedLiteralsAndOperators(t *testing.T) {
	t.Parallel()

	src := []byte(`assign y = (a <<< 2) >>> 1 === 8'hFF ? 4'b10_01 : a+:b;`)
	res := Lex(src)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}

	var kinds []TokenKind
	for _, tok := range res.Tokens {
		if tok.Kind == TokenEOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}

	wantHasShl, wantHasShr, wantHasCaseEq, wantHasPlusColon := false, false, false, false
	for _, k := range kinds {
		switch k {
		case TokenAShl:
			wantHasShl = true
		case TokenAShr:
			wantHasShr = true
		case TokenCaseEq:
			wantHasCaseEq = true
		case TokenPlusColon:
			wantHasPlusColon = true
		}
	}
	if !wantHasShl || !wantHasShr || !wantHasCaseEq || !wantHasPlusColon {
		t.Fatalf("missing expected multi-char operators in %v", kinds)
	}
}

func TestLexEscapedAndSystemIdentifiers(t *testing.T) {
	t.Parallel()

	src := []byte(`initial $display("%d", \escaped+id );`)
	res := Lex(src)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}

	var sawSystem, sawEscaped bool
	for _, tok := range res.Tokens {
		switch tok.Kind {
		case TokenSystemIdentifier:
			sawSystem = true
			if string(tok.Bytes(src)) != "$display" {
				t.Fatalf("system identifier text = %q", tok.Bytes(src))
			}
		case TokenEscapedIdentifier:
			sawEscaped = true
			if string(tok.Bytes(src)) != `\escaped+id` {
				t.Fatalf("escaped identifier text = %q", tok.Bytes(src))
			}
		}
	}
	if !sawSystem || !sawEscaped {
		t.Fatalf("expected both system and escaped identifiers, tokens=%v", res.Tokens)
	}
}

func TestLexPreprocessorDirectiveIsOneToken(t *testing.T) {
	t.Parallel()

	src := []byte("`define WIDTH 8\nmodule m; endmodule\n")
	res := Lex(src)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}
	if res.Tokens[0].Kind != TokenPreprocessor {
		t.Fatalf("expected first token to be Preprocessor, got %s", res.Tokens[0].Kind)
	}
	if got := string(res.Tokens[0].Bytes(src)); got != "`define WIDTH 8" {
		t.Fatalf("preprocessor token text = %q", got)
	}
}

func TestLexNoPanicsOnMalformedCorpusSamples(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		[]byte(`"`),
		[]byte(`/*`),
		[]byte(`8'h`),
		{0xff, '{', 0xfe},
		[]byte("module X (\n input string name = \"a\n endmodule\n"),
	}

	for _, src := range inputs {
		t.Run(fmt.Sprintf("%q", src), func(t *testing.T) {
			t.Parallel()
			_ = Lex(src)
		})
	}
}

func renderTokens(src []byte, tokens []Token) string {
	lines := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		lines = append(lines, fmt.Sprintf("%s(%q) lead=%s", tok.Kind, tok.Bytes(src), renderLeading(src, tok.Leading)))
	}
	return strings.Join(lines, "\n")
}

func renderLeading(src []byte, trivia []Trivia) string {
	if len(trivia) == 0 {
		return "[]"
	}

	parts := make([]string, 0, len(trivia))
	for _, tr := range trivia {
		parts = append(parts, fmt.Sprintf("%s(%q)", tr.Kind, tr.Bytes(src)))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
