package format

import (
	"strings"
	"testing"

	"github.com/antmicro/verible/internal/lexer"
)

func TestCommentEmitterPreservesCommentBytesAndCapsBlankLines(t *testing.T) {
	t.Parallel()

	src := []byte("/*a*/   /*b*/\n\n\n//c\nfoo")
	lexed := lexer.Lex(src)
	if len(lexed.Tokens) < 2 {
		t.Fatalf("expected token stream, got %d tokens", len(lexed.Tokens))
	}

	got, err := (CommentEmitter{
		Newline:       "\n",
		MaxBlankLines: 1,
	}).EmitLeading(src, lexed.Tokens[0].Leading, 2)
	if err != nil {
		t.Fatalf("EmitLeading: %v", err)
	}

	s := string(got)
	if !strings.Contains(s, "/*a*/") || !strings.Contains(s, "/*b*/") || !strings.Contains(s, "//c") {
		t.Fatalf("EmitLeading = %q, missing expected comment text", s)
	}
	if strings.Count(s, "\n\n\n") != 0 {
		t.Fatalf("EmitLeading = %q, blank-line run exceeds MaxBlankLines=1", s)
	}
}

func TestCommentEmitterNormalizesCRLF(t *testing.T) {
	t.Parallel()

	src := []byte("// a\r\n\r\nfoo")
	lexed := lexer.Lex(src)

	got, err := (CommentEmitter{
		Newline:       "\r\n",
		MaxBlankLines: 2,
	}).EmitLeading(src, lexed.Tokens[0].Leading, 4)
	if err != nil {
		t.Fatalf("EmitLeading: %v", err)
	}

	s := string(got)
	if !strings.Contains(s, "// a") {
		t.Fatalf("EmitLeading = %q, missing comment text", s)
	}
	if !strings.HasSuffix(s, "    ") {
		t.Fatalf("EmitLeading = %q, want trailing 4-space indent before next token", s)
	}
}

func TestCommentEmitterCapsExcessBlankLines(t *testing.T) {
	t.Parallel()

	src := []byte("//x\n\n\n\n\nfoo")
	lexed := lexer.Lex(src)

	got, err := (CommentEmitter{
		Newline:       "\n",
		MaxBlankLines: 1,
	}).EmitLeading(src, lexed.Tokens[0].Leading, 0)
	if err != nil {
		t.Fatalf("EmitLeading: %v", err)
	}

	s := string(got)
	if strings.Count(s, "\n\n\n") != 0 {
		t.Fatalf("EmitLeading = %q, MaxBlankLines=1 violated", s)
	}
	if !strings.Contains(s, "//x") {
		t.Fatalf("EmitLeading = %q, missing comment text", s)
	}
}

func TestCommentEmitterEmptyTriviaReturnsNil(t *testing.T) {
	t.Parallel()

	got, err := (CommentEmitter{Newline: "\n", MaxBlankLines: 2}).EmitLeading(nil, nil, 2)
	if err != nil {
		t.Fatalf("EmitLeading: %v", err)
	}
	if got != nil {
		t.Fatalf("EmitLeading with no trivia = %q, want nil", got)
	}
}
