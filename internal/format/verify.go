package format

import (
	"fmt"

	"github.com/antmicro/verible/internal/lexer"
)

// verifyNoDataLoss re-lexes the emitted output and compares its token
// stream (kind + text, whitespace and comments excluded) against the
// original input's. Any mismatch, or a re-lex failure, means the formatter
// produced text that would change program meaning, and is reported as
// ErrDataLoss rather than returned to the caller.
func verifyNoDataLoss(original, formatted []byte) error {
	origSig, err := significantTokens(original)
	if err != nil {
		return &ErrDataLoss{Message: fmt.Sprintf("re-lexing original failed: %v", err)}
	}
	gotSig, err := significantTokens(formatted)
	if err != nil {
		return &ErrDataLoss{Message: fmt.Sprintf("re-lexing formatted output failed: %v", err)}
	}

	if len(origSig) != len(gotSig) {
		return &ErrDataLoss{Message: fmt.Sprintf("token count changed: %d -> %d", len(origSig), len(gotSig))}
	}
	for i := range origSig {
		if origSig[i] != gotSig[i] {
			return &ErrDataLoss{Message: fmt.Sprintf("token %d changed: %q -> %q", i, origSig[i], gotSig[i])}
		}
	}
	return nil
}

// significantTokens returns "kind:text" for every non-EOF token, in order.
// Whitespace and comments live in trivia, not tokens, so they are already
// excluded; only the lexical content that can change program meaning is
// compared.
func significantTokens(src []byte) ([]string, error) {
	res := lexer.Lex(src)
	if len(res.Diagnostics) > 0 {
		return nil, fmt.Errorf("%d lexer diagnostics", len(res.Diagnostics))
	}
	out := make([]string, 0, len(res.Tokens))
	for _, tok := range res.Tokens {
		if tok.Kind == lexer.TokenEOF {
			continue
		}
		out = append(out, fmt.Sprintf("%d:%s", tok.Kind, tok.Bytes(src)))
	}
	return out, nil
}
