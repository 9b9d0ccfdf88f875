package perr

import (
	"strings"
	"testing"
)

func TestPatternSyntaxErrorIncludesMessageAndSnippet(t *testing.T) {
	err := &PatternSyntax{
		Msg:      "unexpected token",
		Source:   "$x where\n$y > 1",
		Pos:      8,
		Expected: []string{"Ident", "Number"},
	}
	msg := err.Error()
	if !strings.Contains(msg, "unexpected token") {
		t.Fatalf("expected message to contain the reason, got %q", msg)
	}
	if !strings.Contains(msg, "expected one of: Ident, Number") {
		t.Fatalf("expected message to list expected tokens, got %q", msg)
	}
	if !strings.Contains(msg, "$x where") {
		t.Fatalf("expected message to contain the offending line, got %q", msg)
	}
}

func TestSnippetPointsCaretAtColumnWithinLine(t *testing.T) {
	src := "abc\ndefgh\nij"
	snippet := Snippet(src, 6) // 'f' in "defgh", column 2 of that line
	lines := strings.Split(snippet, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected a two-line snippet (text + caret), got %q", snippet)
	}
	if lines[0] != "defgh" {
		t.Fatalf("expected the snippet's line to be %q, got %q", "defgh", lines[0])
	}
	caretCol := strings.IndexByte(lines[1], '^')
	if caretCol != 2 {
		t.Fatalf("expected caret at column 2, got %d (%q)", caretCol, lines[1])
	}
}

func TestSnippetClampsOutOfRangePositions(t *testing.T) {
	src := "abc"
	if s := Snippet(src, -5); !strings.Contains(s, "abc") {
		t.Fatalf("expected a negative pos to clamp to the start, got %q", s)
	}
	if s := Snippet(src, 1000); !strings.Contains(s, "abc") {
		t.Fatalf("expected an overlong pos to clamp to the end, got %q", s)
	}
}

func TestPatternEvaluateError(t *testing.T) {
	err := &PatternEvaluate{Msg: "GroupBind at top level"}
	if !strings.Contains(err.Error(), "GroupBind at top level") {
		t.Fatalf("expected the message to be included, got %q", err.Error())
	}
}

func TestPatternAmbiguousError(t *testing.T) {
	err := &PatternAmbiguous{Msg: "step budget exceeded"}
	if !strings.Contains(err.Error(), "step budget exceeded") {
		t.Fatalf("expected the message to be included, got %q", err.Error())
	}
}
