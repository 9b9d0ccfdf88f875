package ptok

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tendril-lang/tendril/internal/perr"
)

// operator table, longest prefix first — mirrors grammar.liftLexer's
// ordering discipline (multi-char rules listed before the single-char
// rules they prefix) but as an explicit slice the lexer walks in order,
// since our operator set is much larger and context-sensitive.
var operators = []struct {
	text string
	kind Kind
}{
	{"(?", LParenQ},
	{"(!", LParenBang},
	{"...", Spread},
	{"…", Spread},
	{"**", StarStar},
	{"->", Arrow},
	{"??", QQ},
	{"?+", QPlus},
	{"++", PlusPlus},
	{"*+", StarPlus},
	{"+?", PlusQ},
	{"*?", StarQ},
	{"<=", LtEq},
	{">=", GtEq},
	{"==", EqEq},
	{"!=", BangEq},
	{"&&", AmpAmp},
	{"||", PipePipe},
	{":>", ColonGT},
	{"..", DotDot},
	{">>", GtGt},
	{"<<", LtLt},
	{"(", LParen},
	{")", RParen},
	{"[", LBracket},
	{"]", RBracket},
	{"{", LBrace},
	{"}", RBrace},
	{",", Comma},
	{":", Colon},
	{".", Dot},
	{"&", Amp},
	{"|", Pipe},
	{"!", Bang},
	{"=", Eq},
	{"<", Lt},
	{">", Gt},
	{"+", Plus},
	{"-", Minus},
	{"*", Star},
	{"%", Percent},
	{"$", Dollar},
	{"@", At},
	{"?", Question},
	{"#", Hash},
}

var keywords = map[string]Kind{
	"true": KwTrue, "false": KwFalse, "null": KwNull,
	"where": KwWhere, "each": KwEach, "else": KwElse,
}

// Lexer produces a flat token stream from source text. Guard-expression
// span capture (the raw text between "where" and the matching close
// bracket) is the parser's job, done over this token stream — see
// past.captureGuardSpan.
type Lexer struct {
	src string
	pos int
}

func New(src string) *Lexer {
	return &Lexer{src: src}
}

// Tokenize consumes the entire source and returns its token stream, or the
// first lexical error encountered.
func Tokenize(src string) ([]Token, error) {
	l := New(src)
	var toks []Token
	for {
		t, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == EOF {
			break
		}
	}
	return toks, nil
}

func (l *Lexer) errAt(pos int, msg string) error {
	return &perr.PatternSyntax{Msg: msg, Source: l.src, Pos: pos}
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			l.pos += sz
			continue
		}
		if strings.HasPrefix(l.src[l.pos:], "//") {
			nl := strings.IndexByte(l.src[l.pos:], '\n')
			if nl < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += nl
			}
			continue
		}
		break
	}
}

// Next scans and returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Pos: start}, nil
	}
	c := l.src[l.pos]

	switch {
	case c == '"' || c == '\'':
		return l.lexString(c)
	case c == '/':
		return l.lexRegexOrSlash()
	case c >= '0' && c <= '9':
		return l.lexNumber()
	case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9':
		return l.lexNumber()
	case c == '_' && isWildStart(l.src[l.pos:]):
		return l.lexWild()
	case isIdentStart(rune(c)) || c >= utf8.RuneSelf:
		return l.lexIdentLike()
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op.text) {
			l.pos += len(op.text)
			return Token{Kind: op.kind, Value: op.text, Pos: start, Length: len(op.text)}, nil
		}
	}

	return Token{}, l.errAt(start, "unexpected character "+strconv.QuoteRune(rune(c)))
}

func isWildStart(rest string) bool {
	for _, suf := range []string{"_string", "_number", "_boolean"} {
		if strings.HasPrefix(rest, suf) {
			after := rest[len(suf):]
			if after == "" || !isIdentPart(rune(after[0])) {
				return true
			}
		}
	}
	if rest == "_" {
		return true
	}
	if len(rest) > 1 && rest[0] == '_' && !isIdentPart(rune(rest[1])) {
		return true
	}
	return false
}

func (l *Lexer) lexWild() (Token, error) {
	start := l.pos
	for _, suf := range []string{"_string", "_number", "_boolean"} {
		if strings.HasPrefix(l.src[l.pos:], suf) {
			end := l.pos + len(suf)
			if end >= len(l.src) || !isIdentPart(rune(l.src[end])) {
				l.pos = end
				return Token{Kind: Wild, Value: suf, Pos: start, Length: end - start}, nil
			}
		}
	}
	l.pos++
	return Token{Kind: Wild, Value: "_", Pos: start, Length: 1}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func (l *Lexer) lexIdentLike() (Token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(r) && r < utf8.RuneSelf {
			break
		}
		if r >= utf8.RuneSelf {
			// allow unicode letters in identifiers
			l.pos += sz
			continue
		}
		l.pos += sz
	}
	text := l.src[start:l.pos]

	// case-insensitive sigil: bareword immediately followed by /i
	if strings.HasPrefix(l.src[l.pos:], "/i") && !isIdentPart(peekRune(l.src, l.pos+2)) {
		l.pos += 2
		return Token{Kind: CaseInsensitive, Value: strings.ToLower(text), Pos: start, Length: l.pos - start}, nil
	}

	if kw, ok := keywords[text]; ok {
		return Token{Kind: kw, Value: text, Pos: start, Length: len(text)}, nil
	}
	return Token{Kind: Ident, Value: text, Pos: start, Length: len(text)}, nil
}

func peekRune(s string, pos int) rune {
	if pos >= len(s) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s[pos:])
	return r
}

func (l *Lexer) lexNumber() (Token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	text := l.src[start:l.pos]
	return Token{Kind: Number, Value: text, Pos: start, Length: len(text)}, nil
}

func (l *Lexer) lexString(quote byte) (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var out strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errAt(start, "unterminated string literal")
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.src) {
				return Token{}, l.errAt(start, "unterminated escape sequence")
			}
			esc := l.src[l.pos]
			switch esc {
			case 'n':
				out.WriteByte('\n')
				l.pos++
			case 'r':
				out.WriteByte('\r')
				l.pos++
			case 't':
				out.WriteByte('\t')
				l.pos++
			case '"':
				out.WriteByte('"')
				l.pos++
			case '\'':
				out.WriteByte('\'')
				l.pos++
			case '\\':
				out.WriteByte('\\')
				l.pos++
			case 'u':
				l.pos++
				r, err := l.readUnicodeEscape(start)
				if err != nil {
					return Token{}, err
				}
				out.WriteRune(r)
			default:
				return Token{}, l.errAt(l.pos, "unknown escape sequence \\"+string(esc))
			}
			continue
		}
		r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
		out.WriteRune(r)
		l.pos += sz
	}

	text := out.String()

	if strings.HasPrefix(l.src[l.pos:], "/i") && !isIdentPart(peekRune(l.src, l.pos+2)) {
		l.pos += 2
		return Token{Kind: CaseInsensitive, Value: strings.ToLower(text), Pos: start, Length: l.pos - start}, nil
	}

	return Token{Kind: String, Value: text, Pos: start, Length: l.pos - start}, nil
}

func (l *Lexer) readUnicodeEscape(strStart int) (rune, error) {
	if l.pos < len(l.src) && l.src[l.pos] == '{' {
		l.pos++
		digStart := l.pos
		for l.pos < len(l.src) && l.src[l.pos] != '}' {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return 0, l.errAt(strStart, "unterminated \\u{...} escape")
		}
		hex := l.src[digStart:l.pos]
		l.pos++ // }
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, l.errAt(digStart, "invalid unicode escape")
		}
		return rune(n), nil
	}
	if l.pos+4 > len(l.src) {
		return 0, l.errAt(strStart, "invalid \\uXXXX escape")
	}
	hex := l.src[l.pos : l.pos+4]
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, l.errAt(l.pos, "invalid \\uXXXX escape")
	}
	l.pos += 4
	return rune(n), nil
}

// lexRegexOrSlash scans a /body/flags regex literal. "g" and "y" flags are
// rejected (§4.1: stateful side effects make them unsupported here).
func (l *Lexer) lexRegexOrSlash() (Token, error) {
	start := l.pos
	l.pos++ // opening /
	var body strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errAt(start, "unterminated regex literal")
		}
		c := l.src[l.pos]
		if c == '/' {
			l.pos++
			break
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			body.WriteByte(c)
			body.WriteByte(l.src[l.pos+1])
			l.pos += 2
			continue
		}
		if c == '\n' {
			return Token{}, l.errAt(start, "unterminated regex literal")
		}
		body.WriteByte(c)
		l.pos++
	}
	flagsStart := l.pos
	for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
		l.pos++
	}
	flags := l.src[flagsStart:l.pos]
	for _, f := range flags {
		if f == 'g' || f == 'y' {
			return Token{}, l.errAt(flagsStart, "regex flag '"+string(f)+"' is stateful and unsupported")
		}
	}
	return Token{Kind: Regex, Value: body.String() + "\x00" + flags, Pos: start, Length: l.pos - start}, nil
}

// Source returns the full source text, so the parser can slice out a raw
// guard-expression span by token position.
func (l *Lexer) Source() string { return l.src }
