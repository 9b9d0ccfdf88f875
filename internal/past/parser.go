// Parser: tokens to AST (spec §4.2). Precedence, tightest first:
// ( ) > quantifier suffix > dot/breadcrumb > adjacency (Seq) > & (reserved,
// unused) > | (Alt). Inside arrays and objects adjacency is a separator,
// not an operator, so container item lists call into the "no-adjacency"
// entry point rather than parseSeq.
//
// Grounded on the teacher's recursive-descent participle internals in
// spirit (grammar.go builds a similar AST shape via struct tags) but
// hand-written: Tendril's grammar is context-sensitive (object key mode,
// guard-span capture, vertical key paths) in ways a declarative grammar
// cannot express, which is exactly the case SPEC_FULL §11 carves out for
// a Pratt parser instead of participle.
package past

import (
	"strconv"
	"strings"

	"github.com/tendril-lang/tendril/internal/perr"
	"github.com/tendril-lang/tendril/internal/ptok"
	"github.com/tendril-lang/tendril/internal/value"
)

type parser struct {
	src    string
	toks   []ptok.Token
	pos    int
	farthest int
	expected []string
}

// Parse compiles pattern source into an AST. It does not run the
// validator; callers that need a fully checked AST should call Validate
// on the result (see validator.go).
func Parse(src string) (Node, error) {
	toks, err := ptok.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.parseAlt(false)
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != ptok.EOF {
		p.fail(p.pos, "end of pattern", nil)
		return nil, p.syntaxErr()
	}
	return n, nil
}

// --- token stream helpers ---

func (p *parser) peek() ptok.Token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) ptok.Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *parser) advance() ptok.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) fail(pos int, expected string, extra []string) {
	if pos > p.farthest {
		p.farthest = pos
		p.expected = append([]string{expected}, extra...)
	} else if pos == p.farthest {
		p.expected = append(p.expected, expected)
	}
}

func (p *parser) syntaxErr() error {
	return &perr.PatternSyntax{
		Msg:      "unexpected token",
		Source:   p.src,
		Pos:      p.farthest,
		Expected: dedup(p.expected),
	}
}

func dedup(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) expect(k ptok.Kind, name string) (ptok.Token, error) {
	t := p.peek()
	if t.Kind != k {
		p.fail(t.Pos, name, nil)
		return ptok.Token{}, p.syntaxErr()
	}
	return p.advance(), nil
}

func (p *parser) span(start int) Span {
	return Span{Pos: start, End: p.toks[p.pos].Pos}
}

// --- top-level precedence chain ---

func (p *parser) parseAlt(noAdj bool) (Node, error) {
	start := p.peek().Pos
	first, err := p.parseSeq(noAdj)
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != ptok.Pipe {
		return first, nil
	}
	branches := []Node{first}
	for p.peek().Kind == ptok.Pipe {
		p.advance()
		b, err := p.parseSeq(noAdj)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return Alt{base: base{p.span(start)}, Branches: branches, Prioritized: true}, nil
}

func (p *parser) parseSeq(noAdj bool) (Node, error) {
	start := p.peek().Pos
	first, err := p.parseQuantified(noAdj)
	if err != nil {
		return nil, err
	}
	if noAdj {
		return first, nil
	}
	items := []Node{first}
	for p.canStartPrimary() {
		n, err := p.parseQuantified(noAdj)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return Seq{base: base{p.span(start)}, Items: items}, nil
}

// canStartPrimary reports whether the current token can begin another
// adjacent pattern (used to detect Seq continuation at the top level /
// inside parens, where adjacency chains into a sequence).
func (p *parser) canStartPrimary() bool {
	switch p.peek().Kind {
	case ptok.RParen, ptok.RBracket, ptok.RBrace, ptok.EOF, ptok.Pipe, ptok.Comma,
		ptok.KwWhere, ptok.LtLt:
		return false
	default:
		return true
	}
}

func (p *parser) parseQuantified(noAdj bool) (Node, error) {
	start := p.peek().Pos
	atom, err := p.parsePrimary(noAdj)
	if err != nil {
		return nil, err
	}
	atom, err = p.applyQuantifier(atom, start)
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == ptok.KwWhere {
		p.advance()
		guard, err := p.captureGuardSpan()
		if err != nil {
			return nil, err
		}
		// §3: SBind carries its own guard directly; any other pattern is
		// wrapped in a Guarded node.
		if sb, ok := atom.(SBind); ok {
			sb.Guard = guard
			atom = sb
		} else {
			atom = Guarded{base: base{p.span(start)}, Pat: atom, Guard: guard}
		}
	}
	return atom, nil
}

func (p *parser) applyQuantifier(atom Node, start int) (Node, error) {
	mk := func(min, max int, mode QuantMode) Node {
		return Quant{base: base{p.span(start)}, Sub: atom, Min: min, Max: max, Mode: mode}
	}
	switch p.peek().Kind {
	case ptok.Question:
		p.advance()
		return mk(0, 1, Greedy), nil
	case ptok.QQ:
		p.advance()
		return mk(0, 1, Lazy), nil
	case ptok.QPlus:
		p.advance()
		return mk(0, 1, Possessive), nil
	case ptok.Plus:
		p.advance()
		return mk(1, Unbounded, Greedy), nil
	case ptok.PlusQ:
		p.advance()
		return mk(1, Unbounded, Lazy), nil
	case ptok.PlusPlus:
		p.advance()
		return mk(1, Unbounded, Possessive), nil
	case ptok.Star:
		p.advance()
		return mk(0, Unbounded, Greedy), nil
	case ptok.StarQ:
		p.advance()
		return mk(0, Unbounded, Lazy), nil
	case ptok.StarPlus:
		p.advance()
		return mk(0, Unbounded, Possessive), nil
	case ptok.Hash:
		min, max, err := p.parseExplicitCardinality()
		if err != nil {
			return nil, err
		}
		return mk(min, max, Greedy), nil
	default:
		return atom, nil
	}
}

// parseExplicitCardinality parses "#{m,n}" / "#{m,}" / "#{m}" starting at
// the current Hash token.
func (p *parser) parseExplicitCardinality() (min, max int, err error) {
	p.advance() // #
	if _, err := p.expect(ptok.LBrace, "{"); err != nil {
		return 0, 0, err
	}
	min, err = p.parseIntLiteral()
	if err != nil {
		return 0, 0, err
	}
	max = min
	if p.peek().Kind == ptok.Comma {
		p.advance()
		if p.peek().Kind == ptok.RBrace {
			max = Unbounded
		} else {
			max, err = p.parseIntLiteral()
			if err != nil {
				return 0, 0, err
			}
		}
	}
	if _, err := p.expect(ptok.RBrace, "}"); err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

func (p *parser) parseIntLiteral() (int, error) {
	t, err := p.expect(ptok.Number, "integer")
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseFloat(t.Value, 64)
	if perr != nil {
		p.fail(t.Pos, "integer", nil)
		return 0, p.syntaxErr()
	}
	return int(n), nil
}

// captureGuardSpan collects the raw source text of a guard expression
// following "where", tracking bracket depth across (), [], {} and
// stopping at a Comma or closing bracket seen at depth 0 — the boundary
// belongs to whatever enclosing construct invoked us (array item list,
// object term list, or a parenthesized group).
func (p *parser) captureGuardSpan() (string, error) {
	start := p.pos
	depth := 0
	for {
		t := p.peek()
		switch t.Kind {
		case ptok.LParen, ptok.LParenQ, ptok.LParenBang, ptok.LBracket, ptok.LBrace:
			depth++
		case ptok.RParen, ptok.RBracket, ptok.RBrace:
			if depth == 0 {
				goto done
			}
			depth--
		case ptok.Comma:
			if depth == 0 {
				goto done
			}
		case ptok.EOF:
			goto done
		}
		p.advance()
	}
done:
	if p.pos == start {
		p.fail(p.peek().Pos, "guard expression", nil)
		return "", p.syntaxErr()
	}
	first := p.toks[start]
	last := p.toks[p.pos-1]
	return strings.TrimSpace(p.src[first.Pos : last.Pos+last.Length]), nil
}

// --- primaries ---

func (p *parser) parsePrimary(noAdj bool) (Node, error) {
	start := p.peek().Pos
	t := p.peek()
	switch t.Kind {
	case ptok.Wild:
		p.advance()
		return wildNode(t, p.span(start)), nil
	case ptok.Number:
		p.advance()
		n, _ := strconv.ParseFloat(t.Value, 64)
		return Lit{base: base{p.span(start)}, Value: value.Number(n)}, nil
	case ptok.String:
		p.advance()
		return Lit{base: base{p.span(start)}, Value: value.String(t.Value)}, nil
	case ptok.CaseInsensitive:
		p.advance()
		return StringPattern{base: base{p.span(start)}, CaseInsensitive: true, Lowered: t.Value}, nil
	case ptok.Regex:
		p.advance()
		return regexNode(t, p.span(start)), nil
	case ptok.KwTrue:
		p.advance()
		return Lit{base: base{p.span(start)}, Value: value.Bool(true)}, nil
	case ptok.KwFalse:
		p.advance()
		return Lit{base: base{p.span(start)}, Value: value.Bool(false)}, nil
	case ptok.KwNull:
		p.advance()
		return NullPat{base{p.span(start)}}, nil
	case ptok.Dollar:
		return p.parseBinding(start)
	case ptok.LParenQ:
		p.advance()
		inner, err := p.parseAlt(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ptok.RParen, ")"); err != nil {
			return nil, err
		}
		return Look{base: base{p.span(start)}, Pat: inner, Neg: false}, nil
	case ptok.LParenBang:
		p.advance()
		inner, err := p.parseAlt(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ptok.RParen, ")"); err != nil {
			return nil, err
		}
		return Look{base: base{p.span(start)}, Pat: inner, Neg: true}, nil
	case ptok.LParen:
		p.advance()
		inner, err := p.parseAlt(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ptok.RParen, ")"); err != nil {
			return nil, err
		}
		return Paren{base: base{p.span(start)}, Inner: inner}, nil
	case ptok.LBracket:
		return p.parseArray(start, "")
	case ptok.LBrace:
		return p.parseObject(start, "")
	case ptok.GtGt:
		p.advance()
		inner, err := p.parseAlt(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ptok.LtLt, "<<"); err != nil {
			return nil, err
		}
		return Replace{base: base{p.span(start)}, Pat: inner}, nil
	case ptok.At:
		return p.parseFlow(start, true)
	case ptok.Percent:
		return p.parseFlow(start, false)
	case ptok.Ident:
		if p.peekAt(1).Kind == ptok.Arrow {
			label := t.Value
			p.advance()
			p.advance()
			switch p.peek().Kind {
			case ptok.LBracket:
				return p.parseArray(start, label)
			case ptok.LBrace:
				return p.parseObject(start, label)
			default:
				p.fail(p.peek().Pos, "[ or {", nil)
				return nil, p.syntaxErr()
			}
		}
		p.fail(t.Pos, "pattern", nil)
		return nil, p.syntaxErr()
	default:
		p.fail(t.Pos, "pattern", nil)
		return nil, p.syntaxErr()
	}
}

func wildNode(t ptok.Token, sp Span) Node {
	switch t.Value {
	case "_string":
		return TypedAny{base{sp}, AnyString}
	case "_number":
		return TypedAny{base{sp}, AnyNumber}
	case "_boolean":
		return TypedAny{base{sp}, AnyBoolean}
	default:
		return Any{base{sp}}
	}
}

func regexNode(t ptok.Token, sp Span) Node {
	nul := strings.IndexByte(t.Value, 0)
	body, flags := t.Value, ""
	if nul >= 0 {
		body, flags = t.Value[:nul], t.Value[nul+1:]
	}
	ci := strings.ContainsRune(flags, 'i')
	return StringPattern{
		base:            base{sp},
		Regexp:          &regexpPattern{Source: body, Flags: flags},
		CaseInsensitive: ci,
	}
}

// parseBinding parses "$name", "$name=pat", and the group-bind suffix
// "$name..." / "$name=pat...", usable both as a value-position pattern
// and (via parseKeyAtom) as an object key pattern.
func (p *parser) parseBinding(start int) (Node, error) {
	p.advance() // $
	nameTok, err := p.expect(ptok.Ident, "binding name")
	if err != nil {
		return nil, err
	}
	name := nameTok.Value
	var sub Node
	if p.peek().Kind == ptok.Eq {
		p.advance()
		sub, err = p.parseQuantified(true)
		if err != nil {
			return nil, err
		}
	}
	if p.peek().Kind == ptok.Spread {
		p.advance()
		if sub == nil {
			sub = Spread{base: base{p.span(start)}, Min: 0, Max: Unbounded}
		}
		return GroupBind{base: base{p.span(start)}, Name: name, Sub: sub}, nil
	}
	if sub == nil {
		sub = Any{base{p.span(start)}}
	}
	return SBind{base: base{p.span(start)}, Name: name, Pat: sub}, nil
}

// parseFlow parses "@bucket(pat)" / "%bucket(pat)" (Flow), the explicit
// Collecting form "@bucket<$v>(pat)" / "%bucket<$k,$v>(pat)", and the
// ancestor-label reference form "@label:bucket(pat)".
func (p *parser) parseFlow(start int, arrayKind bool) (Node, error) {
	p.advance() // @ or %
	first, err := p.expect(ptok.Ident, "bucket name")
	if err != nil {
		return nil, err
	}
	bucket := first.Value
	labelRef := ""
	if p.peek().Kind == ptok.Colon {
		p.advance()
		labelRef = bucket
		bTok, err := p.expect(ptok.Ident, "bucket name")
		if err != nil {
			return nil, err
		}
		bucket = bTok.Value
	}
	keyVar, valueVar := "", ""
	collecting := false
	if p.peek().Kind == ptok.Lt {
		collecting = true
		p.advance()
		if !arrayKind {
			k, err := p.parseDollarIdent()
			if err != nil {
				return nil, err
			}
			keyVar = k
			if _, err := p.expect(ptok.Comma, ","); err != nil {
				return nil, err
			}
		}
		v, err := p.parseDollarIdent()
		if err != nil {
			return nil, err
		}
		valueVar = v
		if _, err := p.expect(ptok.Gt, ">"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(ptok.LParen, "("); err != nil {
		return nil, err
	}
	pat, err := p.parseAlt(false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ptok.RParen, ")"); err != nil {
		return nil, err
	}
	if collecting {
		return Collecting{
			base: base{p.span(start)}, Pat: pat, Bucket: bucket, ArrayKind: arrayKind,
			LabelRef: labelRef, KeyVar: keyVar, ValueVar: valueVar,
		}, nil
	}
	return Flow{base: base{p.span(start)}, Pat: pat, Bucket: bucket, ArrayKind: arrayKind, LabelRef: labelRef}, nil
}

func (p *parser) parseDollarIdent() (string, error) {
	if _, err := p.expect(ptok.Dollar, "$"); err != nil {
		return "", err
	}
	t, err := p.expect(ptok.Ident, "identifier")
	if err != nil {
		return "", err
	}
	return t.Value, nil
}

// --- arrays ---

func (p *parser) parseArray(start int, label string) (Node, error) {
	p.advance() // [
	var items []Node
	for p.peek().Kind != ptok.RBracket {
		itemStart := p.peek().Pos
		if p.peek().Kind == ptok.Spread {
			p.advance()
			min, max := 0, Unbounded
			if p.peek().Kind == ptok.Hash {
				var err error
				min, max, err = p.parseExplicitCardinality()
				if err != nil {
					return nil, err
				}
			}
			items = append(items, Spread{base: base{p.span(itemStart)}, Min: min, Max: max})
		} else {
			item, err := p.parseQuantified(true)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if p.peek().Kind == ptok.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(ptok.RBracket, "]"); err != nil {
		return nil, err
	}
	return Arr{base: base{p.span(start)}, Items: items, Label: label}, nil
}

// --- objects ---

func (p *parser) parseObject(start int, label string) (Node, error) {
	p.advance() // {
	var terms []Term
	var spread *ObjSpread
	for p.peek().Kind != ptok.RBrace {
		termStart := p.peek().Pos
		switch p.peek().Kind {
		case ptok.Spread:
			// "..." open remainder, optionally "...#{m,n}" constraining
			// the residual key count.
			p.advance()
			min, max := 0, Unbounded
			if p.peek().Kind == ptok.Hash {
				var err error
				min, max, err = p.parseExplicitCardinality()
				if err != nil {
					return nil, err
				}
			}
			spread = &ObjSpread{base: base{p.span(termStart)}, Bare: true, Min: min, Max: max}
		case ptok.Percent:
			if p.isFlowLookahead() {
				t, err := p.parseObjectFlowTerm(termStart)
				if err != nil {
					return nil, err
				}
				terms = append(terms, t)
			} else {
				p.advance()
				spread = &ObjSpread{base: base{p.span(termStart)}, RequireNonEmpty: true}
			}
		case ptok.Dollar:
			switch {
			case p.peekAt(1).Kind != ptok.Ident:
				// bare "$" remainder marker: residual keys must be empty.
				p.advance()
				spread = &ObjSpread{base: base{p.span(termStart)}, Closed: true}
			case p.isBindingValueForm():
				// "$k: v" / "$k=pat: v" — an ordinary term whose key is a
				// binding, handled by the general term parser.
				t, err := p.parseObjectTerm()
				if err != nil {
					return nil, err
				}
				terms = append(terms, t)
			default:
				// bare group term: "$rest" or "$rest(subPattern)".
				p.advance()
				nameTok, err := p.expect(ptok.Ident, "group name")
				if err != nil {
					return nil, err
				}
				var sub Node
				if p.peek().Kind == ptok.LParen {
					p.advance()
					sub, err = p.parseAlt(false)
					if err != nil {
						return nil, err
					}
					if _, err := p.expect(ptok.RParen, ")"); err != nil {
						return nil, err
					}
				}
				terms = append(terms, GroupBindTerm{base: base{p.span(termStart)}, Name: nameTok.Value, Sub: sub})
			}
		case ptok.LParenQ:
			p.advance()
			inner, err := p.parseAlt(false)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(ptok.RParen, ")"); err != nil {
				return nil, err
			}
			terms = append(terms, OLookTerm{base: base{p.span(termStart)}, Pat: inner, Neg: false})
		case ptok.LParenBang:
			p.advance()
			inner, err := p.parseAlt(false)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(ptok.RParen, ")"); err != nil {
				return nil, err
			}
			terms = append(terms, OLookTerm{base: base{p.span(termStart)}, Pat: inner, Neg: true})
		case ptok.LParen:
			p.advance()
			var inner []Term
			for p.peek().Kind != ptok.RParen {
				t, err := p.parseObjectTerm()
				if err != nil {
					return nil, err
				}
				inner = append(inner, t)
				if p.peek().Kind == ptok.Comma {
					p.advance()
				}
			}
			if _, err := p.expect(ptok.RParen, ")"); err != nil {
				return nil, err
			}
			terms = append(terms, OGroupTerm{base: base{p.span(termStart)}, Terms: inner})
		default:
			t, err := p.parseObjectTerm()
			if err != nil {
				return nil, err
			}
			terms = append(terms, t)
		}
		if p.peek().Kind == ptok.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(ptok.RBrace, "}"); err != nil {
		return nil, err
	}
	return Obj{base: base{p.span(start)}, Terms: terms, Spread: spread, Label: label}, nil
}

// isFlowLookahead distinguishes "%bucket(pat)"/"%bucket<...>(pat)" Flow
// terms from a bare "%" remainder marker.
func (p *parser) isFlowLookahead() bool {
	if p.peekAt(1).Kind != ptok.Ident {
		return false
	}
	k := p.peekAt(2).Kind
	return k == ptok.LParen || k == ptok.Lt || k == ptok.Colon
}

func (p *parser) parseObjectFlowTerm(termStart int) (Term, error) {
	n, err := p.parseFlow(termStart, false)
	if err != nil {
		return nil, err
	}
	switch fv := n.(type) {
	case Flow:
		return fv, nil
	case Collecting:
		return fv, nil
	default:
		return nil, &perr.PatternSyntax{Msg: "internal: unexpected flow node", Source: p.src, Pos: termStart}
	}
}

// isBindingValueForm reports whether "$ident" at the current position
// reads as a plain scalar/group binding used as an OTerm's key (e.g.
// "$k: v") rather than a bare group-bind object term ("$rest"): the
// binding form is followed by a colon (directly, or after "=pat"/"...").
func (p *parser) isBindingValueForm() bool {
	save := p.pos
	defer func() { p.pos = save }()
	p.advance() // $
	p.advance() // ident
	if p.peek().Kind == ptok.Eq {
		p.advance()
		depth := 0
		for {
			switch p.peek().Kind {
			case ptok.LParen, ptok.LBracket, ptok.LBrace, ptok.LParenQ, ptok.LParenBang:
				depth++
			case ptok.RParen, ptok.RBracket, ptok.RBrace:
				if depth == 0 {
					goto afterEq
				}
				depth--
			case ptok.Colon, ptok.ColonGT, ptok.Comma, ptok.EOF:
				if depth == 0 {
					goto afterEq
				}
			}
			p.advance()
		}
	afterEq:
	}
	if p.peek().Kind == ptok.Spread {
		p.advance()
	}
	return p.peek().Kind == ptok.Colon || p.peek().Kind == ptok.ColonGT
}

// parseObjectTerm parses one "K:V" family term: optional leading "each",
// a key pattern with breadcrumb suffixes, the colon, a value pattern, and
// trailing modifiers ("else !", "?", "#{m,n}") in any combination.
func (p *parser) parseObjectTerm() (Term, error) {
	start := p.peek().Pos
	strong := false
	if p.peek().Kind == ptok.KwEach {
		p.advance()
		strong = true
	}
	key, breadcrumbs, err := p.parseKeyWithBreadcrumbs()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != ptok.Colon && p.peek().Kind != ptok.ColonGT {
		p.fail(p.peek().Pos, ":", []string{":>"})
		return nil, p.syntaxErr()
	}
	p.advance()
	val, err := p.parseQuantified(true)
	if err != nil {
		return nil, err
	}
	optional := false
	// A plain "?" right after the value was taken as a quantifier by
	// parseQuantified; in a K:V term it is the optional modifier instead.
	if q, ok := val.(Quant); ok && q.Min == 0 && q.Max == 1 && q.Mode == Greedy && p.toks[p.pos-1].Kind == ptok.Question {
		val = q.Sub
		optional = true
	}
	var quant *Quant
loop:
	for {
		switch p.peek().Kind {
		case ptok.KwElse:
			p.advance()
			if _, err := p.expect(ptok.Bang, "!"); err != nil {
				return nil, err
			}
			strong = true
			if p.peek().Kind == ptok.Question {
				p.advance()
				optional = true
			}
		case ptok.Question:
			p.advance()
			optional = true
		case ptok.Hash:
			min, max, err := p.parseExplicitCardinality()
			if err != nil {
				return nil, err
			}
			q := Quant{base: base{p.span(start)}, Min: min, Max: max, Mode: Greedy}
			quant = &q
		default:
			break loop
		}
	}
	return OTerm{
		base: base{p.span(start)}, Key: key, Breadcrumbs: breadcrumbs, Val: val,
		Quant: quant, Optional: optional, Strong: strong,
	}, nil
}

// parseKeyWithBreadcrumbs parses the key pattern in object-key mode,
// where "." is a tight path operator and ".." introduces a recursive
// descent breadcrumb: "a.b.c: v" desugars into Key=a with breadcrumbs
// [Dot b, Dot c].
func (p *parser) parseKeyWithBreadcrumbs() (Node, []Breadcrumb, error) {
	key, err := p.parseKeyAtom()
	if err != nil {
		return nil, nil, err
	}
	var crumbs []Breadcrumb
	for {
		switch p.peek().Kind {
		case ptok.Dot:
			p.advance()
			name, err := p.parseBareKeyName()
			if err != nil {
				return nil, nil, err
			}
			crumbs = append(crumbs, Breadcrumb{Kind: BDot, Key: name})
		case ptok.DotDot:
			p.advance()
			name, err := p.parseBareKeyName()
			if err != nil {
				return nil, nil, err
			}
			crumbs = append(crumbs, Breadcrumb{Kind: BSkip, Key: name})
		case ptok.LBracket:
			p.advance()
			idx, err := p.parseAlt(true)
			if err != nil {
				return nil, nil, err
			}
			if _, err := p.expect(ptok.RBracket, "]"); err != nil {
				return nil, nil, err
			}
			crumbs = append(crumbs, Breadcrumb{Kind: BBracket, Index: idx})
		default:
			return key, crumbs, nil
		}
	}
}

func (p *parser) parseBareKeyName() (string, error) {
	switch p.peek().Kind {
	case ptok.Ident:
		return p.advance().Value, nil
	case ptok.String:
		return p.advance().Value, nil
	default:
		p.fail(p.peek().Pos, "key name", nil)
		return "", p.syntaxErr()
	}
}

// parseKeyAtom parses the key-position pattern atom: a bareword or
// quoted string is a string literal key (not an unbound identifier), a
// wildcard/binding/regex matches a class of keys.
func (p *parser) parseKeyAtom() (Node, error) {
	start := p.peek().Pos
	t := p.peek()
	switch t.Kind {
	case ptok.Ident:
		p.advance()
		return Lit{base: base{p.span(start)}, Value: value.String(t.Value)}, nil
	case ptok.String:
		p.advance()
		return Lit{base: base{p.span(start)}, Value: value.String(t.Value)}, nil
	case ptok.CaseInsensitive:
		p.advance()
		return StringPattern{base: base{p.span(start)}, CaseInsensitive: true, Lowered: t.Value}, nil
	case ptok.Regex:
		p.advance()
		return regexNode(t, p.span(start)), nil
	case ptok.Wild:
		p.advance()
		return wildNode(t, p.span(start)), nil
	case ptok.Dollar:
		return p.parseBinding(start)
	default:
		p.fail(t.Pos, "object key", nil)
		return nil, p.syntaxErr()
	}
}
