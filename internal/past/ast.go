// Package past implements Tendril's pattern AST (spec §3) and the
// hand-rolled Pratt-style parser that builds it (spec §4.2), followed by
// a single post-parse validator pass (spec §4.3).
//
// The AST shape mirrors gokando's tagged-union Term design
// (pkg/minikanren/nvalue.go, core.go): one Go interface with a private
// marker method, one concrete struct per variant, each carrying its own
// source span (teacher's grammar.go carries lexer.Position on every
// node; Node carries a Span here for the same reason — useful error
// messages that point back at source).
package past

import (
	"regexp"

	"github.com/tendril-lang/tendril/internal/value"
)

// Span is a node's source extent, in byte offsets into the original
// pattern text.
type Span struct {
	Pos, End int
}

// Node is the sealed interface implemented by every pattern AST variant.
type Node interface {
	span() Span
	node()
}

type base struct{ Span Span }

func (b base) span() Span { return b.Span }
func (base) node()        {}

// --- Atoms ---

type Any struct{ base }

type AnyKind int

const (
	AnyString AnyKind = iota
	AnyNumber
	AnyBoolean
)

type TypedAny struct {
	base
	Kind AnyKind
}

type Lit struct {
	base
	Value value.Value
}

type StringPattern struct {
	base
	Regexp        *regexpPattern // non-nil for /body/flags
	CaseInsensitive bool
	Lowered       string // when CaseInsensitive: the lowered literal to compare against
}

// regexpPattern wraps a compiled standard-library regexp (spec §11: no
// third-party regex engine in the retrieved pack fits arbitrary string
// matching with capture groups the way stdlib regexp does). Compiled is
// populated by the validator so a bad regex surfaces at compile time and
// the evaluator never re-compiles per candidate node.
type regexpPattern struct {
	Source   string
	Flags    string
	Compiled *regexp.Regexp
}

type NullPat struct{ base }

type Fail struct{ base }

// --- Combinators ---

type Alt struct {
	base
	Branches    []Node
	Prioritized bool
}

type Seq struct {
	base
	Items []Node
}

type Paren struct {
	base
	Inner Node
}

type Group struct {
	base
	Inner Node
}

// --- Quantifiers ---

type QuantMode int

const (
	Greedy QuantMode = iota
	Lazy
	Possessive
)

const Unbounded = -1 // represents +Inf for Max

type Quant struct {
	base
	Sub      Node
	Min, Max int
	Mode     QuantMode
}

// --- Arrays ---

type SpreadKind int

const (
	SpreadPlain SpreadKind = iota
)

type Spread struct {
	base
	Min, Max int // defaults 0, Unbounded
}

type Arr struct {
	base
	Items []Node
	Label string // "" when unlabeled
}

// --- Objects ---

type Obj struct {
	base
	Terms  []Term
	Spread *ObjSpread // nil when the object is closed (no remainder)
	Label  string
}

// ObjSpread is the trailing "remainder" marker of an object pattern.
// Exactly one of the four forms is set: an open "..." remainder (Bare,
// with optional explicit cardinality against the residual key count), a
// bare "%" requiring a non-empty residual, a bare "$" requiring an empty
// one (Closed), or a group binding capturing the residual keys.
type ObjSpread struct {
	base
	Bare            bool // "..." open remainder
	Min, Max        int  // Bare: residual count bounds (0, Unbounded by default)
	RequireNonEmpty bool // bare "%"
	Closed          bool // bare "$"
	GroupName       string
}

// Term is the sum type for object pattern terms.
type Term interface {
	term()
}

type OTerm struct {
	base
	Key         Node
	Breadcrumbs []Breadcrumb
	Val         Node
	Quant       *Quant // explicit cardinality override, nil => default
	Optional    bool
	Strong      bool
}

func (OTerm) term() {}

type OGroupTerm struct {
	base
	Terms []Term
}

func (OGroupTerm) term() {}

type OLookTerm struct {
	base
	Pat Node
	Neg bool
}

func (OLookTerm) term() {}

// GroupBindTerm is a GroupBind that targets object keys directly as a
// term (as opposed to GroupBind appearing as a value pattern inside an
// OTerm, which is represented by the shared GroupBind node below).
type GroupBindTerm struct {
	base
	Name string
	Sub  Node // nil => captures the full remainder
}

func (GroupBindTerm) term() {}

// --- Bindings ---

type SBind struct {
	base
	Name  string
	Pat   Node
	Guard string // raw guard source; "" when absent
}

type GroupBind struct {
	base
	Name string
	Sub  Node
}

// --- Assertions ---

type Look struct {
	base
	Pat Node
	Neg bool
}

// --- Guards ---

type Guarded struct {
	base
	Pat   Node
	Guard string // raw guard expression source
}

// --- Path / breadcrumbs ---

type BreadcrumbKind int

const (
	BDot BreadcrumbKind = iota
	BBracket
	BSkip
)

type Breadcrumb struct {
	Kind  BreadcrumbKind
	Key   string // BDot, BSkip
	Index Node   // BBracket: literal index / wildcard / binding / pattern
}

// --- Flow / Collecting ---

// Flow and Collecting double as both Node (a value-position pattern) and
// Term (a direct object term, e.g. "%bucket(pat)" as a term of its
// enclosing object) — both interfaces are satisfied simultaneously.

type Flow struct {
	base
	Pat       Node
	Bucket    string
	ArrayKind bool // true => array bucket (@), false => object bucket (%)
	LabelRef  string
}

func (Flow) term() {}

type Collecting struct {
	base
	Pat        Node
	Bucket     string
	ArrayKind  bool
	LabelRef   string
	KeyVar     string // bound variable supplying the bucket key (object buckets)
	ValueVar   string // bound variable supplying the bucket value
}

func (Collecting) term() {}

// --- Replacement (parsed, validator restricts use; see SPEC_FULL §14.2) ---

type Replace struct {
	base
	Pat         Node
	Replacement string // not set by the parser; always ""
}
