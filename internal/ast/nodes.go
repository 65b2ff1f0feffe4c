package ast

// Position is a 1-based source position within a template block.
type Position struct {
	Line   int
	Column int
}

// Node is the common interface implemented by every template AST node.
// The node set is closed: generator and validator switch exhaustively on it.
type Node interface {
	node()
	Pos() Position
}

// AttrValue is either a static string or a dynamic expression binding.
type AttrValue struct {
	Static  string
	Expr    string
	Dynamic bool
}

// Attr is one element attribute in declaration order.
type Attr struct {
	Name  string
	Value AttrValue
}

// Element is a host tag or a component invocation (capitalized tag name).
type Element struct {
	Position    Position
	Tag         string
	Attrs       []Attr
	Spreads     []string
	Children    []Node
	IsComponent bool
	SelfClosed  bool
}

func (n Element) node()         {}
func (n Element) Pos() Position { return n.Position }

// Text is literal template text.
type Text struct {
	Position Position
	Value    string
}

func (n Text) node()         {}
func (n Text) Pos() Position { return n.Position }

// Expression is an @{...} interpolation used as a child.
type Expression struct {
	Position Position
	Code     string
}

func (n Expression) node()         {}
func (n Expression) Pos() Position { return n.Position }

// ElifBranch is one @elif clause of an If node.
type ElifBranch struct {
	Position Position
	Cond     string
	Children []Node
}

// If represents @if{cond}{...} with optional elif chain and else clause.
type If struct {
	Position     Position
	Cond         string
	Then         []Node
	ElifBranches []ElifBranch
	Else         []Node
}

func (n If) node()         {}
func (n If) Pos() Position { return n.Position }

// ForEach represents @foreach item in seq with optional key and fallback.
type ForEach struct {
	Position         Position
	ItemVar          string
	IndexVar         string
	SeqExpr          string
	KeyExpr          string
	Children         []Node
	FallbackChildren []Node
	FallbackExpr     string
}

func (n ForEach) node()         {}
func (n ForEach) Pos() Position { return n.Position }

// MatchCase is one @match arm of a Switch node.
type MatchCase struct {
	Position Position
	WhenExpr string
	Children []Node
}

// Switch represents @switch{subject?}{@match{expr}{...} ...} with an
// optional @fallback arm. Cases are evaluated first-match-wins.
type Switch struct {
	Position    Position
	SubjectExpr string
	Cases       []MatchCase
	Fallback    []Node
}

func (n Switch) node()         {}
func (n Switch) Pos() Position { return n.Position }

// Fragment is a sequence of sibling nodes with no wrapping element.
type Fragment struct {
	Position Position
	Children []Node
}

func (n Fragment) node()         {}
func (n Fragment) Pos() Position { return n.Position }
