package sgml

// ============================================================================
// 3. CONTENT MODELS AND THE STATE ENGINE
// ============================================================================
// A content model is the declaration-side tree: groups with connectors and
// cardinalities. The validator never walks the tree directly; it asks a
// ModelState three questions: "may this child appear now?" (Transition),
// "which omissible open-tags would make it legal?" (FindOmittedPath) and
// "are we allowed to stop here?" (IsFinal).
//
// The engine is a derivative automaton: a state is the residue of the model
// after the children consumed so far. Taking the derivative by an element
// either yields the next residue or fails, which lets the element stack retry
// against an outer environment instead of erroring. AND groups stay lazy: the
// residue simply keeps the members that are not yet satisfied.

// ModelType discriminates content-model nodes.
type ModelType int

const (
	MTUndef ModelType = iota
	MTPCDATA
	MTElement
	MTSeq // a , b
	MTAnd // a & b
	MTOr  // a | b
)

// Cardinality is the occurrence indicator on a model node.
type Cardinality int

const (
	CardOne  Cardinality = iota
	CardOpt              // ?
	CardRep              // *
	CardPlus             // +
)

// Model is one node of a content-model tree.
type Model struct {
	Type    ModelType
	Card    Cardinality
	Element *Element // MTElement
	Group   []*Model // MTSeq, MTAnd, MTOr
}

// ----------------------------------------------------------------------------
// expression form
// ----------------------------------------------------------------------------

type exprKind int

const (
	exEmpty exprKind = iota // matches the empty sequence
	exLeaf                  // one element or #PCDATA
	exSeq
	exAlt
	exAnd
	exStar
)

type expr struct {
	kind exprKind
	elem *Element // exLeaf; textElement for #PCDATA
	sub  []*expr
}

var emptyExpr = &expr{kind: exEmpty}

func mkSeq(sub ...*expr) *expr {
	out := make([]*expr, 0, len(sub))
	for _, s := range sub {
		if s == nil {
			return nil
		}
		if s.kind == exEmpty {
			continue
		}
		if s.kind == exSeq {
			out = append(out, s.sub...)
			continue
		}
		out = append(out, s)
	}
	switch len(out) {
	case 0:
		return emptyExpr
	case 1:
		return out[0]
	}
	return &expr{kind: exSeq, sub: out}
}

func mkAlt(sub ...*expr) *expr {
	out := make([]*expr, 0, len(sub))
	for _, s := range sub {
		if s == nil {
			continue
		}
		if s.kind == exAlt {
			out = append(out, s.sub...)
			continue
		}
		out = append(out, s)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return &expr{kind: exAlt, sub: out}
}

func mkAnd(sub ...*expr) *expr {
	out := make([]*expr, 0, len(sub))
	for _, s := range sub {
		if s == nil {
			return nil
		}
		if s.kind == exEmpty {
			continue
		}
		out = append(out, s)
	}
	switch len(out) {
	case 0:
		return emptyExpr
	case 1:
		return out[0]
	}
	return &expr{kind: exAnd, sub: out}
}

func compileExpr(m *Model) *expr {
	var base *expr
	switch m.Type {
	case MTPCDATA:
		// #PCDATA admits any number of text runs wherever it is legal
		base = &expr{kind: exStar, sub: []*expr{{kind: exLeaf, elem: textElement}}}
	case MTElement:
		base = &expr{kind: exLeaf, elem: m.Element}
	case MTSeq:
		sub := make([]*expr, len(m.Group))
		for i, g := range m.Group {
			sub[i] = compileExpr(g)
		}
		base = mkSeq(sub...)
	case MTAnd:
		sub := make([]*expr, len(m.Group))
		for i, g := range m.Group {
			sub[i] = compileExpr(g)
		}
		base = mkAnd(sub...)
	case MTOr:
		sub := make([]*expr, len(m.Group))
		for i, g := range m.Group {
			sub[i] = compileExpr(g)
		}
		base = mkAlt(sub...)
		if base == nil {
			base = emptyExpr
		}
	default:
		base = emptyExpr
	}

	switch m.Card {
	case CardOpt:
		return mkAlt(base, emptyExpr)
	case CardRep:
		return &expr{kind: exStar, sub: []*expr{base}}
	case CardPlus:
		return mkSeq(base, &expr{kind: exStar, sub: []*expr{base}})
	}
	return base
}

func nullable(e *expr) bool {
	switch e.kind {
	case exEmpty, exStar:
		return true
	case exLeaf:
		return false
	case exSeq, exAnd:
		for _, s := range e.sub {
			if !nullable(s) {
				return false
			}
		}
		return true
	case exAlt:
		for _, s := range e.sub {
			if nullable(s) {
				return true
			}
		}
	}
	return false
}

// deriv returns the residue of e after consuming el, or nil when el is not
// admissible here. #PCDATA leaves match textElement.
func deriv(e *expr, el *Element) *expr {
	switch e.kind {
	case exEmpty:
		return nil
	case exLeaf:
		if e.elem == el {
			return emptyExpr
		}
		return nil
	case exSeq:
		head, tail := e.sub[0], mkSeq(e.sub[1:]...)
		var alts []*expr
		if d := deriv(head, el); d != nil {
			alts = append(alts, mkSeq(d, tail))
		}
		if nullable(head) {
			if d := deriv(tail, el); d != nil {
				alts = append(alts, d)
			}
		}
		return mkAlt(alts...)
	case exAlt:
		var alts []*expr
		for _, s := range e.sub {
			if d := deriv(s, el); d != nil {
				alts = append(alts, d)
			}
		}
		return mkAlt(alts...)
	case exAnd:
		var alts []*expr
		for i, s := range e.sub {
			d := deriv(s, el)
			if d == nil {
				continue
			}
			rest := make([]*expr, 0, len(e.sub))
			rest = append(rest, d)
			rest = append(rest, e.sub[:i]...)
			rest = append(rest, e.sub[i+1:]...)
			alts = append(alts, mkAnd(rest...))
		}
		return mkAlt(alts...)
	case exStar:
		if d := deriv(e.sub[0], el); d != nil {
			return mkSeq(d, e)
		}
		return nil
	}
	return nil
}

// firstSet collects the elements admissible as the very next child.
func firstSet(e *expr, into map[*Element]bool) {
	switch e.kind {
	case exLeaf:
		into[e.elem] = true
	case exSeq:
		for _, s := range e.sub {
			firstSet(s, into)
			if !nullable(s) {
				return
			}
		}
	case exAlt, exAnd:
		for _, s := range e.sub {
			firstSet(s, into)
		}
	case exStar:
		firstSet(e.sub[0], into)
	}
}

// ----------------------------------------------------------------------------
// public state engine
// ----------------------------------------------------------------------------

// ModelState is one state of a compiled content model.
type ModelState struct {
	e *expr
}

func compileModel(m *Model) *ModelState {
	return &ModelState{e: compileExpr(m)}
}

// Transition returns the state after admitting el as the next child, or nil
// when el is not legal here. Failure is a value, not an error: the element
// stack retries against enclosing environments before complaining.
func (s *ModelState) Transition(el *Element) *ModelState {
	if s == nil {
		return nil
	}
	if d := deriv(s.e, el); d != nil {
		return &ModelState{e: d}
	}
	return nil
}

// IsFinal reports whether the model permits stopping in this state.
func (s *ModelState) IsFinal() bool {
	return s == nil || nullable(s.e)
}

// defaultOmittedDepth bounds FindOmittedPath; pathological DTDs would
// otherwise make the search non-terminating.
const defaultOmittedDepth = 6

// FindOmittedPath searches for a shortest sequence of elements, each
// permitting open-tag omission, whose insertion makes target legal from s.
// Returns nil when no such path exists within maxDepth.
func (s *ModelState) FindOmittedPath(target *Element, maxDepth int) []*Element {
	if s == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = defaultOmittedDepth
	}
	for depth := 1; depth <= maxDepth; depth++ {
		if path := omittedPath(s, target, depth, nil); path != nil {
			return path
		}
	}
	return nil
}

func omittedPath(s *ModelState, target *Element, depth int, seen []*Element) []*Element {
	if depth == 0 {
		return nil
	}
	first := make(map[*Element]bool)
	firstSet(s.e, first)
	for cand := range first {
		if cand == textElement || cand == target || cand.Undefined {
			continue
		}
		def := cand.Structure
		if def == nil || !def.OmitOpen || def.Kind != ContentModel {
			continue
		}
		inner := def.initialState()
		if inner == nil {
			continue
		}
		if containsElem(seen, cand) {
			continue
		}
		if inner.Transition(target) != nil {
			return []*Element{cand}
		}
		if depth > 1 {
			if rest := omittedPath(inner, target, depth-1, append(seen, cand)); rest != nil {
				return append([]*Element{cand}, rest...)
			}
		}
	}
	return nil
}

func containsElem(list []*Element, e *Element) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}

// forElementsInModel walks the tree calling f for every element leaf. Used by
// <!USEMAP name (group)> and by the element name-groups of <!ELEMENT> and
// <!ATTLIST>.
func forElementsInModel(m *Model, f func(*Element)) {
	switch m.Type {
	case MTSeq, MTAnd, MTOr:
		for _, sub := range m.Group {
			forElementsInModel(sub, f)
		}
	case MTElement:
		f(m.Element)
	}
}
