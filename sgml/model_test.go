package sgml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDTD parses declaration text into a fresh SGML DTD.
func buildDTD(t *testing.T, text string) *DTD {
	t.Helper()
	dtd := NewDTD("")
	p := NewParser(dtd, WithHandler(Handler{
		OnError: func(_ *Parser, err *ParseError) bool {
			t.Logf("dtd: %v", err)
			return true
		},
	}))
	p.LoadDTD([]byte(text))
	return dtd
}

func element(t *testing.T, dtd *DTD, name string) *Element {
	t.Helper()
	sym := dtd.symbols.find(fold(name, dtd.CaseSensitive))
	require.NotNil(t, sym, "symbol %q", name)
	require.NotNil(t, sym.Element, "element %q", name)
	return sym.Element
}

func TestSequenceModel(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT doc - - (a,b?,c*)>
		<!ELEMENT (a|b|c) - - (#PCDATA)>`)

	doc := element(t, dtd, "doc")
	a, b, c := element(t, dtd, "a"), element(t, dtd, "b"), element(t, dtd, "c")

	s := doc.Structure.initialState()
	require.NotNil(t, s)
	assert.False(t, s.IsFinal())

	// a then c, skipping optional b
	s1 := s.Transition(a)
	require.NotNil(t, s1)
	assert.True(t, s1.IsFinal(), "b? and c* are both skippable")

	s2 := s1.Transition(c)
	require.NotNil(t, s2)
	assert.True(t, s2.IsFinal())
	require.NotNil(t, s2.Transition(c), "c repeats")

	// b cannot come first
	assert.Nil(t, s.Transition(b))
	// a cannot repeat
	assert.Nil(t, s1.Transition(a))
}

func TestAndGroupAnyOrder(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT doc - - (a & b & c)>
		<!ELEMENT (a|b|c) - - (#PCDATA)>`)

	doc := element(t, dtd, "doc")
	a, b, c := element(t, dtd, "a"), element(t, dtd, "b"), element(t, dtd, "c")

	for _, order := range [][]*Element{
		{a, b, c}, {c, a, b}, {b, c, a},
	} {
		s := doc.Structure.initialState()
		for _, e := range order {
			s = s.Transition(e)
			require.NotNil(t, s)
		}
		assert.True(t, s.IsFinal())
	}

	// a member may not occur twice
	s := doc.Structure.initialState().Transition(a)
	require.NotNil(t, s)
	assert.Nil(t, s.Transition(a))
	assert.False(t, s.IsFinal())
}

func TestChoiceWithPlus(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT doc - - (a|b)+>
		<!ELEMENT (a|b) - - (#PCDATA)>`)

	doc := element(t, dtd, "doc")
	a, b := element(t, dtd, "a"), element(t, dtd, "b")

	s := doc.Structure.initialState()
	assert.False(t, s.IsFinal())
	s = s.Transition(b)
	require.NotNil(t, s)
	assert.True(t, s.IsFinal())
	s = s.Transition(a)
	require.NotNil(t, s)
	assert.True(t, s.IsFinal())
}

func TestMixedContent(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT p - - (#PCDATA|em)*>
		<!ELEMENT em - - (#PCDATA)>`)

	p := element(t, dtd, "p")
	em := element(t, dtd, "em")

	s := p.Structure.initialState()
	assert.True(t, s.IsFinal())
	s = s.Transition(textElement)
	require.NotNil(t, s)
	s = s.Transition(em)
	require.NotNil(t, s)
	s = s.Transition(textElement)
	require.NotNil(t, s)
	assert.True(t, s.IsFinal())
}

func TestFindOmittedPath(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT doc - - (front)>
		<!ELEMENT front O O (body)>
		<!ELEMENT body O O (p+)>
		<!ELEMENT p - O (#PCDATA)>`)

	doc := element(t, dtd, "doc")
	front := element(t, dtd, "front")
	body := element(t, dtd, "body")
	p := element(t, dtd, "p")

	s := doc.Structure.initialState()
	path := s.FindOmittedPath(p, 0)
	require.Equal(t, []*Element{front, body}, path)

	// direct child needs no path
	assert.Nil(t, s.FindOmittedPath(front, 0))

	// the search honours its depth bound
	assert.Nil(t, s.FindOmittedPath(p, 1))
}

func TestFindOmittedPathRequiresOmitOpen(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT doc - - (sec)>
		<!ELEMENT sec - - (p)>
		<!ELEMENT p - - (#PCDATA)>`)

	doc := element(t, dtd, "doc")
	p := element(t, dtd, "p")

	assert.Nil(t, doc.Structure.initialState().FindOmittedPath(p, 0),
		"sec forbids start-tag omission")
}

func TestUndefinedElementAccumulatesModel(t *testing.T) {
	dtd := NewDTD("")
	sym := dtd.symbol("x")
	e := dtd.defElement(sym)
	e.Undefined = true

	other := dtd.findElement(dtd.symbol("y"))
	e.Structure.allowFor(other)
	e.Structure.allowFor(textElement)
	e.Structure.allowFor(other) // idempotent

	require.Equal(t, ContentModel, e.Structure.Kind)
	require.Equal(t, MTOr, e.Structure.Content.Type)
	require.Equal(t, CardRep, e.Structure.Content.Card)
	assert.Len(t, e.Structure.Content.Group, 2)
}
