package sgml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityDeclarations(t *testing.T) {
	dtd := buildDTD(t, `
		<!ENTITY lit "plain value">
		<!ENTITY chap2 SYSTEM "chap2.sgml">
		<!ENTITY pub PUBLIC "-//Acme//DTD Test//EN" "test.dtd">
		<!ENTITY bullet SDATA "[bullet]">
		<!ENTITY open STARTTAG "p">
		<!ENTITY close ENDTAG "p">`)

	byName := map[string]*Entity{}
	for _, e := range dtd.Entities {
		byName[e.Name.Name] = e
	}

	require.Len(t, dtd.Entities, 6)
	assert.Equal(t, "plain value", string(byName["lit"].Value))
	assert.Equal(t, EntitySystem, byName["chap2"].Type)
	assert.Equal(t, "chap2.sgml", byName["chap2"].SystemID)
	assert.Equal(t, "-//Acme//DTD Test//EN", byName["pub"].PublicID)
	assert.Equal(t, "test.dtd", byName["pub"].SystemID)
	assert.Equal(t, DataSDATA, byName["bullet"].Content)

	// STARTTAG/ENDTAG values are rewrapped as SGML markup
	assert.Equal(t, "<p>", string(byName["open"].Value))
	assert.Equal(t, DataSGML, byName["open"].Content)
	assert.Equal(t, "</p>", string(byName["close"].Value))
}

func TestParameterEntityExpansion(t *testing.T) {
	dtd := buildDTD(t, `
		<!ENTITY % inline "(#PCDATA|em)*">
		<!ELEMENT p - - %inline;>
		<!ELEMENT em - - (#PCDATA)>`)

	p := element(t, dtd, "p")
	require.Equal(t, ContentModel, p.Structure.Kind)
	require.Equal(t, MTOr, p.Structure.Content.Type)
	assert.Equal(t, CardRep, p.Structure.Content.Card)
}

func TestRecursiveParameterEntities(t *testing.T) {
	dtd := buildDTD(t, `
		<!ENTITY % base "#PCDATA">
		<!ENTITY % inline "(%base;|em)*">
		<!ELEMENT p - - %inline;>
		<!ELEMENT em - - (#PCDATA)>`)

	p := element(t, dtd, "p")
	require.Equal(t, MTOr, p.Structure.Content.Type)
	assert.Equal(t, MTPCDATA, p.Structure.Content.Group[0].Type)
}

func TestAttlistTypesAndDefaults(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT p - - (#PCDATA)>
		<!ATTLIST p
			id      ID              #IMPLIED
			class   CDATA           "plain"
			align   (left|right)    left
			width   NUMBER          #REQUIRED
			keep    CDATA           #FIXED "yes"
			ref     IDREF           #CONREF>`)

	p := element(t, dtd, "p")
	require.Len(t, p.Attributes, 6)

	byName := map[string]*AttrDef{}
	for _, a := range p.Attributes {
		byName[a.Name.Name] = a
	}

	assert.Equal(t, AttrID, byName["id"].Type)
	assert.Equal(t, DefaultImplied, byName["id"].Default)
	assert.Equal(t, "plain", byName["class"].DefCDATA)
	assert.Equal(t, AttrNameOf, byName["align"].Type)
	require.Len(t, byName["align"].NameOf, 2)
	assert.Equal(t, "left", byName["align"].DefName.Name)
	assert.Equal(t, DefaultRequired, byName["width"].Default)
	assert.Equal(t, DefaultFixed, byName["keep"].Default)
	assert.Equal(t, DefaultConref, byName["ref"].Default)
}

func TestAttlistSharedByNameGroup(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT (a|b) - - (#PCDATA)>
		<!ATTLIST (a|b) common CDATA #IMPLIED>`)

	a := element(t, dtd, "a")
	b := element(t, dtd, "b")
	require.Len(t, a.Attributes, 1)
	require.Len(t, b.Attributes, 1)
	assert.Same(t, a.Attributes[0], b.Attributes[0])
	assert.Equal(t, 2, a.Attributes[0].refs)
}

func TestNotationDeclaration(t *testing.T) {
	dtd := buildDTD(t, `
		<!NOTATION gif SYSTEM "gifview">
		<!NOTATION tex PUBLIC "+//ISBN 0-201-13448-9//NOTATION TeX//EN">`)

	require.Len(t, dtd.Notations, 2)
	assert.Equal(t, "gifview", dtd.Notations[0].SystemID)
	assert.Equal(t, "+//ISBN 0-201-13448-9//NOTATION TeX//EN", dtd.Notations[1].PublicID)
}

func TestRedefinitionsSilentlyIgnored(t *testing.T) {
	var errs []*ParseError
	dtd := NewDTD("")
	p := NewParser(dtd, WithHandler(Handler{
		OnError: func(_ *Parser, err *ParseError) bool {
			errs = append(errs, err)
			return true
		},
	}))
	p.LoadDTD([]byte(`
		<!ENTITY e "one">
		<!ENTITY e "two">
		<!NOTATION n SYSTEM "x">
		<!NOTATION n SYSTEM "y">`))

	require.Len(t, dtd.Entities, 1)
	assert.Equal(t, "one", string(dtd.Entities[0].Value))
	require.Len(t, dtd.Notations, 1)
	assert.Equal(t, "x", dtd.Notations[0].SystemID)

	for _, e := range errs {
		assert.Equal(t, ErrRedefined, e.Kind)
		assert.Equal(t, SeverityStyle, e.Severity)
	}
	assert.Len(t, errs, 2)
}

func TestElementOmissionFlags(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT a - - (#PCDATA)>
		<!ELEMENT b O O (#PCDATA)>
		<!ELEMENT c - O (#PCDATA)>`)

	assert.False(t, element(t, dtd, "a").Structure.OmitOpen)
	assert.False(t, element(t, dtd, "a").Structure.OmitClose)
	assert.True(t, element(t, dtd, "b").Structure.OmitOpen)
	assert.True(t, element(t, dtd, "b").Structure.OmitClose)
	assert.False(t, element(t, dtd, "c").Structure.OmitOpen)
	assert.True(t, element(t, dtd, "c").Structure.OmitClose)
}

func TestShortrefDeclarationCompilesEnds(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT doc - - (#PCDATA)>
		<!ENTITY dash SDATA "--">
		<!SHORTREF m "--" dash "B" dash>
		<!USEMAP m doc>`)

	require.Len(t, dtd.Shortrefs, 1)
	sr := dtd.Shortrefs[0]
	require.True(t, sr.Defined)
	require.Len(t, sr.Map, 2)

	assert.True(t, sr.ends['-'])
	// a trailing blank meta marks every blank byte
	assert.True(t, sr.ends[' '])
	assert.True(t, sr.ends['\n'])
	assert.False(t, sr.ends['x'])

	assert.Same(t, sr, element(t, dtd, "doc").Map)
}

func TestXMLSpacePropagation(t *testing.T) {
	dtd := buildDTD(t, `
		<!ELEMENT pre - - (#PCDATA)>
		<!ATTLIST pre xml:space CDATA "preserve">`)

	assert.Equal(t, SpacePreserve, element(t, dtd, "pre").SpaceMode)
}

// ----------------------------------------------------------------------------
// DTD round trip
// ----------------------------------------------------------------------------

func TestDumpDTDRoundTrip(t *testing.T) {
	text := `
		<!NOTATION gif SYSTEM "gifview">
		<!ENTITY % part "(#PCDATA)">
		<!ENTITY bullet SDATA "[bullet]">
		<!ENTITY lit "plain">
		<!ELEMENT doc - - (head,body+) -(verbatim)>
		<!ELEMENT head O O (#PCDATA)>
		<!ELEMENT body - O (#PCDATA|em)*>
		<!ELEMENT (em|verbatim) - - (#PCDATA)>
		<!ATTLIST body
			align (left|right) left
			class CDATA #IMPLIED>`

	first := buildDTD(t, text)

	var buf bytes.Buffer
	require.NoError(t, DumpDTD(&buf, first))

	second := buildDTD(t, buf.String())

	assert.Equal(t, len(definedElements(first)), len(definedElements(second)))
	assert.Equal(t, len(first.Entities), len(second.Entities))
	assert.Equal(t, len(first.Notations), len(second.Notations))

	for _, name := range []string{"doc", "head", "body", "em", "verbatim"} {
		e1 := element(t, first, name)
		e2 := element(t, second, name)
		assert.Equal(t, e1.Structure.Kind, e2.Structure.Kind, name)
		assert.Equal(t, e1.Structure.OmitOpen, e2.Structure.OmitOpen, name)
		assert.Equal(t, e1.Structure.OmitClose, e2.Structure.OmitClose, name)
		assert.Equal(t, len(e1.Attributes), len(e2.Attributes), name)
	}

	b1 := element(t, first, "body")
	b2 := element(t, second, "body")
	assert.Equal(t, b1.Attributes[0].Type, b2.Attributes[0].Type)
	assert.Equal(t, b1.Attributes[0].DefName.Name, b2.Attributes[0].DefName.Name)

	assert.Equal(t, modelString(element(t, first, "doc").Structure.Content),
		modelString(element(t, second, "doc").Structure.Content))
}

func definedElements(dtd *DTD) []*Element {
	var out []*Element
	for _, e := range dtd.Elements {
		if !e.Undefined {
			out = append(out, e)
		}
	}
	return out
}

func modelString(m *Model) string {
	var sb strings.Builder
	dumpModel(&sb, m, true)
	return sb.String()
}
