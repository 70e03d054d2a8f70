package sgml

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 1. TEST HARNESS
// ============================================================================

// collector records the event stream as compact strings so tests can assert
// on whole sequences.
type collector struct {
	events []string
	errors []*ParseError
}

func (c *collector) handler() Handler {
	return Handler{
		OnBeginElement: func(_ *Parser, e *Element, atts []Attribute) bool {
			var sb strings.Builder
			sb.WriteString("(" + e.Name.Name)
			for i := range atts {
				fmt.Fprintf(&sb, " %s=%s", atts[i].Definition.Name.Name, atts[i].Value())
			}
			c.events = append(c.events, sb.String())
			return true
		},
		OnEndElement: func(_ *Parser, e *Element) bool {
			c.events = append(c.events, ")"+e.Name.Name)
			return true
		},
		OnData: func(_ *Parser, kind DataKind, data []byte) bool {
			prefix := "-"
			switch kind {
			case DataSDATA:
				prefix = "S"
			case DataNDATA:
				prefix = "N"
			}
			c.events = append(c.events, prefix+string(data))
			return true
		},
		OnPI: func(_ *Parser, data []byte) bool {
			c.events = append(c.events, "?"+string(data))
			return true
		},
		OnEntity: func(_ *Parser, ent *Entity, code int) bool {
			if ent != nil {
				c.events = append(c.events, "&"+ent.Name.Name+";")
			} else {
				c.events = append(c.events, fmt.Sprintf("&#%d;", code))
			}
			return true
		},
		OnError: func(_ *Parser, err *ParseError) bool {
			c.errors = append(c.errors, err)
			return true
		},
	}
}

func (c *collector) errorKinds() []ErrorKind {
	var out []ErrorKind
	for _, e := range c.errors {
		out = append(out, e.Kind)
	}
	return out
}

func (c *collector) hasError(kind ErrorKind) bool {
	for _, e := range c.errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// parseDoc runs a whole document through a fresh parser. dtdText, when
// non-empty, is loaded first as DTD content.
func parseDoc(t *testing.T, dialect Dialect, dtdText, doc string, opts ...Option) *collector {
	t.Helper()

	c := &collector{}
	dtd := NewDTD("")
	if dialect != DialectSGML {
		dtd.SetDialect(dialect)
	}
	p := NewParser(dtd, append(opts, WithHandler(c.handler()))...)
	if dtdText != "" {
		p.LoadDTD([]byte(dtdText))
	}
	p.ProcessReader(strings.NewReader(doc), "", 0)
	return c
}

// ============================================================================
// 2. END-TO-END SCENARIOS
// ============================================================================

func TestDoctypeWithInternalSubset(t *testing.T) {
	c := parseDoc(t, DialectSGML, "",
		`<!DOCTYPE x [<!ELEMENT x - - (#PCDATA)>]><x>hi</x>`)

	require.Equal(t, []string{"(x", "-hi", ")x"}, c.events)
	assert.Empty(t, c.errors)
}

func TestXMLEntityRedefinitionFirstWins(t *testing.T) {
	c := parseDoc(t, DialectXML, "",
		`<!ENTITY amp "&#38;#38;"><p>A&amp;B</p>`)

	require.Equal(t, []string{"(p", "-A&B", ")p"}, c.events)
	assert.True(t, c.hasError(ErrRedefined), "errors: %v", c.errorKinds())
}

func TestOmittedCloseAtEOF(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT a - - (b)><!ELEMENT b - - (#PCDATA)>`,
		`<a><b>`)

	require.Equal(t, []string{"(a", "(b", ")b", ")a"}, c.events)

	var omitted []string
	for _, e := range c.errors {
		if e.Kind == ErrOmittedClose {
			omitted = append(omitted, e.Message)
		}
	}
	require.Len(t, omitted, 2)
	assert.Contains(t, omitted[0], `"b"`)
	assert.Contains(t, omitted[1], `"a"`)
}

func TestUTF8DecodingOverLatin1(t *testing.T) {
	// é as UTF-8 bytes fed into a Latin-1 byte stream
	doc := `<?xml version="1.0" encoding="UTF-8"?><r>` + "\xc3\xa9" + `</r>`
	c := parseDoc(t, DialectSGML, "", doc)

	require.Equal(t, []string{"(r", "-\xe9", ")r"}, c.events)
	assert.Empty(t, c.errors)
}

func TestDuplicateAttributeFirstWins(t *testing.T) {
	c := parseDoc(t, DialectXML, "", `<r a=1 a=2/>`)

	require.Equal(t, []string{"(r a=1", ")r"}, c.events)
	assert.True(t, c.hasError(ErrRedefined))
}

func TestShortrefNewlinePattern(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (#PCDATA)>
		 <!ENTITY para SDATA "PARA">
		 <!SHORTREF m "&#RS;&#RS;" para>
		 <!USEMAP m doc>`,
		"<doc>x\n\ny</doc>")

	require.Equal(t, []string{"(doc", "-x", "SPARA", "-y", ")doc"}, c.events)
}

// ============================================================================
// 3. BALANCE AND STRUCTURE PROPERTIES
// ============================================================================

func TestBeginEndBalance(t *testing.T) {
	docs := []string{
		`<a><b>x</b><b>y</b></a>`,
		`<a><b>x<c/></b></a>`,
		`<a>t1<b/>t2<b/>t3</a>`,
	}
	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			c := parseDoc(t, DialectXML, "", doc)

			depth := 0
			for _, ev := range c.events {
				switch ev[0] {
				case '(':
					depth++
				case ')':
					depth--
				}
				assert.GreaterOrEqual(t, depth, 0)
			}
			assert.Equal(t, 0, depth, "events: %v", c.events)
		})
	}
}

func TestEmptyElementHasNoContentEvents(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (img,#PCDATA)><!ELEMENT img - O EMPTY>`,
		`<doc><img>text</doc>`)

	require.Equal(t, []string{"(doc", "(img", ")img", "-text", ")doc"}, c.events)
}

// ============================================================================
// 4. SHORTTAG AND NET
// ============================================================================

func TestXMLSelfClosingTag(t *testing.T) {
	c := parseDoc(t, DialectXML, "", `<foo/>`)
	require.Equal(t, []string{"(foo", ")foo"}, c.events)
}

func TestSGMLNETShorttag(t *testing.T) {
	c := parseDoc(t, DialectSGML, "", `<foo/bar/`)
	require.Equal(t, []string{"(foo", "-bar", ")foo"}, c.events)
}

func TestEmptyEndTagClosesCurrent(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT a - - (#PCDATA)>`,
		`<a>x</>`)
	require.Equal(t, []string{"(a", "-x", ")a"}, c.events)
}

// ============================================================================
// 5. OMITTED TAGS
// ============================================================================

func TestOmittedOpenTagInsertion(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (sec)>
		 <!ELEMENT sec O O (p)>
		 <!ELEMENT p - O (#PCDATA)>`,
		`<doc><p>hi</doc>`)

	require.Equal(t, []string{"(doc", "(sec", "(p", "-hi", ")p", ")sec", ")doc"}, c.events)
}

func TestEnforcedOuterElement(t *testing.T) {
	c := parseDoc(t, DialectSGML, "",
		`<!DOCTYPE doc [<!ELEMENT doc O O (p*)><!ELEMENT p - O (#PCDATA)>]><p>hi`)

	require.Equal(t, []string{"(doc", "(p", "-hi", ")p", ")doc"}, c.events)
}

func TestNotOpenEndTagIgnored(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT a - - (#PCDATA)>`,
		`<a>x</b></a>`)

	require.Equal(t, []string{"(a", "-x", ")a"}, c.events)
	assert.True(t, c.hasError(ErrNotOpen))
}

func TestExclusionReported(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (a)* -(b)>
		 <!ELEMENT a - - (b?)>
		 <!ELEMENT b - - (#PCDATA)>`,
		`<doc><a><b>x</b></a></doc>`)

	assert.True(t, c.hasError(ErrNotAllowed), "errors: %v", c.errorKinds())
}

func TestInclusionAcceptedAnywhere(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (a) +(note)>
		 <!ELEMENT a - - (#PCDATA)>
		 <!ELEMENT note - - (#PCDATA)>`,
		`<doc><a>x<note>n</note>y</a></doc>`)

	require.Equal(t,
		[]string{"(doc", "(a", "-x", "(note", "-n", ")note", "-y", ")a", ")doc"},
		c.events)
	assert.Empty(t, c.errors)
}

// ============================================================================
// 6. VALIDATION DIAGNOSTICS
// ============================================================================

func TestIncompleteElementWarning(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (a,b)>
		 <!ELEMENT a - - (#PCDATA)>
		 <!ELEMENT b - - (#PCDATA)>`,
		`<doc><a>x</a></doc>`)

	assert.True(t, c.hasError(ErrValidate), "errors: %v", c.errorKinds())
}

func TestPCDATANotAllowed(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (a)>
		 <!ELEMENT a - - (#PCDATA)>`,
		`<doc>stray<a>x</a></doc>`)

	assert.True(t, c.hasError(ErrNotAllowedPCDATA), "errors: %v", c.errorKinds())
}

func TestUnknownEntityReported(t *testing.T) {
	c := parseDoc(t, DialectXML, "", `<p>&nosuch;</p>`)
	assert.True(t, c.hasError(ErrExistence))
}

func TestDefaultEntityCatchesUnknown(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)><!ENTITY #DEFAULT "?">`,
		`<p>a&zzz;b</p>`)

	require.Equal(t, []string{"(p", "-a?b", ")p"}, c.events)
}

// ============================================================================
// 7. STRAY MARKUP RECOVERY
// ============================================================================

func TestStrayLessThanRecoveredAsData(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		`<p>1 < 2</p>`)

	require.Equal(t, []string{"(p", "-1 < 2", ")p"}, c.events)
}

func TestAttributeValueWithComments(t *testing.T) {
	c := parseDoc(t, DialectXML, "", `<a b="--ugh--"/>`)
	require.Equal(t, []string{"(a b=--ugh--", ")a"}, c.events)
}

// ============================================================================
// 8. CONREF AND EMPTY AUTO-CLOSE
// ============================================================================

func TestConrefSelfCloses(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (fig,#PCDATA)>
		 <!ELEMENT fig - - (#PCDATA)>
		 <!ATTLIST fig ref CDATA #CONREF>`,
		`<doc><fig ref="x">tail</doc>`)

	require.Equal(t, []string{"(doc", "(fig ref=x", ")fig", "-tail", ")doc"}, c.events)
}

func TestSGMLEmptyElementAutoCloses(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (br,#PCDATA)><!ELEMENT br - O EMPTY>`,
		`<doc><br>after</doc>`)

	require.Equal(t, []string{"(doc", "(br", ")br", "-after", ")doc"}, c.events)
}

// ============================================================================
// 9. EVENT STREAM ADAPTER
// ============================================================================

func TestEventsChannel(t *testing.T) {
	p := NewParser(func() *DTD { d := NewDTD(""); d.SetDialect(DialectXML); return d }())

	var kinds []EventKind
	for ev := range p.Events(context.Background(), strings.NewReader(`<a><b>x</b></a>`)) {
		kinds = append(kinds, ev.Kind)
	}

	require.Equal(t, []EventKind{
		EventBeginElement, EventBeginElement, EventData,
		EventEndElement, EventEndElement,
	}, kinds)
}

// ============================================================================
// 10. RESET AND REUSE
// ============================================================================

func TestParserReset(t *testing.T) {
	c := &collector{}
	p := NewParser(nil, WithHandler(c.handler()))
	p.LoadDTD([]byte(`<!ELEMENT a - - (#PCDATA)>`))

	p.ProcessReader(strings.NewReader(`<a>one</a>`), "", 0)
	p.Reset()
	p.ProcessReader(strings.NewReader(`<a>two</a>`), "", 0)

	require.Equal(t, []string{"(a", "-one", ")a", "(a", "-two", ")a"}, c.events)
}
