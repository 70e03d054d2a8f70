package sgml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentsAreInvisible(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		`<p>a<!-- ignore -- me -->b</p>`)

	require.Equal(t, []string{"(p", "-ab", ")p"}, c.events)
}

func TestProcessingInstruction(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		`<p>a<?target data?>b</p>`)

	require.Equal(t, []string{"(p", "-a", "?target data", "-b", ")p"}, c.events)
}

func TestMarkedSectionCDATA(t *testing.T) {
	c := parseDoc(t, DialectXML, "",
		`<r><![CDATA[a <b> & c]]></r>`)

	require.Equal(t, []string{"(r", "-a <b> & c", ")r"}, c.events)
}

func TestMarkedSectionCDATAWithLoneBrackets(t *testing.T) {
	// ]> that is not ]]> stays inside the section
	c := parseDoc(t, DialectXML, "",
		`<r><![CDATA[x]>y]]></r>`)

	require.Equal(t, []string{"(r", "-x]>y", ")r"}, c.events)
}

func TestMarkedSectionIgnore(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		`<p>a<![ IGNORE [hidden]]>b</p>`)

	require.Equal(t, []string{"(p", "-ab", ")p"}, c.events)
}

func TestMarkedSectionInclude(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		`<p>a<![ INCLUDE [visible]]>b</p>`)

	require.Equal(t, []string{"(p", "-avisibleb", ")p"}, c.events)
}

func TestDeclaredCDATAContent(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (script,#PCDATA)>
		 <!ELEMENT script - - CDATA>`,
		`<doc><script>if (a<b) &copy;</script>tail</doc>`)

	require.Equal(t,
		[]string{"(doc", "(script", "-if (a<b) &copy;", ")script", "-tail", ")doc"},
		c.events)
}

func TestDeclaredRCDATAContent(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT doc - - (q)>
		 <!ELEMENT q - - RCDATA>
		 <!ENTITY e "E">`,
		`<doc><q>a&e;b<i></q></doc>`)

	require.Equal(t, []string{"(doc", "(q", "-aEb<i>", ")q", ")doc"}, c.events)
}

func TestDeclaredContentEndTagIsCaseInsensitive(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT script - - CDATA>`,
		`<script>x</SCRIPT>`)

	require.Equal(t, []string{"(script", "-x", ")script"}, c.events)
}

func TestCharacterReferences(t *testing.T) {
	c := parseDoc(t, DialectXML, "",
		`<r>&#65;&#x42;&#9;</r>`)

	require.Equal(t, []string{"(r", "-AB\t", ")r"}, c.events)
}

func TestCharacterReferenceRoundTrip(t *testing.T) {
	// every representable code point survives &#c; decoding
	for _, code := range []int{9, 10, 32, 65, 128, 233, 255} {
		c := parseDoc(t, DialectSGML,
			`<!ELEMENT r - - (#PCDATA)>`,
			"<r>x&#"+itoa(code)+";y</r>")
		require.Len(t, c.events, 3)
		data := c.events[1]
		require.True(t, strings.HasPrefix(data, "-"))
		body := []byte(data[1:])
		require.Equal(t, []byte{'x', byte(code), 'y'}, body, "code %d", code)
	}
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

func TestNamedCharacterEntities(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT r - - (#PCDATA)>`,
		`<r>a&#TAB;b&#SPACE;c</r>`)

	require.Equal(t, []string{"(r", "-a\tb c", ")r"}, c.events)
}

func TestUnrepresentableCharacterEntity(t *testing.T) {
	c := parseDoc(t, DialectXML, "", `<r>&#8364;</r>`)

	require.Equal(t, []string{"(r", "&#8364;", ")r"}, c.events)
}

func TestUnterminatedCommentAtEOF(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		`<p>x<!-- never closed`)

	require.True(t, c.hasError(ErrSyntax))
	found := false
	for _, e := range c.errors {
		if strings.Contains(e.Message, "comment") {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", c.errors)
}

func TestUnterminatedPIAtEOF(t *testing.T) {
	c := parseDoc(t, DialectSGML, "", `<p>x<?stuck`)

	found := false
	for _, e := range c.errors {
		if strings.Contains(e.Message, "processing instruction") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCRLFCanonicalisation(t *testing.T) {
	c := parseDoc(t, DialectSGML,
		`<!ELEMENT p - - (#PCDATA)>`,
		"<p>a\r\nb\rc</p>")

	require.Equal(t, []string{"(p", "-a\nb\nc", ")p"}, c.events)
}

func TestErrorLocations(t *testing.T) {
	c := parseDoc(t, DialectXML, "", "<r>\n\n&nosuch;</r>")

	require.NotEmpty(t, c.errors)
	loc := c.errors[0].Location
	require.NotNil(t, loc)
	assert.Equal(t, 3, loc.Line)
}
