package sgml

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupEncoding(t *testing.T) {
	for name, want := range map[string]Encoding{
		"utf-8":        EncUTF8,
		"UTF-8":        EncUTF8,
		"iso-8859-1":   EncLatin1,
		"ISO-8859-1":   EncLatin1,
		"latin1":       EncLatin1,
		"windows-1252": EncLatin1,
	} {
		enc, ok := lookupEncoding(name)
		require.True(t, ok, name)
		assert.Equal(t, want, enc, name)
	}

	_, ok := lookupEncoding("ebcdic-nonsense")
	assert.False(t, ok)
}

func TestUnknownEncodingReported(t *testing.T) {
	c := parseDoc(t, DialectSGML, "",
		`<?xml version="1.0" encoding="shift_jis"?><r>x</r>`)

	assert.True(t, c.hasError(ErrExistence), "errors: %v", c.errorKinds())
}

func TestDecodeReaderLatin1Passthrough(t *testing.T) {
	r, err := DecodeReader(strings.NewReader("caf\xe9"), "iso-8859-1")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("caf\xe9"), data)
}

func TestDecodeReaderUTF8ToLatin1(t *testing.T) {
	// UTF-8 é becomes the single Latin-1 byte the parser expects
	r, err := DecodeReader(strings.NewReader("caf\xc3\xa9"), "utf-8")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, data)
}

func TestEncodeLatin1(t *testing.T) {
	assert.Equal(t, []byte{'a', 0xe9, 'b'}, EncodeLatin1("aéb"))
}

func TestXMLDeclarationPromotesDialect(t *testing.T) {
	c := &collector{}
	dtd := NewDTD("")
	p := NewParser(dtd, WithHandler(c.handler()))
	p.ProcessReader(strings.NewReader(
		`<?xml version="1.0" encoding="UTF-8"?><r>x</r>`), "", 0)

	assert.Equal(t, DialectXML, dtd.Dialect)
	assert.Equal(t, EncUTF8, dtd.Encoding)
	require.Equal(t, []string{"(r", "-x", ")r"}, c.events)
}
