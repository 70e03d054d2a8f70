package sgml

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceHandlerFormat(t *testing.T) {
	var buf bytes.Buffer

	dtd := NewDTD("")
	p := NewParser(dtd, WithHandler(TraceHandler(&buf)))
	p.LoadDTD([]byte(`
		<!ELEMENT doc - - (#PCDATA)>
		<!ATTLIST doc
			class CDATA #IMPLIED
			align (left|right) left>`))
	p.ProcessReader(strings.NewReader(`<doc class="x">hi</doc>`), "", 0)

	out := buf.String()
	assert.Contains(t, out, "ACLASS CDATA x\n")
	assert.Contains(t, out, "AALIGN NAME LEFT\n")
	assert.Contains(t, out, "(DOC\n")
	assert.Contains(t, out, "-hi\n")
	assert.Contains(t, out, ")DOC\n")
}

func TestTraceHandlerEscapesNewlines(t *testing.T) {
	var buf bytes.Buffer
	p := NewParser(nil, WithHandler(TraceHandler(&buf)))
	p.LoadDTD([]byte(`<!ELEMENT doc - - (#PCDATA)>`))
	p.ProcessReader(strings.NewReader("<doc>a\nb</doc>"), "", 0)

	assert.Contains(t, buf.String(), `-a\nb`)
}

func TestRunUsageErrors(t *testing.T) {
	assert.Equal(t, 1, Run("sgml", nil))
	assert.Equal(t, 1, Run("sgml", []string{"-bogus", "x"}))
}

func TestRunParsesFile(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.sgml")
	require.NoError(t, os.WriteFile(doc,
		[]byte(`<!DOCTYPE d [<!ELEMENT d - - (#PCDATA)>]><d>ok</d>`), 0o644))

	assert.Equal(t, 0, Run("sgml", []string{"-s", doc}))
}

func TestRunWithDTDArgument(t *testing.T) {
	dir := t.TempDir()
	dtdFile := filepath.Join(dir, "d.dtd")
	require.NoError(t, os.WriteFile(dtdFile,
		[]byte(`<!ELEMENT d - - (#PCDATA)>`), 0o644))
	doc := filepath.Join(dir, "doc.sgml")
	require.NoError(t, os.WriteFile(doc, []byte(`<d>ok</d>`), 0o644))

	assert.Equal(t, 0, Run("sgml", []string{"-s", dtdFile, doc}))
}
