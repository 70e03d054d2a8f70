package sgml

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ============================================================================
// 14. CHARACTER ENCODINGS
// ============================================================================
// The parser's input is an 8-bit-clean byte stream in its input charset
// (Latin-1 by default); an <?xml encoding=?> declaration only switches on
// UTF-8 assembly. Name resolution and transcoding lean on the charset
// machinery of x/net and x/text instead of hand-rolled tables.

// lookupEncoding resolves an encoding name (with all its IANA aliases) to
// the parser's Encoding enum.
func lookupEncoding(name string) (Encoding, bool) {
	e, canonical := charset.Lookup(name)
	if e == nil {
		return EncLatin1, false
	}
	switch canonical {
	case "utf-8":
		return EncUTF8, true
	case "windows-1252", "iso-8859-1", "latin1":
		// html/charset folds ISO-8859-1 into windows-1252
		return EncLatin1, true
	}
	// unsupported but known encodings are rejected by name
	if strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return EncUTF8, true
	}
	return EncLatin1, false
}

// DecodeReader converts a stream in the named encoding into the parser's
// Latin-1 based input charset. Use it to feed documents that are not already
// Latin-1 or UTF-8-over-Latin-1 bytes.
func DecodeReader(r io.Reader, encodingName string) (io.Reader, error) {
	e, canonical := charset.Lookup(encodingName)
	if e == nil {
		return nil, fmt.Errorf("unsupported charset: %s", encodingName)
	}
	if canonical == "windows-1252" || canonical == "iso-8859-1" {
		return r, nil // already the input charset
	}
	// decode to UTF-8, then re-encode into Latin-1 for the byte machine
	return transform.NewReader(r,
		transform.Chain(e.NewDecoder(), charmap.ISO8859_1.NewEncoder())), nil
}

// EncodeLatin1 renders a string as input-charset bytes, substituting '?' for
// anything outside Latin-1. Handy for synthesising test documents.
func EncodeLatin1(s string) []byte {
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(strings.Map(func(r rune) rune {
			if r > 0xff {
				return '?'
			}
			return r
		}, s))
	}
	return out
}
