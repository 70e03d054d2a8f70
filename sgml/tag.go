package sgml

import "strings"

// ============================================================================
// 9. TAG INSTANCES
// ============================================================================

// tokenShape is a bitmask the attribute scanner builds while copying a value,
// so per-type validation is a couple of mask tests.
type tokenShape int

const (
	tokenEmpty    tokenShape = 0
	tokenAnyOther tokenShape = 1 << iota // some token has an illegal character
	tokenNamLater                        // non-digit name char after the first
	tokenNamFirst                        // some token starts with a name char
	tokenDigFirst                        // some token starts with a digit
)

// getAttributeValue scans one attribute value, quoted or not, and normalises
// it per the declared type: CDATA maps blanks to spaces and expands
// references; tokenised types expand, collapse whitespace, and fold case.
func (p *Parser) getAttributeValue(decl []byte, att *Attribute) ([]byte, bool) {
	dtd := p.dtd
	shape := tokenEmpty

	var buf []byte
	rest, lit, quoted := p.takeString(decl)
	if quoted {
		if att.Definition.Type == AttrCDATA {
			hasEnt := false
			tmp := make([]byte, 0, len(lit))
			for i := 0; i < len(lit); i++ {
				c := lit[i]
				if c == '\r' && i+1 < len(lit) && lit[i+1] == '\n' {
					continue
				}
				if dtd.charClass.has(c, clBlank) {
					c = ' '
				} else if dtd.charFunc.is(cfEro, c) {
					hasEnt = true
				} else if p.utf8Decode && c >= 0x80 {
					hasEnt = true
				}
				tmp = append(tmp, c)
			}
			if hasEnt {
				var out []byte
				p.expandEntities(tmp, &out)
				buf = out
			} else {
				buf = tmp
			}
		} else {
			var out []byte
			p.expandEntities(lit, &out)

			// canonicalise: split on blanks, rejoin single-spaced
			var toks [][]byte
			for _, t := range splitBlanks(dtd, out) {
				shape |= shapeOf(dtd, t)
				if !dtd.CaseSensitive {
					t = []byte(strings.ToLower(string(t)))
				}
				toks = append(toks, t)
			}
			buf = joinTokens(toks)
		}
	} else {
		rest2, val, ok := p.takeUnquoted(decl)
		if !ok {
			return decl, false
		}
		rest = rest2
		buf = val

		shape = shapeOf(dtd, buf)
		if shape == tokenEmpty || shape&tokenAnyOther != 0 {
			p.gripeFound(ErrSyntaxWarning, "Attribute value requires quotes", buf)
		}
		if !dtd.CaseSensitive && att.Definition.Type != AttrCDATA {
			buf = []byte(strings.ToLower(string(buf)))
		}
	}

	att.CDATA = ""
	att.Text = ""
	att.Number = 0

	switch att.Definition.Type {
	case AttrNumber:
		if shape != tokenDigFirst {
			p.gripeFound(ErrSyntaxWarning, "NUMBER expected", buf)
		}
		if dtd.NumberMode == NumberInteger {
			att.Number = parseInt(buf)
		} else {
			att.Text = string(buf)
		}
		return rest, true
	case AttrCDATA:
		att.CDATA = string(buf)
		return rest, true
	case AttrID, AttrIDRef, AttrName, AttrNotation:
		if shape == tokenEmpty || shape&(tokenDigFirst|tokenAnyOther) != 0 {
			p.gripeFound(ErrSyntaxWarning, "NAME expected", buf)
		}
	case AttrNameOf, AttrNMToken:
		if shape == tokenEmpty || shape&tokenAnyOther != 0 {
			p.gripeFound(ErrSyntaxWarning, "NMTOKEN expected", buf)
		}
		if att.Definition.Type == AttrNameOf {
			found := false
			for _, nl := range att.Definition.NameOf {
				if fold(nl.Name, dtd.CaseSensitive) == fold(string(buf), dtd.CaseSensitive) {
					found = true
					break
				}
			}
			if !found {
				p.gripeFound(ErrSyntaxWarning, "unexpected value", buf)
			}
		}
	case AttrNuToken:
		if shape&(tokenNamFirst|tokenAnyOther) != 0 {
			p.gripeFound(ErrSyntaxWarning, "NUTOKEN expected", buf)
		}
	case AttrEntity:
		if shape == tokenEmpty || shape&(tokenDigFirst|tokenAnyOther) != 0 {
			p.gripeFound(ErrSyntaxWarning, "entity NAME expected", buf)
		}
	case AttrNames, AttrIDRefs:
		if shape == tokenEmpty || shape&(tokenDigFirst|tokenAnyOther) != 0 {
			p.gripeFound(ErrSyntaxWarning, "NAMES expected", buf)
		}
	case AttrEntities:
		if shape == tokenEmpty || shape&(tokenDigFirst|tokenAnyOther) != 0 {
			p.gripeFound(ErrSyntaxWarning, "entity NAMES expected", buf)
		}
	case AttrNMTokens:
		if shape == tokenEmpty || shape&tokenAnyOther != 0 {
			p.gripeFound(ErrSyntaxWarning, "NMTOKENS expected", buf)
		}
	case AttrNumbers:
		if shape != tokenDigFirst {
			p.gripeFound(ErrSyntaxWarning, "NUMBERS expected", buf)
		}
	case AttrNuTokens:
		if shape&(tokenNamFirst|tokenAnyOther) != 0 {
			p.gripeFound(ErrSyntaxWarning, "NUTOKENS expected", buf)
		}
	}

	att.Text = string(buf)
	return rest, true
}

func splitBlanks(dtd *DTD, data []byte) [][]byte {
	var out [][]byte
	i := 0
	for i < len(data) {
		for i < len(data) && dtd.charClass.has(data[i], clBlank) {
			i++
		}
		start := i
		for i < len(data) && !dtd.charClass.has(data[i], clBlank) {
			i++
		}
		if i > start {
			out = append(out, data[start:i])
		}
	}
	return out
}

func joinTokens(toks [][]byte) []byte {
	var out []byte
	for i, t := range toks {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, t...)
	}
	return out
}

func shapeOf(dtd *DTD, tok []byte) tokenShape {
	shape := tokenEmpty
	for i, c := range tok {
		switch {
		case dtd.charClass.has(c, clDigit):
			if i == 0 {
				shape |= tokenDigFirst
			}
		case dtd.charClass.has(c, clName):
			if i == 0 {
				shape |= tokenNamFirst
			} else {
				shape |= tokenNamLater
			}
		default:
			shape |= tokenAnyOther
		}
	}
	return shape
}

func parseInt(buf []byte) int64 {
	var v int64
	for _, c := range buf {
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int64(c-'0')
	}
	return v
}

// processAttributes scans the attribute list of a start-tag. Bare enumerated
// names (value shorthand) attach to the first attribute declaring them, in
// declaration order.
func (p *Parser) processAttributes(e *Element, decl []byte) ([]byte, []Attribute) {
	dtd := p.dtd
	var atts []Attribute

	decl = p.skipLayout(decl)
	for len(decl) > 0 {
		rest, nm, ok := p.takeNmtoken(decl)
		if !ok {
			return decl, atts
		}
		decl = rest

		if s, ok := p.seeFunc(decl, cfVi); ok { // name=
			if !dtd.charClass.has(nm.Name[0], clNameStart) {
				p.gripeFound(ErrSyntaxWarning, "Illegal start of attribute-name", decl)
			}
			decl = s

			a := e.findAttribute(nm)
			if a == nil {
				a = &AttrDef{Name: nm, Type: AttrCDATA, Default: DefaultImplied}
				p.addAttribute(e, a)

				if !e.Undefined &&
					!(dtd.Dialect != DialectSGML &&
						(nm.Name == "xmlns" || strings.HasPrefix(nm.Name, "xmlns:"))) {
					p.gripe(ErrNoAttribute, e.Name.Name, nm.Name)
				}
			}

			att := Attribute{Definition: a}
			rest, ok := p.getAttributeValue(decl, &att)
			if ok {
				decl = rest
				if dup := findAttr(atts, a); dup {
					p.gripe(ErrRedefined, "attribute", a.Name.Name)
				} else {
					atts = append(atts, att)
				}
				continue
			}
		} else if e.Structure != nil { // value shorthand
			matched := false
			for _, a := range e.Attributes {
				if a.Type != AttrNameOf && a.Type != AttrNotation {
					continue
				}
				for _, nl := range a.NameOf {
					if nl == nm {
						if dtd.Dialect != DialectSGML {
							p.gripeFound(ErrSyntaxWarning, "Value short-hand in XML mode", decl)
						}
						atts = append(atts, Attribute{Definition: a, Text: nm.Name})
						matched = true
						break
					}
				}
				if matched {
					break
				}
			}
			if !matched {
				p.gripe(ErrNoAttributeValue, e.Name.Name, nm.Name)
			}
		} else {
			p.gripeFound(ErrSyntax, "Bad attribute", decl)
		}
	}

	return decl, atts
}

func findAttr(atts []Attribute, def *AttrDef) bool {
	for i := range atts {
		if atts[i].Definition == def {
			return true
		}
	}
	return false
}

// addDefaultAttributes appends the declared #FIXED and literal defaults not
// present in the instance. Their payloads are shared with the DTD.
func (p *Parser) addDefaultAttributes(e *Element, atts []Attribute) []Attribute {
	if e == textElement {
		return atts
	}

	for _, a := range e.Attributes {
		switch a.Default {
		case DefaultFixed, DefaultValue:
		default:
			continue
		}
		if findAttr(atts, a) {
			continue
		}
		cdata, text, num := a.defaultText(p.dtd.NumberMode)
		atts = append(atts, Attribute{
			Definition: a,
			CDATA:      cdata,
			Text:       text,
			Number:     num,
			IsDefault:  true,
		})
	}

	return atts
}

// processBeginElement handles a start-tag body (without '<').
func (p *Parser) processBeginElement(decl []byte) bool {
	dtd := p.dtd

	rest, id, ok := p.takeName(decl)
	if !ok {
		return p.gripeFound(ErrSyntax, "Bad open-element tag", decl)
	}
	decl = rest

	e := dtd.findElement(id)
	empty := false
	conref := false

	if e.Structure == nil {
		e.Undefined = true
		dtd.defElement(id)
	}

	p.openElement(e, true)

	decl, atts := p.processAttributes(e, decl)

	if dtd.Dialect != DialectSGML {
		if s, ok := p.seeFunc(decl, cfEtago2); ok { // XML <tag/>
			empty = true
			decl = s
		}
		p.updateSpaceMode(e, atts)
	} else {
		for i := range atts {
			if atts[i].Definition.Default == DefaultConref {
				empty = true
				conref = true
			}
		}
	}
	if len(decl) > 0 {
		p.gripeFound(ErrSyntax, "Bad attribute list", decl)
	}

	if !p.noDefaults {
		atts = p.addDefaultAttributes(e, atts)
	}

	if empty ||
		(dtd.Dialect == DialectSGML &&
			e.Structure != nil && e.Structure.Kind == ContentEmpty && !e.Undefined) {
		p.emptyElement = e
	} else {
		p.emptyElement = nil
	}

	if p.handler.OnBeginElement != nil {
		p.handler.OnBeginElement(p, e, atts)
	}

	if p.emptyElement != nil {
		p.emptyElement = nil
		p.closeElement(e, conref)
		if conref { // declared content may have armed the CDATA state
			p.cdataState = statePCDATA
			p.state = statePCDATA
		}
	}

	return true
}

// processEndElement handles an end-tag body (the part after "</").
func (p *Parser) processEndElement(decl []byte) bool {
	p.emitCData(true)

	if rest, id, ok := p.takeName(decl); ok && len(rest) == 0 {
		return p.closeElement(p.dtd.findElement(id), false)
	}

	if p.dtd.Shorttag && len(p.skipLayout(decl)) == 0 { // </> closes current
		return p.closeCurrentElement()
	}

	return p.gripeFound(ErrSyntax, "Bad close-element tag", decl)
}
