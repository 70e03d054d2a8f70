package sgml

import (
	"bytes"
	"strconv"
)

// ============================================================================
// 5. DECLARATION PARSER
// ============================================================================
// The lexer hands over the body of every <...> construct as one byte slice;
// everything here scans those slices. The scanning primitives return the
// remaining input plus the parsed item, the failure being a false flag so
// callers can try the next alternative, the way the original grammar does.

// ----------------------------------------------------------------------------
// scanning primitives
// ----------------------------------------------------------------------------

// skipLayout advances over blanks and -- comments --.
func (p *Parser) skipLayout(in []byte) []byte {
	dtd := p.dtd
	cmt := dtd.charFunc.fn[cfCmt]
	for len(in) > 0 {
		if dtd.charClass.has(in[0], clBlank) {
			in = in[1:]
			continue
		}
		if len(in) > 1 && in[0] == cmt && in[1] == cmt {
			in = in[2:]
			for len(in) > 0 {
				if len(in) > 1 && in[0] == cmt && in[1] == cmt {
					in = in[2:]
					break
				}
				in = in[1:]
			}
			continue
		}
		break
	}
	return in
}

// seeFunc consumes the byte bound to f.
func (p *Parser) seeFunc(in []byte, f charFunc) ([]byte, bool) {
	if len(in) > 0 && p.dtd.charFunc.is(f, in[0]) {
		return in[1:], true
	}
	return in, false
}

// seeIdentifier matches a reserved word case-insensitively (id must be
// lowercase) and requires it not to run into further name characters.
func (p *Parser) seeIdentifier(in []byte, id string) ([]byte, bool) {
	in = p.skipLayout(in)
	i := 0
	for i < len(id) {
		if len(in) == 0 || lowerByte(in[0]) != id[i] {
			return in, false
		}
		in = in[1:]
		i++
	}
	if len(in) > 0 && p.dtd.charClass.has(in[0], clName) {
		return in, false
	}
	return p.skipLayout(in), true
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// takeName scans a NAME, folds it per the DTD, interns it, and skips
// trailing layout.
func (p *Parser) takeName(in []byte) ([]byte, *Symbol, bool) {
	dtd := p.dtd
	in = p.skipLayout(in)
	if len(in) == 0 || !dtd.charClass.has(in[0], clNameStart) {
		return in, nil, false
	}
	var buf []byte
	for len(in) > 0 && dtd.charClass.has(in[0], clName) {
		buf = append(buf, in[0])
		in = in[1:]
	}
	return p.skipLayout(in), dtd.symbol(string(buf)), true
}

// takeEntityName is takeName under the entity folding rule, and does not eat
// trailing layout (a reference may be closed by ';' immediately).
func (p *Parser) takeEntityName(in []byte) ([]byte, *Symbol, bool) {
	dtd := p.dtd
	in = p.skipLayout(in)
	if len(in) == 0 || !dtd.charClass.has(in[0], clNameStart) {
		return in, nil, false
	}
	var buf []byte
	for len(in) > 0 && dtd.charClass.has(in[0], clName) {
		buf = append(buf, in[0])
		in = in[1:]
	}
	return in, dtd.entitySymbol(string(buf)), true
}

// takeNmtoken scans a name token (may start with any name character).
func (p *Parser) takeNmtoken(in []byte) ([]byte, *Symbol, bool) {
	dtd := p.dtd
	in = p.skipLayout(in)
	if len(in) == 0 || !dtd.charClass.has(in[0], clName) {
		return in, nil, false
	}
	var buf []byte
	for len(in) > 0 && dtd.charClass.has(in[0], clName) {
		buf = append(buf, in[0])
		in = in[1:]
	}
	return p.skipLayout(in), dtd.symbol(string(buf)), true
}

// takeNutoken scans a number token: digits first, name characters after.
func (p *Parser) takeNutoken(in []byte) ([]byte, *Symbol, bool) {
	dtd := p.dtd
	in = p.skipLayout(in)
	if len(in) == 0 || !dtd.charClass.has(in[0], clDigit) {
		return in, nil, false
	}
	var buf []byte
	for len(in) > 0 && dtd.charClass.has(in[0], clName) {
		buf = append(buf, in[0])
		in = in[1:]
	}
	if len(buf) > 8 {
		p.gripe(ErrLimit, "nutoken length")
	}
	return p.skipLayout(in), dtd.symbol(string(buf)), true
}

// takeNumber scans a NUMBER default per the DTD's number mode.
func (p *Parser) takeNumber(in []byte, at *AttrDef) ([]byte, bool) {
	dtd := p.dtd
	in = p.skipLayout(in)
	switch dtd.NumberMode {
	case NumberToken:
		var buf []byte
		for len(in) > 0 && dtd.charClass.has(in[0], clDigit) {
			buf = append(buf, in[0])
			in = in[1:]
		}
		if len(buf) == 0 {
			return in, false
		}
		at.DefName = dtd.symbol(string(buf))
		return p.skipLayout(in), true
	case NumberInteger:
		i := 0
		for i < len(in) && dtd.charClass.has(in[i], clDigit) {
			i++
		}
		if i == 0 {
			return in, false
		}
		v, err := strconv.ParseInt(string(in[:i]), 10, 64)
		if err != nil {
			return in, false
		}
		at.DefNumber = v
		return p.skipLayout(in[i:]), true
	}
	return in, false
}

// takeString scans a quoted literal and skips surrounding layout. Note this
// skips comments too, which is wrong inside tags; the attribute scanner works
// around it the same way the grammar always has.
func (p *Parser) takeString(in []byte) ([]byte, []byte, bool) {
	in = p.skipLayout(in)
	if len(in) == 0 {
		return in, nil, false
	}
	if !p.dtd.charFunc.is(cfLit, in[0]) && !p.dtd.charFunc.is(cfLita, in[0]) {
		return in, nil, false
	}
	q := in[0]
	in = in[1:]
	end := bytes.IndexByte(in, q)
	if end < 0 {
		return in, nil, false
	}
	return p.skipLayout(in[end+1:]), in[:end], true
}

// takeNmtokenChars scans name characters into a (folded) string.
func (p *Parser) takeNmtokenChars(in []byte) ([]byte, []byte, bool) {
	dtd := p.dtd
	in = p.skipLayout(in)
	if len(in) == 0 || !dtd.charClass.has(in[0], clName) {
		return in, nil, false
	}
	var buf []byte
	for len(in) > 0 && dtd.charClass.has(in[0], clName) {
		c := in[0]
		if !dtd.CaseSensitive {
			c = lowerByte(c)
		}
		buf = append(buf, c)
		in = in[1:]
	}
	return p.skipLayout(in), buf, true
}

// takeUnquoted scans an unquoted attribute value. It stops at blanks and, in
// shorttag or XML-tail position, at '/'. Leading comments are NOT skipped:
// --x-- is a value here.
func (p *Parser) takeUnquoted(in []byte) ([]byte, []byte, bool) {
	dtd := p.dtd
	end2 := dtd.charFunc.fn[cfEtago2]

	for len(in) > 0 && dtd.charClass.has(in[0], clBlank) {
		in = in[1:]
	}
	var buf []byte
	for len(in) > 0 && !dtd.charClass.has(in[0], clBlank) {
		if in[0] == end2 && (dtd.Shorttag || (len(in) == 1 && dtd.Dialect != DialectSGML)) {
			break
		}
		buf = append(buf, in[0])
		in = in[1:]
	}
	return p.skipLayout(in), buf, true
}

// takeNameGroup scans (name sep name ...) with the given separator.
func (p *Parser) takeNameGroup(in []byte, sep charFunc) ([]byte, []*Symbol, bool) {
	s, ok := p.seeFunc(in, cfGrpo)
	if !ok {
		return in, nil, false
	}
	var names []*Symbol
	for {
		rest, id, ok := p.takeName(s)
		if !ok {
			p.gripeFound(ErrSyntax, "Name expected", s)
			return in, nil, false
		}
		names = append(names, id)
		if rest2, ok := p.seeFunc(rest, sep); ok {
			s = p.skipLayout(rest2)
			continue
		}
		if rest2, ok := p.seeFunc(rest, cfGrpc); ok {
			return p.skipLayout(rest2), names, true
		}
		p.gripeFound(ErrSyntax, "Bad name-group", rest)
		return in, nil, false
	}
}

// seeNameGroupSep accepts any of , | & the first time and then insists on
// consistency.
func (p *Parser) seeNameGroupSep(in []byte, sep *charFunc) ([]byte, bool) {
	if *sep != cfCount { // decided
		if s, ok := p.seeFunc(in, *sep); ok {
			return p.skipLayout(s), true
		}
		return in, false
	}
	for _, f := range []charFunc{cfSeq, cfOr, cfAnd} {
		if s, ok := p.seeFunc(in, f); ok {
			*sep = f
			return p.skipLayout(s), true
		}
	}
	return in, false
}

// takeElementList accepts either one name or a model group and yields the
// element list.
func (p *Parser) takeElementList(in []byte) ([]byte, []*Element, bool) {
	dtd := p.dtd
	if _, ok := p.seeFunc(in, cfGrpo); ok {
		rest, m, ok := p.makeModel(in)
		if !ok {
			return in, nil, false
		}
		var els []*Element
		forElementsInModel(m, func(e *Element) { els = append(els, e) })
		return rest, els, true
	}
	rest, id, ok := p.takeName(in)
	if !ok {
		p.gripeFound(ErrSyntax, "Name expected", in)
		return in, nil, false
	}
	return rest, []*Element{dtd.findElement(id)}, true
}

// ----------------------------------------------------------------------------
// content models
// ----------------------------------------------------------------------------

// makeModel parses a content-model group or token starting at in.
func (p *Parser) makeModel(in []byte) ([]byte, *Model, bool) {
	dtd := p.dtd
	m := &Model{}
	in = p.skipLayout(in)

	if s, ok := p.seeIdentifier(in, "#pcdata"); ok {
		m.Type = MTPCDATA
		m.Card = CardOne
		return s, m, true
	}

	if s, id, ok := p.takeName(in); ok {
		m.Type = MTElement
		m.Element = dtd.findElement(id)
		in = s
	} else {
		s, ok := p.seeFunc(in, cfGrpo)
		if !ok {
			p.gripeFound(ErrSyntax, "Name group expected", in)
			return in, nil, false
		}
		in = s
		for {
			rest, sub, ok := p.makeModel(in)
			if !ok {
				return in, nil, false
			}
			in = rest
			m.Group = append(m.Group, sub)

			var mt ModelType
			if s, ok := p.seeFunc(in, cfOr); ok {
				in, mt = s, MTOr
			} else if s, ok := p.seeFunc(in, cfSeq); ok {
				in, mt = s, MTSeq
			} else if s, ok := p.seeFunc(in, cfAnd); ok {
				in, mt = s, MTAnd
			} else if s, ok := p.seeFunc(in, cfGrpc); ok {
				in = s
				break
			} else {
				p.gripeFound(ErrSyntax, "Connector ('|', ',' or '&') expected", in)
				return in, nil, false
			}
			in = p.skipLayout(in)

			if m.Type != mt {
				if m.Type == MTUndef {
					m.Type = mt
				} else {
					p.gripeFound(ErrSyntax, "Different connector types in model", in)
					return in, nil, false
				}
			}
		}
	}

	if s, ok := p.seeFunc(in, cfOpt); ok {
		in, m.Card = s, CardOpt
	} else if s, ok := p.seeFunc(in, cfRep); ok {
		in, m.Card = s, CardRep
	} else if s, ok := p.seeFunc(in, cfPlus); ok {
		// (x) +(y) is an inclusion, not a cardinality
		if _, grp := p.seeFunc(p.skipLayout(s), cfGrpo); !grp {
			in, m.Card = s, CardPlus
		}
	} else {
		m.Card = CardOne
	}

	// simplify single-member undecided groups: (e+), ((a|b))
	if m.Type == MTUndef && len(m.Group) == 1 {
		sub := m.Group[0]
		switch {
		case sub.Card == CardOne:
			card := m.Card
			*m = *sub
			m.Card = card
		case m.Card == CardOne:
			*m = *sub
		default:
			m.Type = MTOr
		}
	}

	return p.skipLayout(in), m, true
}

// processModel parses the declared-content part of <!ELEMENT>.
func (p *Parser) processModel(def *ElementDef, in []byte) ([]byte, bool) {
	in = p.skipLayout(in)
	if s, ok := p.seeIdentifier(in, "empty"); ok {
		def.Kind = ContentEmpty
		return s, true
	}
	if s, ok := p.seeIdentifier(in, "cdata"); ok {
		def.Kind = ContentCDATA
		return s, true
	}
	if s, ok := p.seeIdentifier(in, "rcdata"); ok {
		def.Kind = ContentRCDATA
		return s, true
	}
	if s, ok := p.seeIdentifier(in, "any"); ok {
		def.Kind = ContentAny
		return s, true
	}
	def.Kind = ContentModel
	rest, m, ok := p.makeModel(in)
	if !ok {
		return in, false
	}
	def.Content = m
	return rest, true
}

// ----------------------------------------------------------------------------
// <!ENTITY>
// ----------------------------------------------------------------------------

// processEntityValueDeclaration parses the value part: a SYSTEM url, a PUBLIC
// id with optional url, or a literal (parameter entities expanded inside).
func (p *Parser) processEntityValueDeclaration(in []byte, e *Entity) ([]byte, bool) {
	if e.Type == EntitySystem {
		rest, url, ok := p.takeString(in)
		if !ok {
			p.gripeFound(ErrSyntax, "String expected", in)
			return in, false
		}
		e.SystemID = string(url)
		e.BaseURL = p.baseURL()
		return rest, true
	}

	rest, lit, ok := p.takeString(in)
	if !ok {
		p.gripeFound(ErrSyntax, "String expected", in)
		return in, false
	}
	in = rest

	val, ok := p.expandPEntities(lit)
	if !ok {
		return in, false
	}

	switch e.Type {
	case EntityPublic:
		e.PublicID = string(val)
		if len(in) > 0 && (p.dtd.charFunc.is(cfLit, in[0]) || p.dtd.charFunc.is(cfLita, in[0])) {
			if rest, url, ok := p.takeString(in); ok {
				e.SystemID = string(url)
				e.BaseURL = p.baseURL()
				in = rest
			}
		}
		return in, true
	default: // literal
		e.Value = append([]byte(nil), val...)
		return in, true
	}
}

// processEntityDeclaration handles <!ENTITY [%] name ...>. The SGML standard
// accepts the first definition and silently suppresses redefinitions.
func (p *Parser) processEntityDeclaration(decl []byte) bool {
	dtd := p.dtd
	isParam := false
	isDefault := false

	if s, ok := p.seeFunc(p.skipLayout(decl), cfPero); ok {
		isParam = true
		decl = s
	}

	var id *Symbol
	if s, sym, ok := p.takeEntityName(decl); ok {
		id, decl = sym, s
	} else if s, ok := p.seeIdentifier(decl, "#default"); ok {
		id = dtd.entitySymbol("#DEFAULT")
		isDefault = true
		decl = s
	} else {
		return p.gripeFound(ErrSyntax, "Name expected", decl)
	}

	if isParam && dtd.findPEntity(id) != nil {
		p.gripe(ErrRedefined, "parameter entity", id.Name)
		return true
	}
	if id.Entity != nil {
		p.gripe(ErrRedefined, "entity", id.Name)
		return true
	}

	decl = p.skipLayout(decl)
	e := &Entity{Name: id}
	if isParam {
		e.CatalogLocation = CatPEntity
	} else {
		e.CatalogLocation = CatEntity
	}

	if s, ok := p.seeIdentifier(decl, "system"); ok {
		e.Type = EntitySystem
		e.Content = DataSGML
		decl = s
	} else if s, ok := p.seeIdentifier(decl, "public"); ok {
		e.Type = EntityPublic
		e.Content = DataSGML
		decl = s
	} else {
		e.Type = EntityLiteral
		if !isParam {
			if s, ok := p.seeIdentifier(decl, "cdata"); ok {
				decl, e.Content = s, DataCDATA
			} else if s, ok := p.seeIdentifier(decl, "sdata"); ok {
				decl, e.Content = s, DataSDATA
			} else if s, ok := p.seeIdentifier(decl, "pi"); ok {
				decl, e.Content = s, DataPI
			} else if s, ok := p.seeIdentifier(decl, "starttag"); ok {
				decl, e.Content = s, DataStartTag
			} else if s, ok := p.seeIdentifier(decl, "endtag"); ok {
				decl, e.Content = s, DataEndTag
			} else {
				e.Content = DataSGML
			}
		}
	}

	if rest, ok := p.processEntityValueDeclaration(decl, e); ok {
		decl = rest
		if e.Type == EntityLiteral {
			// STARTTAG/ENDTAG values become markup wrapped in tag delimiters
			fn := dtd.charFunc
			switch e.Content {
			case DataStartTag:
				buf := make([]byte, 0, len(e.Value)+2)
				buf = append(buf, fn.fn[cfStago])
				buf = append(buf, e.Value...)
				buf = append(buf, fn.fn[cfStagc])
				e.Value = buf
				e.Content = DataSGML
			case DataEndTag:
				buf := make([]byte, 0, len(e.Value)+3)
				buf = append(buf, fn.fn[cfStago], fn.fn[cfEtago2])
				buf = append(buf, e.Value...)
				buf = append(buf, fn.fn[cfStagc])
				e.Value = buf
				e.Content = DataSGML
			}
		} else if len(decl) > 0 {
			if s, ok := p.seeIdentifier(decl, "cdata"); ok {
				decl, e.Content = s, DataCDATA
			} else if s, ok := p.seeIdentifier(decl, "sdata"); ok {
				decl, e.Content = s, DataSDATA
			} else if s, ok := p.seeIdentifier(decl, "ndata"); ok {
				decl, e.Content = s, DataNDATA
			} else {
				return p.gripeFound(ErrSyntax, "Bad datatype declaration", decl)
			}
			if s, _, ok := p.takeName(decl); ok { // the notation name
				decl = s
			} else {
				return p.gripeFound(ErrSyntax, "Bad notation declaration", decl)
			}
		}
		if len(decl) > 0 {
			return p.gripeFound(ErrSyntax, "Unexpected end of declaration", decl)
		}
	}

	if isParam {
		dtd.PEntities = append(dtd.PEntities, e)
	} else {
		id.Entity = e
		dtd.Entities = append(dtd.Entities, e)
	}
	if isDefault {
		dtd.DefaultEntity = e
	}
	return true
}

// ----------------------------------------------------------------------------
// <!ELEMENT>
// ----------------------------------------------------------------------------

func (p *Parser) processElementDeclaration(decl []byte) bool {
	dtd := p.dtd

	decl, ok := p.expandPEntities(decl)
	if !ok {
		return false
	}

	rest, els, ok := p.takeElementList(decl)
	if !ok {
		return p.gripeFound(ErrSyntax, "Name or name-group expected", decl)
	}
	decl = rest
	if len(els) == 0 {
		return true
	}

	def := &ElementDef{refs: len(els)}
	for _, e := range els {
		e.Structure = def
		e.Undefined = false
	}

	// omitted-tag flags (optional pair; default is "required")
	sawOmit := false
	if s, ok := p.seeIdentifier(decl, "-"); ok {
		def.OmitOpen = false
		decl, sawOmit = s, true
	} else if s, ok := p.seeIdentifier(decl, "o"); ok {
		def.OmitOpen = true
		decl, sawOmit = s, true
	}
	if sawOmit {
		if s, ok := p.seeIdentifier(decl, "-"); ok {
			def.OmitClose = false
			decl = s
		} else if s, ok := p.seeIdentifier(decl, "o"); ok {
			def.OmitClose = true
			decl = s
		} else {
			return p.gripeFound(ErrSyntax, "Bad omit-tag declaration", decl)
		}
	}

	decl, ok = p.processModel(def, decl)
	if !ok {
		return false
	}

	// inclusion and exclusion exceptions
	for len(decl) > 0 && (decl[0] == '-' || decl[0] == '+') {
		excl := decl[0] == '-'
		rest, names, ok := p.takeNameGroup(decl[1:], cfOr)
		if !ok {
			return p.gripeFound(ErrSyntax, "Name group expected", decl)
		}
		decl = rest
		for _, id := range names {
			e := dtd.findElement(id)
			if excl {
				def.Excluded = append(def.Excluded, e)
			} else {
				def.Included = append(def.Included, e)
			}
		}
	}

	if len(decl) > 0 {
		return p.gripeFound(ErrSyntax, "Unexpected end of declaration", decl)
	}
	return true
}

// ----------------------------------------------------------------------------
// <!ATTLIST>
// ----------------------------------------------------------------------------

func (p *Parser) processAttlistDeclaration(decl []byte) bool {
	dtd := p.dtd

	decl, ok := p.expandPEntities(decl)
	if !ok {
		return false
	}
	decl = p.skipLayout(decl)

	rest, els, ok := p.takeElementList(decl)
	if !ok {
		return false
	}
	decl = rest

	for len(decl) > 0 {
		at := &AttrDef{}

		rest, name, ok := p.takeName(decl)
		if !ok {
			return p.gripeFound(ErrSyntax, "Name expected", decl)
		}
		at.Name = name
		decl = rest

		if s, ok := p.seeFunc(decl, cfGrpo); ok { // (a|b|...) enumeration
			at.Type = AttrNameOf
			decl = s
			sep := cfCount
			for {
				rest, nm, ok := p.takeNmtoken(decl)
				if !ok {
					return p.gripeFound(ErrSyntax, "Name expected", decl)
				}
				decl = rest
				at.NameOf = append(at.NameOf, nm)
				if s, ok := p.seeNameGroupSep(decl, &sep); ok {
					decl = s
					continue
				}
				if s, ok := p.seeFunc(decl, cfGrpc); ok {
					decl = p.skipLayout(s)
					break
				}
				return p.gripeFound(ErrSyntax, "Illegal name-group", decl)
			}
		} else if s, ok := p.seeIdentifier(decl, "cdata"); ok {
			decl, at.Type = s, AttrCDATA
		} else if s, ok := p.seeIdentifier(decl, "entity"); ok {
			decl, at.Type = s, AttrEntity
		} else if s, ok := p.seeIdentifier(decl, "entities"); ok {
			decl, at.Type, at.IsList = s, AttrEntities, true
		} else if s, ok := p.seeIdentifier(decl, "id"); ok {
			decl, at.Type = s, AttrID
		} else if s, ok := p.seeIdentifier(decl, "idref"); ok {
			decl, at.Type = s, AttrIDRef
		} else if s, ok := p.seeIdentifier(decl, "idrefs"); ok {
			decl, at.Type, at.IsList = s, AttrIDRefs, true
		} else if s, ok := p.seeIdentifier(decl, "name"); ok {
			decl, at.Type = s, AttrName
		} else if s, ok := p.seeIdentifier(decl, "names"); ok {
			decl, at.Type, at.IsList = s, AttrNames, true
		} else if s, ok := p.seeIdentifier(decl, "nmtoken"); ok {
			decl, at.Type = s, AttrNMToken
		} else if s, ok := p.seeIdentifier(decl, "nmtokens"); ok {
			decl, at.Type, at.IsList = s, AttrNMTokens, true
		} else if s, ok := p.seeIdentifier(decl, "number"); ok {
			decl, at.Type = s, AttrNumber
		} else if s, ok := p.seeIdentifier(decl, "numbers"); ok {
			decl, at.Type, at.IsList = s, AttrNumbers, true
		} else if s, ok := p.seeIdentifier(decl, "nutoken"); ok {
			decl, at.Type = s, AttrNuToken
		} else if s, ok := p.seeIdentifier(decl, "nutokens"); ok {
			decl, at.Type, at.IsList = s, AttrNuTokens, true
		} else if s, ok := p.seeIdentifier(decl, "notation"); ok {
			at.Type = AttrNotation
			rest, names, ok := p.takeNameGroup(s, cfOr)
			if !ok {
				return p.gripeFound(ErrSyntax, "name-group expected", s)
			}
			decl = rest
			at.NameOf = append(at.NameOf, names...)
		} else {
			return p.gripeFound(ErrSyntax, "Attribute-type expected", decl)
		}

		// defaults
		if s, ok := p.seeIdentifier(decl, "#fixed"); ok {
			decl, at.Default = s, DefaultFixed
		} else if s, ok := p.seeIdentifier(decl, "#required"); ok {
			decl, at.Default = s, DefaultRequired
		} else if s, ok := p.seeIdentifier(decl, "#current"); ok {
			decl, at.Default = s, DefaultCurrent
		} else if s, ok := p.seeIdentifier(decl, "#conref"); ok {
			decl, at.Default = s, DefaultConref
		} else if s, ok := p.seeIdentifier(decl, "#implied"); ok {
			decl, at.Default = s, DefaultImplied
		} else {
			at.Default = DefaultValue
		}

		if at.Default == DefaultValue || at.Default == DefaultFixed {
			rest, val, ok := p.takeString(decl)
			if !ok {
				rest, val, ok = p.takeNmtokenChars(decl)
			}
			if !ok {
				return p.gripeFound(ErrSyntax, "Bad attribute default", decl)
			}

			switch at.Type {
			case AttrCDATA:
				at.DefCDATA = string(val)
			case AttrEntity, AttrNotation, AttrName:
				if s, nm, ok := p.takeName(val); ok && len(s) == 0 {
					at.DefName = nm
				} else {
					return p.gripeFound(ErrDomain, "name", decl)
				}
			case AttrNMToken, AttrNameOf:
				if s, nm, ok := p.takeNmtoken(val); ok && len(s) == 0 {
					at.DefName = nm
				} else {
					return p.gripeFound(ErrDomain, "nmtoken", decl)
				}
			case AttrNuToken:
				if s, nm, ok := p.takeNutoken(val); ok && len(s) == 0 {
					at.DefName = nm
				} else {
					return p.gripeFound(ErrDomain, "nutoken", decl)
				}
			case AttrNumber:
				if s, ok := p.takeNumber(val, at); !ok || len(s) != 0 {
					return p.gripeFound(ErrDomain, "number", decl)
				}
			case AttrNames, AttrEntities, AttrIDRefs, AttrNMTokens, AttrNumbers, AttrNuTokens:
				at.DefList = string(val)
			default:
				return p.gripe(ErrRepresentation, "No default for type")
			}
			decl = rest
		}

		for _, e := range els {
			p.addAttribute(dtd.defElement(e.Name), at)
		}
	}

	return true
}

// ----------------------------------------------------------------------------
// <!NOTATION>
// ----------------------------------------------------------------------------

func (p *Parser) processNotationDeclaration(decl []byte) bool {
	dtd := p.dtd

	rest, name, ok := p.takeName(decl)
	if !ok {
		return p.gripeFound(ErrSyntax, "Notation name expected", decl)
	}
	decl = rest

	if dtd.findNotation(name) != nil {
		p.gripe(ErrRedefined, "notation", name.Name)
		return true
	}

	not := &Notation{Name: name}
	if s, ok := p.seeIdentifier(decl, "system"); ok {
		decl = s
	} else if s, ok := p.seeIdentifier(decl, "public"); ok {
		decl = s
		rest, pub, ok := p.takeString(decl)
		if !ok {
			return p.gripeFound(ErrSyntax, "Public identifier expected", decl)
		}
		not.PublicID = string(pub)
		decl = rest
	} else {
		return p.gripeFound(ErrSyntax, "SYSTEM or PUBLIC expected", decl)
	}

	if rest, sys, ok := p.takeString(decl); ok {
		not.SystemID = string(sys)
		decl = rest
	}

	if len(decl) > 0 {
		return p.gripeFound(ErrSyntax, "Unexpected end of declaration", decl)
	}

	dtd.Notations = append(dtd.Notations, not)
	return true
}

// ----------------------------------------------------------------------------
// <!DOCTYPE>
// ----------------------------------------------------------------------------

func (p *Parser) processDoctype(decl, decl0 []byte) bool {
	dtd := p.dtd

	rest, id, ok := p.takeName(decl)
	if !ok {
		return p.gripeFound(ErrSyntax, "Name expected", decl)
	}
	decl = rest

	var et *Entity
	if s, ok := p.seeIdentifier(decl, "system"); ok {
		et = &Entity{Type: EntitySystem}
		decl = s
	} else if s, ok := p.seeIdentifier(decl, "public"); ok {
		et = &Entity{Type: EntityPublic}
		decl = s
	}

	if et != nil {
		et.Name = id
		et.CatalogLocation = CatDoctype
		rest, ok := p.processEntityValueDeclaration(decl, et)
		if !ok {
			return false
		}
		decl = rest
	}

	if dtd.Doctype == "" { // anonymous DTD so far
		dtd.Doctype = id.Name

		var file string
		var found bool
		if et != nil {
			file, found = p.entityFile(et)
		} else if p.catalogue != nil {
			file, found = p.catalogue(CatDoctype, dtd.Doctype, "", "",
				dtd.Dialect != DialectSGML)
		}

		if found {
			clone := p.clone()
			if !clone.LoadDTDFile(file) {
				p.gripe(ErrExistence, "file", file)
			}
			clone.free()
		} else if et != nil && p.catalogue != nil {
			p.gripe(ErrExistence, "DTD", dtd.Doctype)
		}
	}

	// internal subset: re-lex [...] in DTD mode with a fresh buffer
	if s, ok := p.seeFunc(p.skipLayout(decl), cfDso); ok {
		oldMode, oldState := p.dmode, p.state
		oldBuf := p.buffer
		save := p.pushLocation()

		// rebuild the location of the subset within the declaration
		par := p.location.Parent
		p.location = p.startLoc.snapshot()
		p.location.Parent = par
		p.location.advance('<')
		p.location.advance('!')
		for i := 0; i < len(decl0)-len(s); i++ {
			p.location.advance(decl0[i])
		}

		p.dmode = modeDTD
		p.state = statePCDATA
		p.buffer = nil

		groupLevel := 1
	subset:
		for len(s) > 0 {
			c := s[0]
			switch {
			case dtd.charFunc.is(cfLit, c) || dtd.charFunc.is(cfLita, c):
				q := c
				p.putByte(c)
				s = s[1:]
				for len(s) > 0 && s[0] != q {
					p.putByte(s[0])
					s = s[1:]
				}
				if len(s) > 0 {
					p.putByte(s[0])
					s = s[1:]
				}
				continue
			case dtd.charFunc.is(cfDso, c):
				groupLevel++
			case dtd.charFunc.is(cfDsc, c):
				groupLevel--
				if groupLevel == 0 {
					break subset
				}
			}
			p.putByte(c)
			s = s[1:]
		}
		dtd.implicit = false

		p.state = oldState
		p.dmode = oldMode
		p.buffer = oldBuf
		p.popLocation(save)
	}

	p.enforceOuterElement = id
	return true
}

// ----------------------------------------------------------------------------
// dispatch
// ----------------------------------------------------------------------------

// processDeclaration receives the body of <...> without the leading '<'.
// In data mode it routes tags; markup declarations go by keyword.
func (p *Parser) processDeclaration(decl []byte) bool {
	if p.dmode != modeDTD {
		if s, ok := p.seeFunc(decl, cfEtago2); ok { // </...>
			return p.processEndElement(s)
		}
		if len(decl) > 0 && p.dtd.charClass.has(decl[0], clName) { // <letter
			return p.processBeginElement(decl)
		}
	}

	if s, ok := p.seeFunc(decl, cfMdo2); ok { // <!...>
		decl = s

		if p.handler.OnDecl != nil {
			p.handler.OnDecl(p, decl)
		}

		if s, ok := p.seeIdentifier(decl, "entity"); ok {
			p.processEntityDeclaration(s)
		} else if s, ok := p.seeIdentifier(decl, "element"); ok {
			p.processElementDeclaration(s)
		} else if s, ok := p.seeIdentifier(decl, "attlist"); ok {
			p.processAttlistDeclaration(s)
		} else if s, ok := p.seeIdentifier(decl, "notation"); ok {
			p.processNotationDeclaration(s)
		} else if s, ok := p.seeIdentifier(decl, "shortref"); ok {
			p.processShortrefDeclaration(s)
		} else if s, ok := p.seeIdentifier(decl, "usemap"); ok {
			p.processUsemapDeclaration(s)
		} else if _, ok := p.seeIdentifier(decl, "sgml"); ok {
			p.gripe(ErrSyntaxWarning, "Ignored <!SGML ...> declaration")
		} else if s, ok := p.seeIdentifier(decl, "doctype"); ok {
			if p.dmode != modeDTD {
				p.processDoctype(s, decl)
			}
		} else if rest := p.skipLayout(decl); len(rest) > 0 {
			p.gripeFound(ErrSyntax, "Invalid declaration", rest)
		}

		return true
	}

	return p.gripeFound(ErrSyntax, "Invalid declaration", decl)
}

// processPI handles <?...?>. An <?xml ...?> declaration sets the encoding and
// promotes an SGML dialect to XML; anything else reaches OnPI.
func (p *Parser) processPI(decl []byte) bool {
	dtd := p.dtd

	if s, ok := p.seeIdentifier(decl, "xml"); ok {
		decl = s
		for len(decl) > 0 {
			rest, nm, ok := p.takeName(decl)
			if ok {
				if rest2, ok2 := p.seeFunc(rest, cfVi); ok2 {
					rest3, val, ok3 := p.takeString(rest2)
					if !ok3 {
						rest3, val, ok3 = p.takeNmtokenChars(rest2)
					}
					if ok3 {
						decl = rest3
						if fold(nm.Name, false) == "encoding" {
							p.setEncoding(string(val))
						}
						continue
					}
				}
			}
			p.gripeFound(ErrSyntax, "Illegal XML parameter", decl)
			break
		}

		if dtd.Dialect == DialectSGML {
			dtd.SetDialect(DialectXML)
			p.initDecoding()
		}
		return true
	}

	if p.handler.OnPI != nil {
		p.handler.OnPI(p, decl)
	}
	return false
}
