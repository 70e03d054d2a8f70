package sgml

import "sort"

// ============================================================================
// 6. SHORT REFERENCES
// ============================================================================
// A shortref map turns literal byte patterns in CDATA into synthetic entity
// references. Matching is a suffix test run after every data byte, gated by
// the ends[] accelerator so the common case costs one table lookup.

// Pattern meta characters: a single blank matches a whitespace run, a double
// blank requires at least one whitespace character.
const (
	chrBlank  = 1 // "B" in the declaration
	chrDBlank = 2 // "BB" in the declaration
)

// ShortrefPattern is one pattern → entity binding of a map.
type ShortrefPattern struct {
	From []byte // pattern with meta bytes
	To   *Symbol
}

// ShortrefMap is a named <!SHORTREF> map, bound to elements via <!USEMAP>.
type ShortrefMap struct {
	Name    *Symbol
	Map     []*ShortrefPattern
	Defined bool

	// ends[b] is true if some pattern can terminate on byte b; a trailing
	// blank meta sets it for every blank byte.
	ends [256]bool
}

// defShortref returns the named map, creating an undefined placeholder so a
// <!USEMAP> may precede its <!SHORTREF>.
func (p *Parser) defShortref(name *Symbol) *ShortrefMap {
	for _, sr := range p.dtd.Shortrefs {
		if sr.Name == name {
			return sr
		}
	}
	sr := &ShortrefMap{Name: name}
	p.dtd.Shortrefs = append(p.dtd.Shortrefs, sr)
	return sr
}

// findMap resolves a map name; nil stands for the #EMPTY map.
func (p *Parser) findMap(name *Symbol) *ShortrefMap {
	if name == nil {
		if p.emptyMap == nil {
			p.emptyMap = &ShortrefMap{Name: p.dtd.symbol("#empty"), Defined: true}
		}
		return p.emptyMap
	}
	for _, sr := range p.dtd.Shortrefs {
		if sr.Name == name {
			if !sr.Defined {
				return nil
			}
			return sr
		}
	}
	return nil
}

// compile orders the patterns longest first, so the matcher's first hit is
// the longest one, and fills the ends accelerator from the patterns' last
// bytes; a pattern ending in a blank meta can terminate on any blank.
func (sr *ShortrefMap) compile(dtd *DTD) {
	sort.SliceStable(sr.Map, func(i, j int) bool {
		return len(sr.Map[i].From) > len(sr.Map[j].From)
	})
	for _, m := range sr.Map {
		last := m.From[len(m.From)-1]
		switch last {
		case chrBlank, chrDBlank:
			for i := 0; i < 256; i++ {
				if dtd.charClass.has(byte(i), clBlank) {
					sr.ends[i] = true
				}
			}
		default:
			sr.ends[last] = true
		}
	}
}

// shortrefAddPattern parses one "string entity" pair of a <!SHORTREF>.
func (p *Parser) shortrefAddPattern(decl []byte, sr *ShortrefMap) ([]byte, bool) {
	rest, lit, ok := p.takeString(decl)
	if !ok {
		p.gripeFound(ErrSyntax, "map-string expected", decl)
		return decl, false
	}
	decl = rest

	rest, to, ok := p.takeEntityName(decl)
	if !ok {
		p.gripeFound(ErrSyntax, "map-to name expected", decl)
		return decl, false
	}

	// translate B / BB blank metas
	var from []byte
	for i := 0; i < len(lit); {
		if lit[i] == 'B' {
			if i+1 < len(lit) && lit[i+1] == 'B' {
				from = append(from, chrDBlank)
				i += 2
				continue
			}
			from = append(from, chrBlank)
			i++
			continue
		}
		from = append(from, lit[i])
		i++
	}

	sr.Map = append(sr.Map, &ShortrefPattern{From: from, To: to})
	return rest, true
}

func (p *Parser) processShortrefDeclaration(decl []byte) bool {
	decl, ok := p.expandPEntities(decl)
	if !ok {
		return false
	}

	rest, name, ok := p.takeName(decl)
	if !ok {
		return p.gripeFound(ErrSyntax, "Name expected", decl)
	}
	decl = rest

	sr := p.defShortref(name)
	if sr.Defined {
		p.gripe(ErrRedefined, "shortref", name.Name)
		return true
	}
	sr.Defined = true

	for {
		decl = p.skipLayout(decl)
		if len(decl) == 0 {
			break
		}
		rest, ok := p.shortrefAddPattern(decl, sr)
		if !ok {
			break
		}
		decl = rest
	}
	sr.compile(p.dtd)

	if len(decl) > 0 {
		return p.gripeFound(ErrSyntax, "Map expected", decl)
	}
	return true
}

func (p *Parser) processUsemapDeclaration(decl []byte) bool {
	dtd := p.dtd

	decl, ok := p.expandPEntities(decl)
	if !ok {
		return false
	}

	var name *Symbol
	if rest, nm, ok := p.takeName(decl); ok {
		name, decl = nm, rest
	} else if rest, ok := p.seeIdentifier(decl, "#empty"); ok {
		decl = rest
	} else {
		return p.gripeFound(ErrSyntax, "map-name expected", decl)
	}

	srMap := p.findMap(name)
	if srMap == nil {
		srMap = p.defShortref(name) // undefined forward reference
	}

	if _, ok := p.seeFunc(decl, cfGrpo); ok { // (group)
		rest, m, ok := p.makeModel(decl)
		if !ok {
			return false
		}
		forElementsInModel(m, func(e *Element) { e.Map = srMap })
		decl = rest
	} else if rest, ename, ok := p.takeName(decl); ok {
		dtd.findElement(ename).Map = srMap
		decl = rest
	} else if p.environments != nil {
		if !srMap.Defined {
			p.gripe(ErrExistence, "map", name.Name)
		}
		p.environments.Map = srMap
		p.srMap = srMap
	} else {
		return p.gripeFound(ErrSyntax, "element-name expected", decl)
	}

	if len(decl) > 0 {
		return p.gripeFound(ErrSyntax, "Unparsed", decl)
	}
	return true
}

// matchPattern tries a single pattern against the tail of data; it returns
// the number of consumed bytes, zero when there is no match.
func matchPattern(dtd *DTD, m *ShortrefPattern, data []byte) int {
	e := len(data) - 1
	i := len(m.From) - 1

	for i >= 0 {
		if e < 0 {
			return 0
		}
		if m.From[i] == data[e] {
			i--
			e--
			continue
		}
		if m.From[i] == chrDBlank {
			if e > 0 && dtd.charClass.has(data[e], clWhite) {
				e--
			} else {
				return 0
			}
			for e > 0 && dtd.charClass.has(data[e], clWhite) {
				e--
			}
			i--
			continue
		}
		if m.From[i] == chrBlank {
			for e > 0 && dtd.charClass.has(data[e], clWhite) {
				e--
			}
			i--
			continue
		}
		return 0
	}

	return len(data) - 1 - e
}

// matchShortref runs the current map against the pending CDATA tail. A match
// consumes the matched suffix, rewinds the start location by the consumed
// count, and replays the binding's entity as a SHORTREF event.
func (p *Parser) matchShortref() {
	for _, m := range p.srMap.Map {
		length := matchPattern(p.dtd, m, p.cdata)
		if length == 0 {
			continue
		}
		p.cdata = p.cdata[:len(p.cdata)-length]

		if p.cdataMustBeEmpty {
			blank := true
			for _, c := range p.cdata {
				if !p.dtd.charClass.has(c, clBlank) {
					blank = false
					break
				}
			}
			p.blankCData = blank
		}

		p.withClass(EventShortref, func() {
			p.startLoc = p.location.snapshot()
			p.startLoc.Parent = p.location.Parent
			p.startLoc.CharPos -= length
			p.startLoc.LinePos -= length
			if p.startLoc.LinePos < 0 {
				p.startLoc.Line--
				p.startLoc.LinePos = 0
			}
			p.processEntity(m.To.Name)
		})
		break
	}
}
