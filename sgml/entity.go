package sgml

import (
	"strconv"
)

// ============================================================================
// 4. ENTITIES AND THE RESOLVER
// ============================================================================

// EntityType says where an entity's replacement comes from.
type EntityType int

const (
	EntityLiteral EntityType = iota
	EntitySystem
	EntityPublic
)

// DataKind is the declared content class of an entity, and doubles as the
// kind argument of OnData.
type DataKind int

const (
	DataSGML DataKind = iota // parsed as markup
	DataCDATA
	DataSDATA
	DataNDATA
	DataPI
	DataStartTag // rewrapped to SGML at declaration time
	DataEndTag   // rewrapped to SGML at declaration time
)

// CatalogKind selects the catalogue section an external identifier is
// resolved against.
type CatalogKind int

const (
	CatEntity CatalogKind = iota
	CatPEntity
	CatDoctype
)

// Entity is a general or parameter entity. External entities cache their
// loaded value; the cached bytes are owned by the entity and live as long as
// the DTD.
type Entity struct {
	Name    *Symbol
	Type    EntityType
	Content DataKind

	Value    []byte // literal or cached external value
	PublicID string
	SystemID string
	BaseURL  string

	CatalogLocation CatalogKind
	loaded          bool
}

// entityFile resolves an external entity to a path via the catalogue.
func (p *Parser) entityFile(e *Entity) (string, bool) {
	switch e.Type {
	case EntitySystem, EntityPublic:
	default:
		return "", false
	}
	if p.catalogue == nil {
		return "", false
	}
	path, ok := p.catalogue(e.CatalogLocation, e.Name.Name, e.PublicID, e.SystemID,
		p.dtd.Dialect != DialectSGML)
	if !ok {
		return "", false
	}
	if e.BaseURL != "" && !isAbsolutePath(path) {
		path = localPath(e.BaseURL, path)
	}
	return path, true
}

// entityValue returns the (possibly loaded-on-demand) replacement text.
// SGML and CDATA content have their line endings normalised at load time.
func (p *Parser) entityValue(e *Entity) ([]byte, bool) {
	if e.Value == nil && !e.loaded {
		if file, ok := p.entityFile(e); ok {
			normalise := e.Content == DataSGML || e.Content == DataCDATA
			data, err := p.loader(file, normalise)
			if err != nil {
				p.gripe(ErrExistence, "file", file)
				e.loaded = true
				return nil, false
			}
			e.Value = data
			e.loaded = true
		}
	}
	if e.Value == nil {
		return nil, false
	}
	return e.Value, true
}

// charEntityValue decodes the body of a character reference: #digits,
// #xHEX/#XHEX, or the named code points RS, RE, TAB and SPACE. Returns -1
// when the body is not a character reference.
func charEntityValue(body []byte) int {
	if len(body) == 0 || body[0] != '#' {
		return -1
	}
	s := string(body[1:])
	if s == "" {
		return -1
	}
	if s[0] == 'x' || s[0] == 'X' {
		if v, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
			return int(v)
		}
		return -1
	}
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return int(v)
	}
	switch fold(s, false) {
	case "rs":
		return '\n'
	case "re":
		return '\r'
	case "tab":
		return '\t'
	case "space":
		return ' '
	}
	return -1
}

// seeCharacterEntity recognises &#...; at the head of in. Returns the rest
// of the input and the code point.
func (p *Parser) seeCharacterEntity(in []byte) ([]byte, int, bool) {
	dtd := p.dtd
	if len(in) < 2 || !dtd.charFunc.is(cfEro, in[0]) || in[1] != '#' {
		return in, 0, false
	}
	body := []byte{'#'}
	i := 2
	for i < len(in) && dtd.charClass.has(in[i], clName) {
		body = append(body, in[i])
		i++
	}
	if i < len(in) && dtd.charFunc.is(cfErc, in[i]) {
		i++
	}
	if v := charEntityValue(body); v >= 0 {
		return in[i:], v, true
	}
	return in, 0, false
}

// representable reports whether a code point can be placed in CDATA output.
func (p *Parser) representable(chr int) bool {
	if chr < 0 {
		return false
	}
	if chr < 128 {
		return true
	}
	if p.utf8Decode {
		return false
	}
	return chr < outputCharsetSize
}

// maxDeclLen bounds parameter-entity expansion; blowing it abandons the
// declaration with an error rather than looping forever.
const maxDeclLen = 1 << 16

// expandPEntities rewrites %name; references (and representable character
// references) in a declaration body. The expansion is recursive and bounded.
func (p *Parser) expandPEntities(in []byte) ([]byte, bool) {
	out := make([]byte, 0, len(in))
	if !p.expandPEntitiesInto(in, &out) {
		return nil, false
	}
	return out, true
}

func (p *Parser) expandPEntitiesInto(in []byte, out *[]byte) bool {
	dtd := p.dtd
	for len(in) > 0 {
		if dtd.charFunc.is(cfPero, in[0]) {
			if rest, id, ok := p.takeEntityName(in[1:]); ok {
				in = rest
				if len(in) > 0 && dtd.charFunc.is(cfErc, in[0]) {
					in = in[1:]
				}
				e := dtd.findPEntity(id)
				if e == nil {
					p.gripe(ErrExistence, "parameter entity", id.Name)
					return false
				}
				val, ok := p.entityValue(e)
				if !ok {
					return false
				}
				if !p.expandPEntitiesInto(val, out) {
					return false
				}
				continue
			}
		}

		if len(*out) >= maxDeclLen {
			p.gripe(ErrRepresentation, "Declaration too long")
			return false
		}

		if len(in) > 1 && dtd.charFunc.is(cfEro, in[0]) && in[1] == '#' {
			if rest, chr, ok := p.seeCharacterEntity(in); ok && p.representable(chr) {
				*out = append(*out, byte(chr))
				in = rest
				continue
			}
		}

		*out = append(*out, in[0])
		in = in[1:]
	}
	return true
}

// expandEntities rewrites general entity and character references in a CDATA
// attribute value. Expansion recurses through entity values.
func (p *Parser) expandEntities(in []byte, out *[]byte) bool {
	dtd := p.dtd
	for len(in) > 0 {
		if dtd.charFunc.is(cfEro, in[0]) {
			start := in

			if rest, chr, ok := p.seeCharacterEntity(in); ok {
				if chr <= 0 || chr >= outputCharsetSize {
					p.gripe(ErrRepresentation, "character")
				} else {
					*out = append(*out, byte(chr))
				}
				in = rest
				continue
			}

			if len(in) > 1 && dtd.charClass.has(in[1], clNameStart) {
				rest, id, _ := p.takeEntityName(in[1:])
				in = rest
				if len(in) > 0 && (dtd.charFunc.is(cfErc, in[0]) || in[0] == '\n') {
					in = in[1:]
				}

				e := id.Entity
				if e == nil {
					e = dtd.DefaultEntity
				}
				if e == nil {
					p.gripe(ErrExistence, "entity", id.Name)
					in = start
					goto recover
				}
				val, ok := p.entityValue(e)
				if !ok {
					p.gripe(ErrNoValue, e.Name.Name)
					in = start
					goto recover
				}
				if !p.expandEntities(val, out) {
					return false
				}
				continue
			}
		}

	recover:
		if len(*out) >= maxDeclLen {
			p.gripe(ErrRepresentation, "CDATA string too long")
			return false
		}
		*out = append(*out, p.dtd.charMap.m[in[0]])
		in = in[1:]
	}
	return true
}
