package sgml

import "sync/atomic"

// ============================================================================
// 2. DTD DATA MODEL
// ============================================================================

// Dialect selects the markup language the parser speaks.
type Dialect int

const (
	DialectSGML Dialect = iota
	DialectXML
	DialectXMLNS
)

func (d Dialect) String() string {
	switch d {
	case DialectXML:
		return "XML"
	case DialectXMLNS:
		return "XMLNS"
	default:
		return "SGML"
	}
}

// SpaceMode is the per-element whitespace policy applied to emitted CDATA.
type SpaceMode int

const (
	SpaceInherit SpaceMode = iota // take the parent's mode
	SpaceSGML                     // strip record boundaries only
	SpaceDefault                  // strip record boundaries and collapse runs
	SpacePreserve                 // verbatim
	SpaceRemove                   // trim and collapse
)

// NumberMode controls how NUMBER attribute values are represented.
type NumberMode int

const (
	NumberToken NumberMode = iota // keep the digit string
	NumberInteger                 // parse to int64
)

// Encoding names the input encodings the parser recognises.
type Encoding int

const (
	EncLatin1 Encoding = iota
	EncUTF8
)

// Notation is a <!NOTATION> declaration. First definition wins.
type Notation struct {
	Name     *Symbol
	PublicID string
	SystemID string
}

// DTD is the root container for a document type: symbol tables, character
// tables, and every declaration seen so far. A DTD is shared (ref-counted)
// between a parser and the clone parsers used to load external subsets; it
// must not be mutated while shared across goroutines.
type DTD struct {
	Doctype  string
	Dialect  Dialect
	Encoding Encoding

	CaseSensitive    bool // element/attribute name folding
	EntCaseSensitive bool // entity name folding
	Shorttag         bool // allow <tag/value/ and </>
	NumberMode       NumberMode
	SpaceMode        SpaceMode

	charClass *charClassTable
	charFunc  *charFuncTable
	charMap   *charMap

	symbols    *symbolTable // element and attribute names
	entSymbols *symbolTable // entity names (may fold differently)

	Elements  []*Element
	Entities  []*Entity
	PEntities []*Entity
	Notations []*Notation
	Shortrefs []*ShortrefMap

	DefaultEntity *Entity

	implicit bool // no explicit declarations loaded yet
	refs     atomic.Int32
}

// NewDTD creates an empty DTD with SGML defaults. doctype may be "".
func NewDTD(doctype string) *DTD {
	d := &DTD{
		Doctype:          doctype,
		Dialect:          DialectSGML,
		charClass:        newCharClassTable(),
		charFunc:         newCharFuncTable(),
		charMap:          newCharMap(),
		symbols:          newSymbolTable(),
		entSymbols:       newSymbolTable(),
		SpaceMode:        SpaceSGML,
		EntCaseSensitive: true,
		Shorttag:         true,
		NumberMode:       NumberToken,
		implicit:         true,
	}
	d.refs.Store(1)
	return d
}

func (d *DTD) ref()   { d.refs.Add(1) }
func (d *DTD) unref() { d.refs.Add(-1) }

var xmlEntityDecls = []string{
	`lt CDATA "&#60;"`,
	`gt CDATA "&#62;"`,
	`amp CDATA "&#38;"`,
	`apos CDATA "&#39;"`,
	`quot CDATA "&#34;"`,
}

// SetDialect switches the DTD between SGML and the XML dialects. XML forces
// case-sensitive names, UTF-8, preserved space, no shorttag, and predefines
// the five XML entities.
func (d *DTD) SetDialect(dialect Dialect) {
	d.Dialect = dialect

	switch dialect {
	case DialectSGML:
		d.CaseSensitive = false
		d.SpaceMode = SpaceSGML
		d.Shorttag = true
	case DialectXML, DialectXMLNS:
		d.CaseSensitive = true
		d.Encoding = EncUTF8
		d.SpaceMode = SpacePreserve
		d.Shorttag = false

		p := &Parser{dtd: d}
		for _, decl := range xmlEntityDecls {
			p.processEntityDeclaration([]byte(decl))
		}
	}
}

// symbol interns an element/attribute name under the DTD's folding rule.
func (d *DTD) symbol(name string) *Symbol {
	return d.symbols.add(fold(name, d.CaseSensitive))
}

// entitySymbol interns an entity name under the entity folding rule.
func (d *DTD) entitySymbol(name string) *Symbol {
	return d.entSymbols.add(fold(name, d.EntCaseSensitive))
}

func (d *DTD) findEntitySymbol(name string) *Symbol {
	return d.entSymbols.find(fold(name, d.EntCaseSensitive))
}

// findElement returns the element named by id, creating an undefined
// placeholder on first mention.
func (d *DTD) findElement(id *Symbol) *Element {
	if id.Element != nil {
		return id.Element
	}
	e := &Element{Name: id, SpaceMode: SpaceInherit, Undefined: true}
	id.Element = e
	d.Elements = append(d.Elements, e)
	return e
}

// defElement is findElement plus the guarantee of a structure object.
func (d *DTD) defElement(id *Symbol) *Element {
	e := d.findElement(id)
	if e.Structure == nil {
		e.Structure = &ElementDef{Kind: ContentEmpty, refs: 1}
	}
	return e
}

func (d *DTD) findPEntity(id *Symbol) *Entity {
	for _, e := range d.PEntities {
		if e.Name == id {
			return e
		}
	}
	return nil
}

func (d *DTD) findNotation(id *Symbol) *Notation {
	for _, n := range d.Notations {
		if n.Name == id {
			return n
		}
	}
	return nil
}
