package sgml

// AttrType is the declared type of an attribute.
type AttrType int

const (
	AttrCDATA AttrType = iota
	AttrEntity
	AttrEntities
	AttrID
	AttrIDRef
	AttrIDRefs
	AttrName
	AttrNames
	AttrNMToken
	AttrNMTokens
	AttrNumber
	AttrNumbers
	AttrNuToken
	AttrNuTokens
	AttrNameOf // enumerated (a|b|c)
	AttrNotation
)

func (t AttrType) String() string {
	switch t {
	case AttrCDATA:
		return "CDATA"
	case AttrEntity, AttrEntities:
		return "ENTITY"
	case AttrID:
		return "ID"
	case AttrIDRef, AttrIDRefs:
		return "IDREF"
	case AttrName, AttrNames, AttrNameOf:
		return "NAME"
	case AttrNMToken, AttrNMTokens:
		return "NMTOKEN"
	case AttrNumber, AttrNumbers:
		return "NUMBER"
	case AttrNuToken, AttrNuTokens:
		return "NUTOKEN"
	case AttrNotation:
		return "NOTATION"
	}
	return "CDATA"
}

// AttrDefault is the declared default class of an attribute.
type AttrDefault int

const (
	DefaultValue AttrDefault = iota // a literal default
	DefaultFixed
	DefaultRequired
	DefaultCurrent // treated as IMPLIED at parse time; not tracked
	DefaultConref  // start-tag is self-closing when present
	DefaultImplied
)

// AttrDef is one attribute declaration. The same AttrDef is shared by every
// element of an <!ATTLIST (a|b|c) ...> name group (ref-counted).
type AttrDef struct {
	Name    *Symbol
	Type    AttrType
	Default AttrDefault
	NameOf  []*Symbol // enumerands for AttrNameOf/AttrNotation
	IsList  bool

	// default value payload, discriminated by Type
	DefCDATA  string
	DefName   *Symbol
	DefList   string
	DefNumber int64

	refs int
}

// defaultText returns the default value rendered as instance text.
func (a *AttrDef) defaultText(mode NumberMode) (cdata string, text string, num int64) {
	switch a.Type {
	case AttrCDATA:
		return a.DefCDATA, "", 0
	case AttrNumber:
		if mode == NumberToken {
			return "", a.DefName.Name, 0
		}
		return "", "", a.DefNumber
	default:
		if a.IsList {
			return "", a.DefList, 0
		}
		if a.DefName != nil {
			return "", a.DefName.Name, 0
		}
		return "", "", 0
	}
}

// Attribute is one attribute instance of a start-tag as delivered to
// OnBeginElement. CDATA-typed values arrive in CDATA, tokenised values in
// Text, numeric values in Number when the DTD runs in integer mode.
type Attribute struct {
	Definition *AttrDef
	CDATA      string
	Text       string
	Number     int64
	IsDefault  bool // value shared with the DTD, not present in the instance
}

// Value returns the CDATA or token payload of the attribute as a string. The
// Number payload of a NUMBER attribute in integer mode is not included.
func (a *Attribute) Value() string {
	if a.Definition != nil && a.Definition.Type == AttrCDATA {
		return a.CDATA
	}
	if a.Text != "" {
		return a.Text
	}
	if a.CDATA != "" {
		return a.CDATA
	}
	return ""
}

func (e *Element) findAttribute(name *Symbol) *AttrDef {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// addAttribute attaches a to e; an attempt to redefine an attribute keeps the
// first definition per the SGML standard, with a style diagnostic.
func (p *Parser) addAttribute(e *Element, a *AttrDef) {
	if e.findAttribute(a.Name) != nil {
		p.gripe(ErrRedefined, "attribute", a.Name.Name)
		return
	}
	a.refs++
	e.Attributes = append(e.Attributes, a)
	setElementProperties(e, a)
}

// setElementProperties propagates an xml:space attribute default into the
// element's static space mode.
func setElementProperties(e *Element, a *AttrDef) {
	if a.Name.Name != "xml:space" {
		return
	}
	switch a.Default {
	case DefaultFixed, DefaultValue:
	default:
		return
	}
	switch a.Type {
	case AttrNameOf, AttrName, AttrNMToken:
		if a.DefName != nil {
			e.SpaceMode = spaceModeFromString(a.DefName.Name)
		}
	case AttrCDATA:
		e.SpaceMode = spaceModeFromString(a.DefCDATA)
	}
}

func spaceModeFromString(val string) SpaceMode {
	switch fold(val, false) {
	case "default":
		return SpaceDefault
	case "preserve":
		return SpacePreserve
	case "sgml":
		return SpaceSGML
	case "remove":
		return SpaceRemove
	}
	return SpaceInherit
}
