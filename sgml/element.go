package sgml

// ContentKind is an element's declared content.
type ContentKind int

const (
	ContentEmpty ContentKind = iota
	ContentCDATA
	ContentRCDATA
	ContentAny
	ContentModel // #PCDATA or a model group
)

// Element is one element type of the DTD. It is created lazily on first
// mention (Undefined=true) and filled in when its <!ELEMENT> is seen.
type Element struct {
	Name       *Symbol
	Structure  *ElementDef
	Attributes []*AttrDef
	Map        *ShortrefMap // bound by <!USEMAP>
	SpaceMode  SpaceMode    // static mode from an xml:space default
	Undefined  bool
}

// ElementDef is the declared structure of an element. One ElementDef is
// shared (ref-counted) by every element of a name-group declaration.
type ElementDef struct {
	Kind      ContentKind
	Content   *Model
	Included  []*Element
	Excluded  []*Element
	OmitOpen  bool
	OmitClose bool

	refs    int
	initial *ModelState // compiled lazily from Content
}

// textElement is the pseudo-element pushed through the validator when
// character data arrives; it matches #PCDATA leaves in content models.
var textElement = &Element{Name: &Symbol{Name: "#PCDATA"}}

// initialState compiles the content model on first use and returns the start
// state of the engine. Nil for non-model content.
func (def *ElementDef) initialState() *ModelState {
	if def.Kind != ContentModel || def.Content == nil {
		return nil
	}
	if def.initial == nil {
		def.initial = compileModel(def.Content)
	}
	return def.initial
}

// allowFor extends the implicit content model of an undefined element with a
// newly observed child. Undefined elements accumulate an (a|b|...)* of what
// the instance actually contains, plus #PCDATA.
func (def *ElementDef) allowFor(e *Element) {
	if def.Kind == ContentEmpty {
		def.Kind = ContentModel
		def.Content = &Model{Type: MTOr, Card: CardRep}
	}
	if def.Content == nil || def.Content.Type != MTOr {
		return
	}
	if e == textElement {
		for _, g := range def.Content.Group {
			if g.Type == MTPCDATA {
				return
			}
		}
		def.Content.Group = append(def.Content.Group, &Model{Type: MTPCDATA, Card: CardOne})
	} else {
		for _, g := range def.Content.Group {
			if g.Type == MTElement && g.Element == e {
				return
			}
		}
		def.Content.Group = append(def.Content.Group,
			&Model{Type: MTElement, Card: CardOne, Element: e})
	}
	def.initial = nil // recompile on next use
}
