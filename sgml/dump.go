package sgml

import (
	"fmt"
	"io"
	"strings"
)

// ============================================================================
// 15. DTD SERIALISATION
// ============================================================================
// DumpDTD writes the in-memory document type back out as declaration syntax.
// Re-parsing the output yields a structurally equivalent DTD, which is also
// how the test suite checks the declaration parser against itself. External
// entities are written without a CDATA, SDATA or NDATA keyword (the notation
// name is not kept), so they re-parse with SGML content.

// DumpDTD serialises notations, entities, elements, attribute lists and
// shortref maps of d to w.
func DumpDTD(w io.Writer, d *DTD) error {
	for _, n := range d.Notations {
		if err := dumpNotation(w, n); err != nil {
			return err
		}
	}
	for _, e := range d.PEntities {
		if err := dumpEntity(w, e, true); err != nil {
			return err
		}
	}
	for _, e := range d.Entities {
		if err := dumpEntity(w, e, false); err != nil {
			return err
		}
	}
	for _, sr := range d.Shortrefs {
		if sr.Defined {
			if err := dumpShortref(w, sr); err != nil {
				return err
			}
		}
	}
	for _, e := range d.Elements {
		if e.Undefined || e.Structure == nil {
			continue
		}
		if err := dumpElement(w, e); err != nil {
			return err
		}
		if len(e.Attributes) > 0 {
			if err := dumpAttlist(w, e); err != nil {
				return err
			}
		}
		if e.Map != nil {
			if _, err := fmt.Fprintf(w, "<!USEMAP %s %s>\n",
				e.Map.Name.Name, e.Name.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpNotation(w io.Writer, n *Notation) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!NOTATION %s", n.Name.Name)
	if n.PublicID != "" {
		sb.WriteString(` PUBLIC "` + n.PublicID + `"`)
	} else {
		sb.WriteString(" SYSTEM")
	}
	if n.SystemID != "" {
		sb.WriteString(` "` + n.SystemID + `"`)
	}
	sb.WriteString(">\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func dumpEntity(w io.Writer, e *Entity, param bool) error {
	var sb strings.Builder
	sb.WriteString("<!ENTITY ")
	if param {
		sb.WriteString("% ")
	}
	sb.WriteString(e.Name.Name)

	switch e.Type {
	case EntitySystem:
		sb.WriteString(` SYSTEM "` + e.SystemID + `"`)
	case EntityPublic:
		sb.WriteString(` PUBLIC "` + e.PublicID + `"`)
		if e.SystemID != "" {
			sb.WriteString(` "` + e.SystemID + `"`)
		}
	default:
		switch e.Content {
		case DataCDATA:
			sb.WriteString(" CDATA")
		case DataSDATA:
			sb.WriteString(" SDATA")
		case DataPI:
			sb.WriteString(" PI")
		}
		sb.WriteString(` "` + quoteEntityValue(e.Value) + `"`)
	}
	sb.WriteString(">\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// quoteEntityValue re-encodes bytes that would terminate or re-expand inside
// a literal as character references.
func quoteEntityValue(val []byte) string {
	var sb strings.Builder
	for _, c := range val {
		switch {
		case c == '"' || c == '&' || c == '%' || c < 0x20:
			fmt.Fprintf(&sb, "&#%d;", c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func dumpElement(w io.Writer, e *Element) error {
	def := e.Structure
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!ELEMENT %s ", e.Name.Name)

	fmt.Fprintf(&sb, "%s %s ", omitFlag(def.OmitOpen), omitFlag(def.OmitClose))

	switch def.Kind {
	case ContentEmpty:
		sb.WriteString("EMPTY")
	case ContentCDATA:
		sb.WriteString("CDATA")
	case ContentRCDATA:
		sb.WriteString("RCDATA")
	case ContentAny:
		sb.WriteString("ANY")
	case ContentModel:
		dumpModel(&sb, def.Content, true)
	}

	if len(def.Included) > 0 {
		sb.WriteString(" +(")
		for i, x := range def.Included {
			if i > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(x.Name.Name)
		}
		sb.WriteByte(')')
	}
	if len(def.Excluded) > 0 {
		sb.WriteString(" -(")
		for i, x := range def.Excluded {
			if i > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(x.Name.Name)
		}
		sb.WriteByte(')')
	}

	sb.WriteString(">\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func omitFlag(b bool) string {
	if b {
		return "O"
	}
	return "-"
}

func dumpModel(sb *strings.Builder, m *Model, outer bool) {
	switch m.Type {
	case MTPCDATA:
		if outer {
			sb.WriteString("(#PCDATA)")
		} else {
			sb.WriteString("#PCDATA")
		}
	case MTElement:
		if outer {
			sb.WriteByte('(')
		}
		sb.WriteString(m.Element.Name.Name)
		if outer {
			sb.WriteByte(')')
		}
	case MTSeq, MTAnd, MTOr:
		conn := map[ModelType]byte{MTSeq: ',', MTAnd: '&', MTOr: '|'}[m.Type]
		sb.WriteByte('(')
		for i, sub := range m.Group {
			if i > 0 {
				sb.WriteByte(conn)
			}
			dumpModel(sb, sub, false)
		}
		sb.WriteByte(')')
	}
	switch m.Card {
	case CardOpt:
		sb.WriteByte('?')
	case CardRep:
		sb.WriteByte('*')
	case CardPlus:
		sb.WriteByte('+')
	}
}

func dumpAttlist(w io.Writer, e *Element) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!ATTLIST %s", e.Name.Name)
	for _, a := range e.Attributes {
		fmt.Fprintf(&sb, "\n\t%s ", a.Name.Name)

		switch a.Type {
		case AttrNameOf, AttrNotation:
			if a.Type == AttrNotation {
				sb.WriteString("NOTATION ")
			}
			sb.WriteByte('(')
			for i, nm := range a.NameOf {
				if i > 0 {
					sb.WriteByte('|')
				}
				sb.WriteString(nm.Name)
			}
			sb.WriteByte(')')
		default:
			sb.WriteString(attlistTypeName(a))
		}

		switch a.Default {
		case DefaultFixed:
			sb.WriteString(" #FIXED")
			sb.WriteString(" " + attlistDefault(a))
		case DefaultRequired:
			sb.WriteString(" #REQUIRED")
		case DefaultCurrent:
			sb.WriteString(" #CURRENT")
		case DefaultConref:
			sb.WriteString(" #CONREF")
		case DefaultImplied:
			sb.WriteString(" #IMPLIED")
		case DefaultValue:
			sb.WriteString(" " + attlistDefault(a))
		}
	}
	sb.WriteString(">\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func attlistTypeName(a *AttrDef) string {
	switch a.Type {
	case AttrCDATA:
		return "CDATA"
	case AttrEntity:
		return "ENTITY"
	case AttrEntities:
		return "ENTITIES"
	case AttrID:
		return "ID"
	case AttrIDRef:
		return "IDREF"
	case AttrIDRefs:
		return "IDREFS"
	case AttrName:
		return "NAME"
	case AttrNames:
		return "NAMES"
	case AttrNMToken:
		return "NMTOKEN"
	case AttrNMTokens:
		return "NMTOKENS"
	case AttrNumber:
		return "NUMBER"
	case AttrNumbers:
		return "NUMBERS"
	case AttrNuToken:
		return "NUTOKEN"
	case AttrNuTokens:
		return "NUTOKENS"
	}
	return "CDATA"
}

func attlistDefault(a *AttrDef) string {
	switch a.Type {
	case AttrCDATA:
		return `"` + a.DefCDATA + `"`
	case AttrNumber:
		if a.DefName != nil {
			return a.DefName.Name
		}
		return fmt.Sprintf("%d", a.DefNumber)
	default:
		if a.IsList {
			return `"` + a.DefList + `"`
		}
		if a.DefName != nil {
			return a.DefName.Name
		}
		return `""`
	}
}

func dumpShortref(w io.Writer, sr *ShortrefMap) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!SHORTREF %s", sr.Name.Name)
	for _, m := range sr.Map {
		sb.WriteString(" \"")
		for _, c := range m.From {
			switch c {
			case chrBlank:
				sb.WriteByte('B')
			case chrDBlank:
				sb.WriteString("BB")
			case '"':
				sb.WriteString("&#34;")
			case 'B':
				sb.WriteString("&#66;")
			default:
				if c < 0x20 {
					fmt.Fprintf(&sb, "&#%d;", c)
				} else {
					sb.WriteByte(c)
				}
			}
		}
		fmt.Fprintf(&sb, "\" %s", m.To.Name)
	}
	sb.WriteString(">\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
