package sgml

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ============================================================================
// 16. DEMONSTRATION CLI
// ============================================================================
// Run drives the parser from a file and prints a line-based event trace:
//
//	ANAME TYPE value   attribute of the next open
//	(NAME              element open
//	)NAME              element close
//	-cdata  Ndata  Sdata  ?pi?  &name;/&#n;
//	C                  clean termination
//
// Invocation: prog [-xml] [-s] [file.dtd] file

// TraceHandler writes the classic event trace to w.
func TraceHandler(w io.Writer) Handler {
	return Handler{
		OnBeginElement: func(p *Parser, e *Element, atts []Attribute) bool {
			for i := range atts {
				a := &atts[i]
				def := a.Definition
				name := strings.ToUpper(def.Name.Name)
				switch def.Type {
				case AttrCDATA:
					fmt.Fprintf(w, "A%s CDATA %s\n", name, a.CDATA)
				case AttrNumber:
					if a.Text != "" {
						fmt.Fprintf(w, "A%s NUMBER %s\n", name, a.Text)
					} else {
						fmt.Fprintf(w, "A%s NUMBER %d\n", name, a.Number)
					}
				case AttrNameOf:
					fmt.Fprintf(w, "A%s NAME %s\n", name, strings.ToUpper(a.Text))
				default:
					fmt.Fprintf(w, "A%s %s %s\n", name,
						def.Type.String(), strings.ToUpper(a.Text))
				}
			}
			fmt.Fprintf(w, "(%s\n", strings.ToUpper(e.Name.Name))
			return true
		},
		OnEndElement: func(p *Parser, e *Element) bool {
			fmt.Fprintf(w, ")%s\n", strings.ToUpper(e.Name.Name))
			return true
		},
		OnData: func(p *Parser, kind DataKind, data []byte) bool {
			switch kind {
			case DataNDATA:
				fmt.Fprint(w, "N")
			case DataSDATA:
				fmt.Fprint(w, "S")
			default:
				fmt.Fprint(w, "-")
			}
			for _, c := range data {
				if c == '\n' {
					fmt.Fprint(w, `\n`)
				} else {
					fmt.Fprintf(w, "%c", c)
				}
			}
			fmt.Fprintln(w)
			return true
		},
		OnEntity: func(p *Parser, ent *Entity, code int) bool {
			if ent != nil {
				fmt.Fprintf(w, "&%s;", ent.Name.Name)
			} else {
				fmt.Fprintf(w, "&#%d;", code)
			}
			return true
		},
		OnPI: func(p *Parser, pi []byte) bool {
			fmt.Fprintf(w, "?%s?\n", pi)
			return true
		},
		OnError: func(p *Parser, err *ParseError) bool {
			fmt.Fprintf(os.Stderr, "SGML: %s\n", err.Error())
			return true
		},
	}
}

func usage(prog string) int {
	fmt.Fprintf(os.Stderr, "Usage: %s [-xml] [-s] [file.dtd] file\n", prog)
	return 1
}

// Run is the demonstration front-end. Returns the process exit code.
func Run(prog string, args []string) int {
	xml := false
	output := true

	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch args[0] {
		case "-xml":
			xml = true
		case "-s":
			output = false
		default:
			return usage(prog)
		}
		args = args[1:]
	}

	if len(args) == 0 {
		return usage(prog)
	}

	cat := FileCatalogue(map[string]string{"html": "html.dtd"})

	var p *Parser
	ext := ""
	if i := strings.LastIndexByte(args[0], '.'); i >= 0 {
		ext = strings.ToLower(args[0][i:])
	}

	switch {
	case ext == ".dtd":
		doctype := strings.TrimSuffix(args[0], args[0][strings.LastIndexByte(args[0], '.'):])
		p = NewParser(NewDTD(doctype), WithCatalogue(cat))
		p.LoadDTDFile(args[0])
		args = args[1:]
	case ext == ".html" || ext == ".htm":
		p = NewParser(NewDTD("html"), WithCatalogue(cat))
		p.LoadDTDFile("html.dtd")
	case xml || ext == ".xml":
		dtd := NewDTD("")
		dtd.SetDialect(DialectXML)
		p = NewParser(dtd, WithCatalogue(cat))
	default:
		p = NewParser(nil, WithCatalogue(cat))
	}

	if len(args) != 1 {
		return usage(prog)
	}

	if output {
		p.handler = TraceHandler(os.Stdout)
	}
	p.ProcessFile(args[0], 0)
	p.free()
	if output {
		fmt.Println("C")
	}
	return 0
}
