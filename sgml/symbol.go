package sgml

import "strings"

// Symbol is an interned name. Interning gives us pointer identity for element
// and entity names, so the validator and the shortref matcher compare symbols,
// never strings. A symbol carries back-pointers to the element and the general
// entity it names, if any.
type Symbol struct {
	Name    string
	Element *Element
	Entity  *Entity
}

// symbolTable interns symbols by exact spelling. Case folding is applied by
// the token scanners before lookup: element names fold under the DTD's
// case_sensitive rule, entity names under ent_case_sensitive, which is why the
// DTD keeps two tables of the same shape.
type symbolTable struct {
	byName map[string]*Symbol
}

func newSymbolTable() *symbolTable {
	return &symbolTable{byName: make(map[string]*Symbol)}
}

// add returns the existing symbol for name, or interns a new one.
func (t *symbolTable) add(name string) *Symbol {
	if s, ok := t.byName[name]; ok {
		return s
	}
	s := &Symbol{Name: name}
	t.byName[name] = s
	return s
}

func (t *symbolTable) find(name string) *Symbol {
	return t.byName[name]
}

// fold lowercases a name when the table's owner is case-insensitive.
func fold(name string, caseSensitive bool) string {
	if caseSensitive {
		return name
	}
	return strings.ToLower(name)
}
