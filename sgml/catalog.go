package sgml

import (
	"os"
	"path/filepath"
	"strings"
)

// ============================================================================
// 13. CATALOGUE COLLABORATION
// ============================================================================
// Catalogue resolution itself is the embedder's job; the parser only consumes
// the two collaborator interfaces (Catalogue and Loader). What lives here is
// the default loader and a simple file-map catalogue convenient for CLIs and
// tests.

// LoadBytes is the default Loader: it reads a file and, when asked,
// normalises CR LF and bare CR line endings to LF.
func LoadBytes(path string, normalise bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if normalise {
		data = normaliseNewlines(data)
	}
	return data, nil
}

func normaliseNewlines(data []byte) []byte {
	out := data[:0]
	for i := 0; i < len(data); i++ {
		if data[i] == '\r' {
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			out = append(out, '\n')
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func isAbsolutePath(path string) bool {
	return filepath.IsAbs(path)
}

// localPath resolves a relative system identifier against the directory of
// the referencing document.
func localPath(base, rel string) string {
	return filepath.Join(filepath.Dir(base), rel)
}

// FileCatalogue maps doctype/entity names to paths, the way a small driver
// program would set one up. Lookup order: the name lower-cased (so entry keys
// must be lower-case to match), then system identifier as a literal path.
func FileCatalogue(entries map[string]string) Catalogue {
	return func(kind CatalogKind, name, publicID, systemID string, xml bool) (string, bool) {
		if path, ok := entries[strings.ToLower(name)]; ok {
			return path, true
		}
		if systemID != "" {
			if _, err := os.Stat(systemID); err == nil {
				return systemID, true
			}
		}
		return "", false
	}
}
