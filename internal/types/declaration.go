package types

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every declaration lookup key so that declaration names can
// never collide with free-text query strings in the index's key space.
const KeyPrefix = "__SCALA_SYMBOL__"

// Key returns the namespaced lookup key for a declaration name
func Key(name string) string {
	return KeyPrefix + name
}

// StripKey removes the namespace prefix from a lookup key.
// Keys without the prefix are returned unchanged.
func StripKey(key string) string {
	return strings.TrimPrefix(key, KeyPrefix)
}

// DeclKind is the closed set of declaration kinds the extractor can produce
type DeclKind uint8

const (
	DeclKindClass DeclKind = iota + 1
	DeclKindInterface
	DeclKindVariable
	DeclKindFunction
	DeclKindTypeParameter
)

// LSP SymbolKind values for each DeclKind (LSP 3.16 numbering)
const (
	lspSymbolKindClass         = 5
	lspSymbolKindInterface     = 11
	lspSymbolKindFunction      = 12
	lspSymbolKindVariable      = 13
	lspSymbolKindTypeParameter = 26
)

// String returns a human-readable kind name
func (k DeclKind) String() string {
	switch k {
	case DeclKindClass:
		return "class"
	case DeclKindInterface:
		return "interface"
	case DeclKindVariable:
		return "variable"
	case DeclKindFunction:
		return "function"
	case DeclKindTypeParameter:
		return "type_parameter"
	default:
		return fmt.Sprintf("DeclKind(%d)", uint8(k))
	}
}

// SymbolKind returns the LSP SymbolKind number for the kind
func (k DeclKind) SymbolKind() int {
	switch k {
	case DeclKindClass:
		return lspSymbolKindClass
	case DeclKindInterface:
		return lspSymbolKindInterface
	case DeclKindVariable:
		return lspSymbolKindVariable
	case DeclKindFunction:
		return lspSymbolKindFunction
	case DeclKindTypeParameter:
		return lspSymbolKindTypeParameter
	default:
		return 0
	}
}

// MarshalText lets kinds serialize by name in JSON output
func (k DeclKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText
func (k *DeclKind) UnmarshalText(text []byte) error {
	for c := DeclKindClass; c <= DeclKindTypeParameter; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown declaration kind %q", text)
}

// SourceFile is one discovered candidate file.
// RelativePath is AbsolutePath with the workspace root prefix stripped.
type SourceFile struct {
	AbsolutePath string `json:"absolute_path"`
	RelativePath string `json:"relative_path"`
}

// Declaration is one named construct found by heuristic line scanning.
// Line and Column are 0-based; Column points at the first character of the name
// and is measured in UTF-16 code units to match editor positions.
type Declaration struct {
	Key         string      `json:"-"`
	DisplayName string      `json:"name"`
	Kind        DeclKind    `json:"kind"`
	File        *SourceFile `json:"file"`
	Line        int         `json:"line"`
	Column      int         `json:"column"`
}

// NewDeclaration builds a declaration with its namespaced key filled in
func NewDeclaration(name string, kind DeclKind, file *SourceFile, line, column int) Declaration {
	return Declaration{
		Key:         Key(name),
		DisplayName: name,
		Kind:        kind,
		File:        file,
		Line:        line,
		Column:      column,
	}
}

// Location is a plain result value pointing at a declaration site
type Location struct {
	Path   string `json:"path"`
	URI    string `json:"uri"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// SymbolResult is one ranked workspace-symbol hit with the namespace prefix stripped
type SymbolResult struct {
	Name     string   `json:"name"`
	Kind     DeclKind `json:"kind"`
	Location Location `json:"location"`
}

// Settings is the process-wide settings snapshot negotiated with the editor.
// It is replaced wholesale on every configuration change.
type Settings struct {
	HoverEnabled bool `json:"hoverEnabled"`
}

// DefaultSettings returns the settings in effect before the first configuration event
func DefaultSettings() Settings {
	return Settings{HoverEnabled: true}
}
