// Package schema loads XML Schema documents into an in-memory corpus: each
// document's prefix scope, its top-level named declarations, and the
// import/include graph between documents.
package schema

import (
	"fmt"

	"aqwari.net/xml/xmltree"
)

// XSDNamespace is the namespace of the schema definition language itself.
// References into it name built-in primitives and are never rewritten or
// traversed.
const XSDNamespace = "http://www.w3.org/2001/XMLSchema"

// DefaultFamilies is the namespace-URI prefix list treated as project-owned
// when a corpus is created without an explicit family list. Imports whose
// namespace falls outside every family are foreign: recorded for verbatim
// copying, never loaded.
var DefaultFamilies = []string{"http://www.iata.org"}

// Symbol identifies one named top-level declaration.
type Symbol struct {
	Namespace string // target namespace of the defining document; empty when it has none
	Local     string // value of the declaration's name attribute
}

// String renders the symbol in Clark notation, e.g. "{urn:ns}OrderType".
func (s Symbol) String() string {
	if s.Namespace == "" {
		return s.Local
	}
	return fmt.Sprintf("{%s}%s", s.Namespace, s.Local)
}

// Decl is one named top-level declaration together with its full subtree.
// Node is owned by the origin document; callers must deep-copy before
// mutating.
type Decl struct {
	Symbol Symbol
	Kind   string           // one of the five declaration kinds, e.g. "complexType"
	Node   *xmltree.Element // parsed subtree, never mutated after load
	Origin *Document        // document whose prefix scope resolves Node's references
}

// ForeignImport records an import of a namespace outside the project's
// family. The file at Location is copied verbatim into the output directory
// when the namespace is actually referenced by reachable declarations.
type ForeignImport struct {
	Namespace string
	Location  string
}

// Document is the structural record of one loaded schema file.
type Document struct {
	Path     string // cleaned corpus-relative path, also the memoization key
	TargetNS string // targetNamespace attribute; empty when absent
	Version  string // version attribute of the schema root; empty when absent

	// Prefixes maps each prefix declared anywhere in the document to its
	// namespace; the empty key is the default namespace. Later declarations
	// of the same prefix overwrite earlier ones. PrefixOrder lists prefixes
	// in first-declaration document order.
	Prefixes    map[string]string
	PrefixOrder []string

	Decls     map[Symbol]*Decl
	DeclOrder []Symbol // document order of top-level declarations

	Imports []string // corpus-relative paths of loaded import/include targets
}

// Diagnostic is a structured error or warning record emitted during loading
// or flattening.
type Diagnostic struct {
	Severity string `json:"severity"` // "error" | "warning"
	Code     string `json:"code"`     // e.g. "SCHE001", "FLTW002"
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"` // document the finding concerns, empty if none
}

// Corpus loading errors (document skipped, siblings continue).
const (
	CodeDocParseFailure  = "SCHE001"
	CodeImportUnreadable = "SCHE002"
)

// Corpus loading warnings.
const (
	CodeSymbolCollision = "SCHW001"
)

// Flattening errors (fatal for one entry document only).
const (
	CodeEntryUnloadable = "FLTE001"
)

// Flattening warnings (output degrades, run continues).
const (
	CodeUnresolvedReference = "FLTW001"
	CodeDanglingReference   = "FLTW002"
	CodeForeignUnreadable   = "FLTW003"
)

// declKinds are the top-level declaration kinds collected into the symbol
// table when they carry a name attribute.
var declKinds = map[string]bool{
	"complexType":    true,
	"simpleType":     true,
	"element":        true,
	"group":          true,
	"attributeGroup": true,
}

// IsDeclKind reports whether local is one of the five recognized top-level
// declaration kinds.
func IsDeclKind(local string) bool {
	return declKinds[local]
}
