package schema

import "strings"

// RefKind discriminates the outcome of resolving a raw reference value.
type RefKind int

const (
	// RefNone means the raw value was empty; there is no reference.
	RefNone RefKind = iota
	// RefResolved means the value mapped to a concrete namespace and local
	// name, either through a prefix binding or the document's own namespace.
	RefResolved
	// RefUnresolvedPrefix means the value carried a prefix bound to no
	// namespace in the document's scope. Traversal must not follow it.
	RefUnresolvedPrefix
)

// Ref is the resolution outcome for one reference attribute value.
type Ref struct {
	Kind   RefKind
	Symbol Symbol // namespace and local name; Namespace is empty for RefUnresolvedPrefix
	Prefix string // prefix as written in the source value, empty when none
}

// Resolve maps a raw qualified-name string to a Ref using the prefix
// bindings of the document it was found in. An unprefixed value resolves
// against currentNS, following the convention that it names a declaration in
// the document's own namespace. The conventional "xs" prefix falls back to
// the schema definition language namespace even when the document never
// declares it.
func Resolve(raw, currentNS string, bindings map[string]string) Ref {
	if raw == "" {
		return Ref{Kind: RefNone}
	}
	prefix, local, found := strings.Cut(raw, ":")
	if !found || prefix == "" {
		if !found {
			local = raw
		}
		return Ref{Kind: RefResolved, Symbol: Symbol{Namespace: currentNS, Local: local}}
	}
	if ns, ok := bindings[prefix]; ok && ns != "" {
		return Ref{Kind: RefResolved, Symbol: Symbol{Namespace: ns, Local: local}, Prefix: prefix}
	}
	if prefix == "xs" {
		return Ref{Kind: RefResolved, Symbol: Symbol{Namespace: XSDNamespace, Local: local}, Prefix: prefix}
	}
	return Ref{Kind: RefUnresolvedPrefix, Symbol: Symbol{Local: local}, Prefix: prefix}
}

// Resolve resolves raw within this document's prefix scope and target
// namespace.
func (d *Document) Resolve(raw string) Ref {
	return Resolve(raw, d.TargetNS, d.Prefixes)
}
