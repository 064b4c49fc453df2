package schema

import "aqwari.net/xml/xmltree"

// refAttrs are the reference-bearing attributes, in scan order. Load
// analysis, reachability, and prefix rewriting all walk exactly this set.
var refAttrs = [...]string{"type", "base", "ref", "itemType", "substitutionGroup"}

// WalkRefs calls fn for every non-empty reference-bearing attribute on el
// and on every descendant, in depth-first document order. The element passed
// to fn is the node that owns the attribute, aliased into el's subtree so
// callers may rewrite the attribute in place.
func WalkRefs(el *xmltree.Element, fn func(owner *xmltree.Element, attr, value string)) {
	for _, attr := range refAttrs {
		if v := unqualifiedAttr(el, attr); v != "" {
			fn(el, attr, v)
		}
	}
	for i := range el.Children {
		WalkRefs(&el.Children[i], fn)
	}
}

// unqualifiedAttr returns the value of the unprefixed attribute named local,
// or "" when absent. Reference attributes in schema documents are never
// namespace-qualified; a qualified attribute of the same local name does not
// count.
func unqualifiedAttr(el *xmltree.Element, local string) string {
	for _, a := range el.StartElement.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
