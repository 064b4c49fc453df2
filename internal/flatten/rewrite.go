package flatten

import (
	"aqwari.net/xml/xmltree"

	"github.com/ndckit/xsdflat/internal/schema"
)

// Rewrite returns an independent copy of decl's subtree with every
// reference attribute re-encoded to the plan's prefix scheme. Raw values
// are interpreted against the origin document's bindings, never the output
// document's. inCommon selects the spelling of main-namespace references.
// The original node is never mutated.
func Rewrite(decl *schema.Decl, plan *Plan, inCommon bool) *xmltree.Element {
	out := deepCopy(decl.Node)
	schema.WalkRefs(out, func(owner *xmltree.Element, attr, value string) {
		ref := decl.Origin.Resolve(value)
		if ref.Kind == schema.RefNone {
			return
		}
		if ref.Kind == schema.RefUnresolvedPrefix {
			// Best effort: strip the unknown prefix so the output stays
			// well-formed.
			setAttr(owner, attr, ref.Symbol.Local)
			return
		}
		setAttr(owner, attr, plan.Spell(ref.Symbol, inCommon))
	})
	return out
}

// Spell returns the output spelling for a resolved reference, applied
// identically in every document so that one namespace always reads as one
// prefix. inCommon says whether the spelling appears in a common document.
func (p *Plan) Spell(sym schema.Symbol, inCommon bool) string {
	if sym.Namespace == schema.XSDNamespace {
		return XSDPrefix + ":" + sym.Local
	}
	if prefix, ok := p.CommonPrefixes[sym.Namespace]; ok {
		return prefix + ":" + sym.Local
	}
	if sym.Namespace == p.MainNS {
		if inCommon {
			return MainBackRefPrefix + ":" + sym.Local
		}
		return sym.Local
	}
	if prefix, ok := p.ForeignPrefixes[sym.Namespace]; ok {
		return prefix + ":" + sym.Local
	}
	return sym.Local
}

func deepCopy(el *xmltree.Element) *xmltree.Element {
	out := *el
	out.StartElement = el.StartElement.Copy()
	out.Content = append([]byte(nil), el.Content...)
	out.Children = make([]xmltree.Element, len(el.Children))
	for i := range el.Children {
		out.Children[i] = *deepCopy(&el.Children[i])
	}
	return &out
}

func setAttr(el *xmltree.Element, local, value string) {
	for i, a := range el.StartElement.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			el.StartElement.Attr[i].Value = value
			return
		}
	}
}
