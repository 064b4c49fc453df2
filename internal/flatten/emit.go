package flatten

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strings"

	"aqwari.net/xml/xmltree"

	"github.com/ndckit/xsdflat/internal/schema"
)

const (
	xmlNamespace   = "http://www.w3.org/XML/1998/namespace"
	xmlnsNamespace = "http://www.w3.org/2000/xmlns/"
)

// renderDocument serializes one planned output document: header, a root
// element declaring exactly the prefixes the content uses, import
// statements, then the rewritten declarations sorted by local name. The
// byte stream is a pure function of the plan and the declarations, so
// re-running a flatten reproduces it exactly.
func renderDocument(p *Plan, d *DocPlan, decls []*xmltree.Element) []byte {
	inCommon := d.Namespace != p.MainNS

	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<xs:schema xmlns:` + XSDPrefix + `="` + schema.XSDNamespace + `"`)
	if d.Namespace != "" {
		b.WriteString(` xmlns="` + attrEscape(d.Namespace) + `"`)
	}
	if inCommon && d.RefsMain {
		b.WriteString(` xmlns:` + MainBackRefPrefix + `="` + attrEscape(p.MainNS) + `"`)
	}
	var commonDecls []string
	for ns := range d.Uses {
		if _, ok := p.CommonPrefixes[ns]; ok {
			commonDecls = append(commonDecls, ns)
		}
	}
	sort.Strings(commonDecls)
	for _, ns := range commonDecls {
		b.WriteString(` xmlns:` + p.CommonPrefixes[ns] + `="` + attrEscape(ns) + `"`)
	}
	for _, ns := range d.Foreign {
		b.WriteString(` xmlns:` + p.ForeignPrefixes[ns] + `="` + attrEscape(ns) + `"`)
	}
	if d.Namespace != "" {
		b.WriteString(` targetNamespace="` + attrEscape(d.Namespace) + `"`)
	}
	b.WriteString(` elementFormDefault="qualified"`)
	b.WriteString(` version="` + attrEscape(p.Version) + `">` + "\n")

	writeImport := func(ns, location string) {
		b.WriteString(`  <xs:import namespace="` + attrEscape(ns) +
			`" schemaLocation="` + attrEscape(location) + `"/>` + "\n")
	}
	for _, ns := range d.Foreign {
		writeImport(ns, p.ForeignFiles[ns])
	}
	for _, ns := range d.Commons {
		writeImport(ns, p.commonFile(ns))
	}
	if inCommon && d.RefsMain {
		writeImport(p.MainNS, p.Main.FileName)
	}

	for _, el := range decls {
		renderElement(&b, el, 1, d.Namespace)
	}
	b.WriteString("</xs:schema>\n")
	return b.Bytes()
}

// renderElement writes el and its subtree with two-space indentation.
// Elements in the schema definition language namespace are spelled with the
// fixed prefix; an element in any other namespace is spelled bare with an
// inline default-namespace declaration when its namespace differs from the
// inherited default. Leaf elements keep their character data verbatim;
// character data interleaved between child elements is dropped.
func renderElement(b *bytes.Buffer, el *xmltree.Element, depth int, inheritedDefault string) {
	indent := strings.Repeat("  ", depth)
	name := el.Name.Local
	childDefault := inheritedDefault
	var inlineNS string
	hasInlineNS := false
	if el.Name.Space == schema.XSDNamespace {
		name = XSDPrefix + ":" + el.Name.Local
	} else if el.Name.Space != inheritedDefault {
		inlineNS = el.Name.Space
		hasInlineNS = true
		childDefault = el.Name.Space
	}

	b.WriteString(indent + "<" + name)
	if hasInlineNS {
		b.WriteString(` xmlns="` + attrEscape(inlineNS) + `"`)
	}
	for _, a := range el.StartElement.Attr {
		switch a.Name.Space {
		case "xmlns", xmlnsNamespace:
			continue // source namespace declarations never survive rewriting
		case "":
			if a.Name.Local == "xmlns" {
				continue
			}
			b.WriteString(` ` + a.Name.Local + `="` + attrEscape(a.Value) + `"`)
		case xmlNamespace:
			b.WriteString(` xml:` + a.Name.Local + `="` + attrEscape(a.Value) + `"`)
		default:
			b.WriteString(` ` + a.Name.Local + `="` + attrEscape(a.Value) + `"`)
		}
	}

	if len(el.Children) == 0 {
		content := bytes.TrimSpace(el.Content)
		if len(content) == 0 {
			b.WriteString("/>\n")
			return
		}
		b.WriteString(">")
		b.Write(content)
		b.WriteString("</" + name + ">\n")
		return
	}
	b.WriteString(">\n")
	for i := range el.Children {
		renderElement(b, &el.Children[i], depth+1, childDefault)
	}
	b.WriteString(indent + "</" + name + ">\n")
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#xA;",
	"\r", "&#xD;",
	"\t", "&#x9;",
)

func attrEscape(s string) string {
	return attrEscaper.Replace(s)
}
