package schema

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"aqwari.net/xml/xmltree"
	slogcontext "github.com/veqryn/slog-context"
)

// Corpus is one flattening session's view of a schema source directory:
// memoized document records, the global symbol table, and foreign import
// records. A Corpus is not safe for concurrent loading; give each parallel
// worker its own.
type Corpus struct {
	fsys     fs.FS
	families []string

	docs     map[string]*Document
	failed   map[string]error
	docOrder []string

	symbols map[Symbol]*Decl

	foreign      map[string]string // namespace -> schemaLocation, first import wins
	foreignOrder []string

	diags []Diagnostic
}

// NewCorpus creates a corpus reading schema documents from dir on the host
// filesystem. families lists the namespace-URI prefixes owned by the
// project; DefaultFamilies applies when none are given.
func NewCorpus(dir string, families ...string) *Corpus {
	return NewCorpusFS(os.DirFS(dir), families...)
}

// NewCorpusFS is NewCorpus over an arbitrary filesystem.
func NewCorpusFS(fsys fs.FS, families ...string) *Corpus {
	if len(families) == 0 {
		families = DefaultFamilies
	}
	return &Corpus{
		fsys:     fsys,
		families: append([]string(nil), families...),
		docs:     make(map[string]*Document),
		failed:   make(map[string]error),
		symbols:  make(map[Symbol]*Decl),
		foreign:  make(map[string]string),
	}
}

// Load parses the schema document at the corpus-relative path name and
// returns its record. Loads are memoized by cleaned path: repeated calls
// return the same record (or the same error) without re-parsing. Loading
// recurses into import/include targets inside the project's namespace
// families; imports of foreign namespaces are recorded for later copying
// instead. A target that cannot be read or parsed is skipped with a
// diagnostic and does not fail its importer.
func (c *Corpus) Load(ctx context.Context, name string) (*Document, error) {
	key := path.Clean(filepath.ToSlash(name))
	if doc, ok := c.docs[key]; ok {
		return doc, nil
	}
	if err, ok := c.failed[key]; ok {
		return nil, err
	}

	logger := slogcontext.FromCtx(ctx)

	data, err := fs.ReadFile(c.fsys, key)
	if err != nil {
		wrapped := fmt.Errorf("reading schema document %s: %w", key, err)
		c.recordFailure(key, wrapped, CodeImportUnreadable, fmt.Sprintf("cannot read schema document: %v", err))
		logger.Error("cannot read schema document", slog.String("path", key), slog.String("error", err.Error()))
		return nil, wrapped
	}

	root, err := xmltree.Parse(data)
	if err != nil {
		wrapped := fmt.Errorf("parsing schema document %s: %w", key, err)
		c.recordFailure(key, wrapped, CodeDocParseFailure, fmt.Sprintf("cannot parse schema document: %v", err))
		logger.Error("failed to parse schema document", slog.String("path", key), slog.String("error", err.Error()))
		return nil, wrapped
	}

	doc := &Document{
		Path:     key,
		TargetNS: root.Attr("", "targetNamespace"),
		Version:  root.Attr("", "version"),
		Decls:    make(map[Symbol]*Decl),
	}
	doc.Prefixes, doc.PrefixOrder = scanPrefixes(data)

	for i := range root.Children {
		child := &root.Children[i]
		if child.Name.Space != XSDNamespace || !IsDeclKind(child.Name.Local) {
			continue
		}
		declName := child.Attr("", "name")
		if declName == "" {
			continue
		}
		sym := Symbol{Namespace: doc.TargetNS, Local: declName}
		decl := &Decl{Symbol: sym, Kind: child.Name.Local, Node: child, Origin: doc}
		if _, seen := doc.Decls[sym]; !seen {
			doc.DeclOrder = append(doc.DeclOrder, sym)
		}
		doc.Decls[sym] = decl
		c.insertSymbol(decl)
	}

	// Memoize before walking imports so include cycles terminate. The
	// record is complete except for Imports, which grows as recursion
	// proceeds.
	c.docs[key] = doc
	c.docOrder = append(c.docOrder, key)

	for i := range root.Children {
		child := &root.Children[i]
		if child.Name.Space != XSDNamespace {
			continue
		}
		if child.Name.Local != "import" && child.Name.Local != "include" {
			continue
		}
		loc := child.Attr("", "schemaLocation")
		if loc == "" {
			continue
		}
		ns := child.Attr("", "namespace")
		if ns != "" && !c.InFamily(ns) {
			if _, ok := c.foreign[ns]; !ok {
				c.foreign[ns] = loc
				c.foreignOrder = append(c.foreignOrder, ns)
			}
			continue
		}
		if _, err := c.Load(ctx, loc); err != nil {
			continue // diagnostic already recorded; sibling imports keep loading
		}
		doc.Imports = append(doc.Imports, path.Clean(filepath.ToSlash(loc)))
	}

	logger.Debug("loaded schema document",
		slog.String("path", key),
		slog.String("targetNamespace", doc.TargetNS),
		slog.Int("declarations", len(doc.DeclOrder)))
	return doc, nil
}

// recordFailure memoizes a failed load so the document is parsed (and
// reported) once no matter how many importers name it.
func (c *Corpus) recordFailure(key string, err error, code, message string) {
	c.failed[key] = err
	c.diags = append(c.diags, Diagnostic{
		Severity: "error",
		Code:     code,
		Message:  message,
		Path:     key,
	})
}

// insertSymbol adds decl to the global symbol table, last write wins. A
// collision between two documents with structurally different content is
// reported before being resolved.
func (c *Corpus) insertSymbol(decl *Decl) {
	prev, ok := c.symbols[decl.Symbol]
	if ok && prev.Origin != decl.Origin && !sameStructure(prev.Node, decl.Node) {
		c.diags = append(c.diags, Diagnostic{
			Severity: "warning",
			Code:     CodeSymbolCollision,
			Message: fmt.Sprintf("%s defined with different content in %s and %s; keeping the definition from %s",
				decl.Symbol, prev.Origin.Path, decl.Origin.Path, decl.Origin.Path),
			Path: decl.Origin.Path,
		})
	}
	c.symbols[decl.Symbol] = decl
}

// InFamily reports whether ns belongs to one of the project's namespace
// families.
func (c *Corpus) InFamily(ns string) bool {
	for _, fam := range c.families {
		if strings.HasPrefix(ns, fam) {
			return true
		}
	}
	return false
}

// Lookup returns the winning declaration for sym in the global symbol table.
func (c *Corpus) Lookup(sym Symbol) (*Decl, bool) {
	d, ok := c.symbols[sym]
	return d, ok
}

// LoadedDocuments returns every successfully loaded document in load order.
func (c *Corpus) LoadedDocuments() []*Document {
	out := make([]*Document, 0, len(c.docOrder))
	for _, p := range c.docOrder {
		out = append(out, c.docs[p])
	}
	return out
}

// ForeignLocation returns the recorded schemaLocation for a foreign
// namespace.
func (c *Corpus) ForeignLocation(ns string) (string, bool) {
	loc, ok := c.foreign[ns]
	return loc, ok
}

// ForeignImports returns every recorded foreign import in first-seen order.
func (c *Corpus) ForeignImports() []ForeignImport {
	out := make([]ForeignImport, 0, len(c.foreignOrder))
	for _, ns := range c.foreignOrder {
		out = append(out, ForeignImport{Namespace: ns, Location: c.foreign[ns]})
	}
	return out
}

// ReadFile reads a file from the corpus source tree, used for copying
// foreign schemas alongside generated output.
func (c *Corpus) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(c.fsys, path.Clean(filepath.ToSlash(name)))
}

// Diagnostics returns a copy of the diagnostics accumulated by all loads so
// far.
func (c *Corpus) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), c.diags...)
}

// scanPrefixes collects every namespace declaration in the document, in
// first-declaration order with later re-declarations of a prefix
// overwriting its namespace. The parse tree normalizes prefixes away, so
// the raw token stream is scanned instead; reference values like
// "cns:OrderType" must be interpreted against the prefixes the author
// actually wrote.
func scanPrefixes(data []byte) (map[string]string, []string) {
	prefixes := make(map[string]string)
	var order []string
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range start.Attr {
			var prefix string
			switch {
			case a.Name.Space == "xmlns":
				prefix = a.Name.Local
			case a.Name.Space == "" && a.Name.Local == "xmlns":
				prefix = ""
			default:
				continue
			}
			if _, seen := prefixes[prefix]; !seen {
				order = append(order, prefix)
			}
			prefixes[prefix] = a.Value
		}
	}
	return prefixes, order
}

// sameStructure reports whether two declaration subtrees are structurally
// identical: same element names, same attributes, same text content, same
// child order. Prefix spellings inside attribute values count as content.
func sameStructure(a, b *xmltree.Element) bool {
	return structureOf(a) == structureOf(b)
}

func structureOf(el *xmltree.Element) string {
	var b strings.Builder
	foldElement(&b, el)
	return b.String()
}

func foldElement(b *strings.Builder, el *xmltree.Element) {
	b.WriteByte('<')
	b.WriteString(el.Name.Space)
	b.WriteByte(' ')
	b.WriteString(el.Name.Local)
	attrs := make([]string, 0, len(el.StartElement.Attr))
	for _, a := range el.StartElement.Attr {
		attrs = append(attrs, a.Name.Space+" "+a.Name.Local+"="+a.Value)
	}
	sort.Strings(attrs)
	for _, a := range attrs {
		b.WriteByte('\x00')
		b.WriteString(a)
	}
	if len(el.Children) == 0 {
		b.WriteByte('\x01')
		b.Write(bytes.TrimSpace(el.Content))
	}
	for i := range el.Children {
		foldElement(b, &el.Children[i])
	}
	b.WriteByte('>')
}
