// Package flatten turns one entry schema document plus its loaded corpus
// into a minimal, self-contained output document set: the reachable
// declarations re-partitioned by namespace, re-prefixed consistently, and
// rendered deterministically.
package flatten

import (
	"context"
	"fmt"
	"log/slog"

	"aqwari.net/xml/xmltree"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/ndckit/xsdflat/internal/schema"
)

// Reachable computes the closure of declarations referenced, directly or
// transitively, from the declarations native to the entry document. Every
// entry declaration is a seed; a message document may declare several
// mutually-referenced top-level symbols. References into the schema
// definition language namespace are not traversed. A reference whose prefix
// has no binding is reported once per document and value; a resolved
// reference naming no known declaration in a project-owned namespace is
// reported once per symbol. Neither is followed.
func Reachable(ctx context.Context, corpus *schema.Corpus, entry *schema.Document) (map[schema.Symbol]bool, []schema.Diagnostic) {
	reach := make(map[schema.Symbol]bool, len(entry.DeclOrder))
	var diags []schema.Diagnostic
	seenUnresolved := make(map[string]bool)
	seenDangling := make(map[schema.Symbol]bool)

	// Seeds scan the winning declaration from the symbol table, not the
	// entry's own node, so the subtree walked here is the one that will be
	// emitted.
	queue := make([]*schema.Decl, 0, len(entry.DeclOrder))
	for _, sym := range entry.DeclOrder {
		reach[sym] = true
		if decl, ok := corpus.Lookup(sym); ok {
			queue = append(queue, decl)
		}
	}

	for len(queue) > 0 {
		decl := queue[0]
		queue = queue[1:]
		origin := decl.Origin
		schema.WalkRefs(decl.Node, func(_ *xmltree.Element, _, value string) {
			ref := origin.Resolve(value)
			switch ref.Kind {
			case schema.RefNone:
				return
			case schema.RefUnresolvedPrefix:
				key := origin.Path + "\x00" + value
				if !seenUnresolved[key] {
					seenUnresolved[key] = true
					diags = append(diags, schema.Diagnostic{
						Severity: "warning",
						Code:     schema.CodeUnresolvedReference,
						Message:  fmt.Sprintf("reference %q uses prefix %q with no namespace binding", value, ref.Prefix),
						Path:     origin.Path,
					})
				}
				return
			}
			if ref.Symbol.Namespace == schema.XSDNamespace || reach[ref.Symbol] {
				return
			}
			target, ok := corpus.Lookup(ref.Symbol)
			if !ok {
				// Absent foreign declarations are expected: they live in
				// schemas the corpus never loads. Only a miss inside the
				// project's own namespaces signals an inconsistency.
				if corpus.InFamily(ref.Symbol.Namespace) && !seenDangling[ref.Symbol] {
					seenDangling[ref.Symbol] = true
					diags = append(diags, schema.Diagnostic{
						Severity: "warning",
						Code:     schema.CodeDanglingReference,
						Message:  fmt.Sprintf("reference %q resolves to %s, which no loaded document declares", value, ref.Symbol),
						Path:     origin.Path,
					})
				}
				return
			}
			reach[ref.Symbol] = true
			queue = append(queue, target)
		})
	}

	slogcontext.FromCtx(ctx).Debug("computed reachable set",
		slog.String("entry", entry.Path),
		slog.Int("declarations", len(reach)))
	return reach, diags
}
