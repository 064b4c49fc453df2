package flatten

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"aqwari.net/xml/xmltree"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/ndckit/xsdflat/internal/schema"
)

// Result is the rendered output set of one flatten: the generated schema
// documents, the foreign schemas to copy alongside them, and the
// diagnostics raised while computing both. Nothing is written to disk; the
// caller owns placement.
type Result struct {
	Entry       string // corpus-relative path of the entry document
	Files       []File // common documents in namespace order, then the main document
	Foreign     []ForeignFile
	Diagnostics []schema.Diagnostic
}

// File is one generated schema document.
type File struct {
	Name string
	Data []byte
}

// ForeignFile is a foreign schema to copy verbatim next to the generated
// documents. Callers must not overwrite an existing copy.
type ForeignFile struct {
	Namespace string
	Location  string // corpus-relative source path
	Name      string // output file name
	Data      []byte
}

// Run flattens the entry document named by entryName, a path relative to
// the corpus root. The corpus keeps every document the run loads, so
// flattening several entries against one corpus parses each shared
// document once.
func Run(ctx context.Context, corpus *schema.Corpus, entryName string) (*Result, error) {
	logger := slogcontext.FromCtx(ctx)

	entry, err := corpus.Load(ctx, entryName)
	if err != nil {
		return nil, fmt.Errorf("loading entry document: %w", err)
	}

	reach, diags := Reachable(ctx, corpus, entry)
	plan := PlanOutputs(corpus, entry, reach)
	res := &Result{Entry: entry.Path, Diagnostics: diags}

	docs := make([]*DocPlan, 0, len(plan.Commons)+1)
	docs = append(docs, plan.Commons...)
	docs = append(docs, plan.Main)
	for _, d := range docs {
		inCommon := d != plan.Main
		decls := make([]*xmltree.Element, 0, len(d.Symbols))
		for _, sym := range d.Symbols {
			decl, ok := corpus.Lookup(sym)
			if !ok {
				continue
			}
			decls = append(decls, Rewrite(decl, plan, inCommon))
		}
		res.Files = append(res.Files, File{Name: d.FileName, Data: renderDocument(plan, d, decls)})
		logger.Info("generated schema document",
			slog.String("file", d.FileName),
			slog.String("namespace", d.Namespace),
			slog.Int("declarations", len(decls)))
	}

	for _, ns := range plan.UsedForeign {
		loc, ok := corpus.ForeignLocation(ns)
		if !ok {
			continue
		}
		data, err := corpus.ReadFile(loc)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, schema.Diagnostic{
				Severity: "warning",
				Code:     schema.CodeForeignUnreadable,
				Message:  fmt.Sprintf("cannot read foreign schema for %s: %v", ns, err),
				Path:     loc,
			})
			continue
		}
		res.Foreign = append(res.Foreign, ForeignFile{
			Namespace: ns,
			Location:  loc,
			Name:      path.Base(loc),
			Data:      data,
		})
	}
	return res, nil
}
