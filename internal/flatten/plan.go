package flatten

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"aqwari.net/xml/xmltree"

	"github.com/ndckit/xsdflat/internal/schema"
)

const (
	// XSDPrefix is the fixed conventional prefix every generated document
	// binds to the schema definition language namespace.
	XSDPrefix = "xs"
	// MainBackRefPrefix qualifies references from a common document back
	// into the main namespace, which is never that document's default.
	MainBackRefPrefix = "msg"
)

// Plan fixes every output decision for one flatten before any rewriting
// begins: which declarations land in which document, the file name and
// import list of each document, and a single injective prefix assignment
// shared by all of them.
type Plan struct {
	EntryPath string
	BaseName  string // entry file name without directory or extension
	MainNS    string
	Version   string // entry document's version attribute, "1.0" when absent

	Main    *DocPlan
	Commons []*DocPlan // sorted by namespace

	CommonPrefixes  map[string]string // common namespace -> assigned prefix
	ForeignPrefixes map[string]string // used foreign namespace -> assigned prefix
	ForeignFiles    map[string]string // used foreign namespace -> copied file name
	UsedForeign     []string          // sorted foreign namespaces referenced by reachable declarations
}

// DocPlan describes one generated output document.
type DocPlan struct {
	Namespace string
	FileName  string
	Symbols   []schema.Symbol // sorted by local name

	// Uses holds every namespace this document's rewritten content spells
	// with a prefix, so the emitter declares exactly those bindings.
	Uses map[string]bool

	Foreign  []string // sorted foreign namespaces referenced by this document
	Commons  []string // sorted common namespaces to import; the main document imports all of them
	RefsMain bool     // a common document that references the main namespace
}

// PlanOutputs groups the reachable set by namespace, names the output
// documents, records each document's cross-namespace references, and
// assigns prefixes. The result is fully determined before rewriting starts.
func PlanOutputs(corpus *schema.Corpus, entry *schema.Document, reach map[schema.Symbol]bool) *Plan {
	ext := path.Ext(entry.Path)
	base := strings.TrimSuffix(path.Base(entry.Path), ext)
	version := entry.Version
	if version == "" {
		version = "1.0"
	}
	p := &Plan{
		EntryPath: entry.Path,
		BaseName:  base,
		MainNS:    entry.TargetNS,
		Version:   version,
	}

	buckets := make(map[string][]schema.Symbol)
	for sym := range reach {
		buckets[sym.Namespace] = append(buckets[sym.Namespace], sym)
	}
	for _, syms := range buckets {
		sort.Slice(syms, func(i, j int) bool { return syms[i].Local < syms[j].Local })
	}

	p.Main = &DocPlan{
		Namespace: p.MainNS,
		FileName:  base + ext,
		Symbols:   buckets[p.MainNS],
		Uses:      make(map[string]bool),
	}

	commonNS := make([]string, 0, len(buckets))
	for ns := range buckets {
		if ns != p.MainNS {
			commonNS = append(commonNS, ns)
		}
	}
	sort.Strings(commonNS)
	isCommon := make(map[string]bool, len(commonNS))
	for _, ns := range commonNS {
		isCommon[ns] = true
	}

	// File names derive from the entry base name plus a namespace-dependent
	// suffix. Distinct namespaces mapping to the same suffix are numbered in
	// namespace order so re-runs name them identically.
	suffixCount := make(map[string]int, 2)
	for _, ns := range commonNS {
		suffix := "_CommonTypes"
		if strings.Contains(ns, "FullyOptional") {
			suffix = "_OptionalCommonTypes"
		}
		suffixCount[suffix]++
		name := base + suffix
		if n := suffixCount[suffix]; n > 1 {
			name += strconv.Itoa(n)
		}
		p.Commons = append(p.Commons, &DocPlan{
			Namespace: ns,
			FileName:  name + ext,
			Symbols:   buckets[ns],
			Uses:      make(map[string]bool),
		})
	}

	usedForeign := make(map[string]bool)
	scan := func(d *DocPlan, inCommon bool) {
		foreignSet := make(map[string]bool)
		commonSet := make(map[string]bool)
		for _, sym := range d.Symbols {
			decl, ok := corpus.Lookup(sym)
			if !ok {
				continue
			}
			schema.WalkRefs(decl.Node, func(_ *xmltree.Element, _, value string) {
				ref := decl.Origin.Resolve(value)
				if ref.Kind != schema.RefResolved {
					return
				}
				ns := ref.Symbol.Namespace
				switch {
				case ns == schema.XSDNamespace:
				case ns == p.MainNS:
					if inCommon {
						d.RefsMain = true
						d.Uses[ns] = true
					}
				case isCommon[ns]:
					d.Uses[ns] = true
					if ns != d.Namespace {
						commonSet[ns] = true
					}
				default:
					// A foreign namespace counts as used only when some
					// document actually imported it; anything else falls
					// back to a bare local name during rewriting.
					if _, ok := corpus.ForeignLocation(ns); ok {
						d.Uses[ns] = true
						foreignSet[ns] = true
						usedForeign[ns] = true
					}
				}
			})
		}
		d.Foreign = sortedKeys(foreignSet)
		if inCommon {
			d.Commons = sortedKeys(commonSet)
		}
	}
	for _, d := range p.Commons {
		scan(d, true)
	}
	scan(p.Main, false)
	p.Main.Commons = commonNS

	p.UsedForeign = sortedKeys(usedForeign)
	p.ForeignFiles = make(map[string]string, len(p.UsedForeign))
	for _, ns := range p.UsedForeign {
		if loc, ok := corpus.ForeignLocation(ns); ok {
			p.ForeignFiles[ns] = path.Base(loc)
		}
	}
	p.CommonPrefixes, p.ForeignPrefixes = assignPrefixes(corpus, commonNS, p.UsedForeign)
	return p
}

// assignPrefixes gives every common and used-foreign namespace exactly one
// prefix. A prefix some loaded document already binds to the namespace is
// preferred; when none exists or it is already taken, a counter prefix is
// synthesized. The empty prefix, the XSD prefix, and the main back-reference
// prefix are never assigned.
func assignPrefixes(corpus *schema.Corpus, commons, usedForeign []string) (map[string]string, map[string]string) {
	taken := map[string]bool{"": true, XSDPrefix: true, MainBackRefPrefix: true}
	next := 1
	assign := func(ns string) string {
		prefix := preferredPrefix(corpus, ns)
		if prefix == "" || taken[prefix] {
			for {
				prefix = fmt.Sprintf("ns%d", next)
				next++
				if !taken[prefix] {
					break
				}
			}
		}
		taken[prefix] = true
		return prefix
	}
	commonP := make(map[string]string, len(commons))
	for _, ns := range commons {
		commonP[ns] = assign(ns)
	}
	foreignP := make(map[string]string, len(usedForeign))
	for _, ns := range usedForeign {
		foreignP[ns] = assign(ns)
	}
	return commonP, foreignP
}

// preferredPrefix returns the first non-empty prefix any loaded document
// binds to ns, scanning documents in load order and each document's
// declarations in document order.
func preferredPrefix(corpus *schema.Corpus, ns string) string {
	for _, doc := range corpus.LoadedDocuments() {
		for _, prefix := range doc.PrefixOrder {
			if prefix != "" && doc.Prefixes[prefix] == ns {
				return prefix
			}
		}
	}
	return ""
}

// commonFile returns the output file name planned for a common namespace.
func (p *Plan) commonFile(ns string) string {
	for _, d := range p.Commons {
		if d.Namespace == ns {
			return d.FileName
		}
	}
	return ""
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
