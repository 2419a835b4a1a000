package etl

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/formats/rdf"

	"idpkg-go/store"
	"idpkg-go/vocab"
)

// ErrNoProvenance is returned for a file that names no crawl context.
var ErrNoProvenance = errors.New("no provenance context")

// Provenance is the crawl context of one source file.
type Provenance struct {
	// Context is the graph the crawl is recorded under.
	Context string
	// Statements are the retrievedFrom/retrievedOn statements about Context,
	// moved into the default graph.
	Statements []*rdf.Statement
	// Ignored lists further contexts the file declared provenance for.
	Ignored []string
}

// ExtractProvenance selects the crawl provenance of a parsed file. Only
// subjects carrying pav:retrievedFrom are crawl contexts. When the file
// describes more than one the lexicographically smallest is used and the rest
// are reported in Ignored.
func ExtractProvenance(data *store.Dataset) (Provenance, error) {
	seen := make(map[string]bool)
	var contexts []string
	for _, s := range data.Match(store.Pattern{Predicate: vocab.RetrievedFromRT}) {
		if !seen[s.Subject.Value] {
			seen[s.Subject.Value] = true
			contexts = append(contexts, s.Subject.Value)
		}
	}
	if len(contexts) == 0 {
		return Provenance{}, ErrNoProvenance
	}
	sort.Strings(contexts)

	prov := Provenance{Context: contexts[0], Ignored: contexts[1:]}
	for _, predicate := range []string{vocab.RetrievedFromRT, vocab.RetrievedOnRT} {
		for _, s := range data.Match(store.Pattern{Subject: prov.Context, Predicate: predicate}) {
			prov.Statements = append(prov.Statements, &rdf.Statement{
				Subject:   s.Subject,
				Predicate: s.Predicate,
				Object:    s.Object,
			})
		}
	}
	sort.Slice(prov.Statements, func(i, j int) bool {
		return prov.Statements[i].String() < prov.Statements[j].String()
	})
	return prov, nil
}
