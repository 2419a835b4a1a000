package etl

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/formats/rdf"

	"idpkg-go/store"
	"idpkg-go/vocab"
)

// recordSpace seeds the name-based ids of simplified records.
var recordSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte(vocab.ModelNamespace))

// Record is one row of the simplified IDPcentral model: a protein region
// described by one sequence annotation of one protein.
type Record struct {
	// Node and Location are the synthetic blank nodes of the record and of
	// its embedded sequence range.
	Node     rdf.Term
	Location rdf.Term

	Protein    rdf.Term
	Annotation rdf.Term
	Names      []rdf.Term
	Identifier rdf.Term
	SameAs     rdf.Term
	Accession  string
	RangeStart rdf.Term
	RangeEnd   rdf.Term

	Source        string
	Context       string
	RetrievedFrom rdf.Term
	RetrievedOn   rdf.Term
}

// ID is the stable identifier of the record, shared by its blank nodes.
func (r Record) ID() string {
	return strings.TrimPrefix(r.Node.Value, "_:r")
}

// Project flattens the proteins of data into simplified records. A protein
// contributes one record for every combination of identifier, UniProt sameAs
// link, sequence annotation range and crawl provenance; lacking any of them
// it contributes none. Names are optional.
func Project(data *store.Dataset, sourceName string) []Record {
	var records []Record
	for _, protein := range data.SubjectsOfType(vocab.TypeRT, vocab.Schema(vocab.ClassProtein)...) {
		identifiers := data.Objects(protein.Value, vocab.Schema("identifier")...)
		links := uniprotLinks(data, protein.Value)
		ranges := sequenceRanges(data, protein.Value)
		crawls := crawlsOf(data, protein.Value)
		if len(identifiers) == 0 || len(links) == 0 || len(ranges) == 0 || len(crawls) == 0 {
			continue
		}
		names := data.Objects(protein.Value, vocab.Schema("name")...)

		for _, id := range identifiers {
			for _, link := range links {
				for _, rg := range ranges {
					for _, c := range crawls {
						r := Record{
							Protein:       protein,
							Annotation:    rg.annotation,
							Names:         names,
							Identifier:    id,
							SameAs:        link.term,
							Accession:     link.accession,
							RangeStart:    rg.start,
							RangeEnd:      rg.end,
							Source:        sourceName,
							Context:       c.context,
							RetrievedFrom: c.from,
							RetrievedOn:   c.on,
						}
						r.Node, r.Location = recordNodes(r, rg.location)
						records = append(records, r)
					}
				}
			}
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Node.Value < records[j].Node.Value })
	return records
}

type sequenceRange struct {
	annotation rdf.Term
	location   rdf.Term
	start      rdf.Term
	end        rdf.Term
}

// sequenceRanges resolves protein → annotation → location → (start, end).
func sequenceRanges(data *store.Dataset, protein string) []sequenceRange {
	var out []sequenceRange
	for _, ann := range data.Objects(protein, vocab.Schema("hasSequenceAnnotation")...) {
		for _, loc := range data.Objects(ann.Value, vocab.Schema("sequenceLocation")...) {
			for _, start := range data.Objects(loc.Value, vocab.Schema("rangeStart")...) {
				for _, end := range data.Objects(loc.Value, vocab.Schema("rangeEnd")...) {
					out = append(out, sequenceRange{annotation: ann, location: loc, start: start, end: end})
				}
			}
		}
	}
	return out
}

type crawl struct {
	context string
	from    rdf.Term
	on      rdf.Term
}

// crawlsOf joins the graphs holding the protein's type statement with the
// provenance recorded about those graphs.
func crawlsOf(data *store.Dataset, protein string) []crawl {
	var out []crawl
	seen := make(map[string]bool)
	for _, class := range vocab.Schema(vocab.ClassProtein) {
		for _, s := range data.Match(store.Pattern{Subject: protein, Predicate: vocab.TypeRT, Object: class}) {
			g := s.Label.Value
			if g == "" || seen[g] {
				continue
			}
			seen[g] = true
			for _, from := range data.Objects(g, vocab.RetrievedFromRT) {
				for _, on := range data.Objects(g, vocab.RetrievedOnRT) {
					out = append(out, crawl{context: g, from: from, on: on})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].context < out[j].context })
	return out
}

// recordNodes derives the record and range blank nodes from the join key, so
// that reruns over the same input mint the same nodes.
func recordNodes(r Record, location rdf.Term) (node, loc rdf.Term) {
	key := strings.Join([]string{
		r.Context, r.Protein.Value, r.Annotation.Value, location.Value,
		r.Identifier.Value, r.SameAs.Value, r.RangeStart.Value, r.RangeEnd.Value,
		r.RetrievedFrom.Value, r.RetrievedOn.Value,
	}, "\x00")
	id := strings.ReplaceAll(uuid.NewSHA1(recordSpace, []byte(key)).String(), "-", "")
	return rdf.Term{Value: "_:r" + id}, rdf.Term{Value: "_:l" + id}
}

// Statements renders the record as triples of the flat graph.
func (r Record) Statements() ([]*rdf.Statement, error) {
	source, err := rdf.NewLiteralTerm(r.Source, "")
	if err != nil {
		return nil, errors.Wrapf(err, "source literal %q", r.Source)
	}
	triple := func(s rdf.Term, p string, o rdf.Term) *rdf.Statement {
		return &rdf.Statement{Subject: s, Predicate: rdf.Term{Value: p}, Object: o}
	}

	out := []*rdf.Statement{
		triple(r.Node, vocab.TypeRT, rdf.Term{Value: vocab.ProteinRegionClass}),
		triple(r.Node, vocab.SchemaOut("identifier"), r.Identifier),
		triple(r.Node, vocab.SchemaOut("sameAs"), r.SameAs),
		triple(r.Node, vocab.SchemaOut("sequenceLocation"), r.Location),
		triple(r.Location, vocab.TypeRT, rdf.Term{Value: vocab.SchemaOut(vocab.ClassSequenceRange)}),
		triple(r.Location, vocab.SchemaOut("rangeStart"), r.RangeStart),
		triple(r.Location, vocab.SchemaOut("rangeEnd"), r.RangeEnd),
		triple(r.Node, vocab.SourceRT, source),
		triple(r.Node, vocab.RetrievedOnRT, r.RetrievedOn),
	}
	for _, name := range r.Names {
		out = append(out, triple(r.Node, vocab.SchemaOut("name"), name))
	}
	return out, nil
}
