package etl

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/formats/rdf"

	"idpkg-go/store"
	"idpkg-go/vocab"
)

// Entity is a protein found in a source file together with its canonical
// identity.
type Entity struct {
	// Source is the protein's subject term in the source file.
	Source rdf.Term
	// SameAs is the UniProt link the accession was taken from.
	SameAs    rdf.Term
	Accession string
	// IRI is the canonical entity term.
	IRI rdf.Term
}

type uniprotLink struct {
	term      rdf.Term
	accession string
}

// uniprotLinks returns the sameAs values of subject that follow one of the
// accepted UniProt conventions. Both IRIs and plain literals are considered.
func uniprotLinks(data *store.Dataset, subject string) []uniprotLink {
	var links []uniprotLink
	for _, o := range data.Objects(subject, vocab.Schema("sameAs")...) {
		text, ok := termText(o)
		if !ok {
			continue
		}
		if accession, ok := vocab.UniProtAccession(text); ok {
			links = append(links, uniprotLink{term: o, accession: accession})
		}
	}
	return links
}

// termText returns the IRI or the lexical value of a literal.
func termText(t rdf.Term) (string, bool) {
	text, _, kind, err := t.Parts()
	if err != nil || (kind != rdf.IRI && kind != rdf.Literal) {
		return "", false
	}
	return text, true
}

// Normalize finds every protein in data with at least one UniProt sameAs link
// and resolves its canonical entity. A protein with several matching links
// yields one Entity per link. Proteins without a link are left out.
func Normalize(data *store.Dataset) ([]Entity, error) {
	var entities []Entity
	for _, protein := range data.SubjectsOfType(vocab.TypeRT, vocab.Schema(vocab.ClassProtein)...) {
		for _, link := range uniprotLinks(data, protein.Value) {
			iri, err := vocab.EntityIRI(link.accession)
			if err != nil {
				return nil, errors.Wrapf(err, "normalise %s", protein.Value)
			}
			entities = append(entities, Entity{
				Source:    protein,
				SameAs:    link.term,
				Accession: link.accession,
				IRI:       iri,
			})
		}
	}
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Accession != entities[j].Accession {
			return entities[i].Accession < entities[j].Accession
		}
		return entities[i].Source.Value < entities[j].Source.Value
	})
	return entities, nil
}
