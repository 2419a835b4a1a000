// Package vocab holds the IRIs used by the IDP knowledge graph: the Bioschemas
// (schema.org) terms read from the scraped markup, the PAV provenance terms
// written by the crawler, and the IDPcentral namespace the pipeline mints
// canonical entities into.
//
// Terms are kept in their N-Triples lexical form (angle brackets included) so
// they compare directly against parsed statement terms.
package vocab

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/formats/rdf"
)

// Namespaces.
const (
	RDF         = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	XSD         = "http://www.w3.org/2001/XMLSchema#"
	PAV         = "http://purl.org/pav/"
	SchemaHTTPS = "https://schema.org/"
	SchemaHTTP  = "http://schema.org/"

	// Namespace is the base of everything minted by the pipeline.
	Namespace = "https://idpcentral.org/"

	// EntityNamespace is the base IRI of canonical protein entities.
	EntityNamespace = Namespace + "entity/"

	// ModelNamespace holds the terms of the simplified IDPcentral model.
	ModelNamespace = Namespace + "schema/"
)

// Terms in N-Triples form.
const (
	TypeRT          = "<" + RDF + "type>"
	RetrievedFromRT = "<" + PAV + "retrievedFrom>"
	RetrievedOnRT   = "<" + PAV + "retrievedOn>"

	// ProteinRegionClass types the records of the simplified model.
	ProteinRegionClass = "<" + ModelNamespace + "ProteinRegion>"
	// SourceRT links a simplified record to the name of its source database.
	SourceRT = "<" + ModelNamespace + "source>"
)

// Schema returns both spellings of a schema.org term, https first.
// Scraped markup uses either, depending on the @context of the page.
func Schema(local string) []string {
	return []string{
		"<" + SchemaHTTPS + local + ">",
		"<" + SchemaHTTP + local + ">",
	}
}

// SchemaOut is the schema.org term used for statements the pipeline mints.
func SchemaOut(local string) string {
	return "<" + SchemaHTTPS + local + ">"
}

// SchemaLocal returns the local name of a schema.org term in either namespace.
func SchemaLocal(term string) (string, bool) {
	if !strings.HasPrefix(term, "<") || !strings.HasSuffix(term, ">") {
		return "", false
	}
	iri := term[1 : len(term)-1]
	for _, ns := range []string{SchemaHTTPS, SchemaHTTP} {
		if strings.HasPrefix(iri, ns) {
			return strings.TrimPrefix(iri, ns), true
		}
	}
	return "", false
}

// Bioschemas classes the merger selects on.
const (
	ClassProtein            = "Protein"
	ClassSequenceAnnotation = "SequenceAnnotation"
	ClassPropertyValue      = "PropertyValue"
	ClassSequenceRange      = "SequenceRange"
)

// Properties copied for each class. Every one of them is optional.
var Properties = map[string][]string{
	ClassProtein: {
		"identifier", "name", "alternateName", "description", "url",
		"sameAs", "hasSequenceAnnotation", "taxonomicRange",
		"isEncodedByBioChemEntity", "associatedDisease", "hasRepresentation",
		"additionalProperty", "mainEntityOfPage",
	},
	ClassSequenceAnnotation: {
		"sequenceLocation", "additionalProperty", "creationMethod",
		"description", "name", "url", "subjectOf", "isBasedOn",
	},
	ClassPropertyValue: {
		"name", "value", "valueReference", "propertyID", "identifier",
		"url", "description",
	},
	ClassSequenceRange: {
		"rangeStart", "rangeEnd",
	},
}

// Allowed reports whether predicate is a copied property of class.
func Allowed(class, predicate string) bool {
	local, ok := SchemaLocal(predicate)
	if !ok {
		return false
	}
	for _, p := range Properties[class] {
		if p == local {
			return true
		}
	}
	return false
}

// UniProt IRI conventions accepted for sameAs links.
var uniprotPrefixes = []string{
	"https://www.uniprot.org/uniprot/",
	"http://purl.uniprot.org/uniprot/",
}

var accessionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ErrInvalidAccession is returned for accessions that cannot be placed in an IRI.
var ErrInvalidAccession = errors.New("invalid accession")

func uniprotPath(iri string) (string, bool) {
	for _, prefix := range uniprotPrefixes {
		if !strings.HasPrefix(iri, prefix) {
			continue
		}
		rest := strings.TrimRight(strings.TrimPrefix(iri, prefix), "/")
		if rest == "" {
			return "", false
		}
		return rest, true
	}
	return "", false
}

// UniProtAccession extracts the accession (the trailing path segment) from a
// UniProt IRI. It returns false when the IRI follows neither convention or the
// segment is not a plausible accession.
func UniProtAccession(iri string) (string, bool) {
	rest, ok := uniprotPath(iri)
	if !ok {
		return "", false
	}
	accession := rest[strings.LastIndex(rest, "/")+1:]
	if !accessionPattern.MatchString(accession) {
		return "", false
	}
	return accession, true
}

// EntityIRI mints the canonical entity term for an accession. The same
// accession always yields the same term.
func EntityIRI(accession string) (rdf.Term, error) {
	if !accessionPattern.MatchString(accession) {
		return rdf.Term{}, errors.Wrapf(ErrInvalidAccession, "%q", accession)
	}
	term, err := rdf.NewIRITerm(EntityNamespace + accession)
	if err != nil {
		return rdf.Term{}, errors.Wrapf(err, "entity iri for %q", accession)
	}
	return term, nil
}

// Prefixes are the namespace prefixes used when writing JSON-LD.
func Prefixes() map[string]string {
	return map[string]string{
		"rdf":    RDF,
		"xsd":    XSD,
		"pav":    PAV,
		"schema": SchemaHTTPS,
		"entity": EntityNamespace,
		"idpc":   ModelNamespace,
	}
}
