package etl

import (
	"gonum.org/v1/gonum/graph/formats/rdf"

	"idpkg-go/store"
	"idpkg-go/vocab"
)

// Merge builds the statements of the named graph context for one crawl. The
// proteins of entities are re-keyed onto their canonical IRIs; sequence
// annotations, property values and sequence ranges are copied as they are.
// Only the properties listed in vocab.Properties are carried over, and only
// for subjects that declare the matching type. A file without entities
// contributes nothing.
func Merge(data *store.Dataset, entities []Entity, context string) []*rdf.Statement {
	if len(entities) == 0 {
		return nil
	}
	label := rdf.Term{Value: context}
	graph := store.NewDataset()

	for _, e := range entities {
		graph.AddAll(copyTyped(data, e.Source.Value, e.IRI, vocab.ClassProtein, label))
	}
	for _, class := range []string{vocab.ClassSequenceAnnotation, vocab.ClassPropertyValue, vocab.ClassSequenceRange} {
		for _, subject := range data.SubjectsOfType(vocab.TypeRT, vocab.Schema(class)...) {
			graph.AddAll(copyTyped(data, subject.Value, subject, class, label))
		}
	}
	return graph.Statements()
}

// copyTyped copies the type statements of class and the allowed properties
// of subject, writing them under target in graph label.
func copyTyped(data *store.Dataset, subject string, target rdf.Term, class string, label rdf.Term) []*rdf.Statement {
	classes := vocab.Schema(class)
	var out []*rdf.Statement
	for _, s := range data.Match(store.Pattern{Subject: subject}) {
		typed := s.Predicate.Value == vocab.TypeRT && contains(classes, s.Object.Value)
		if !typed && !vocab.Allowed(class, s.Predicate.Value) {
			continue
		}
		out = append(out, &rdf.Statement{
			Subject:   target,
			Predicate: s.Predicate,
			Object:    s.Object,
			Label:     label,
		})
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
