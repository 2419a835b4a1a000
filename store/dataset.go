// Package store is the in-memory quad dataset the pipeline reads from and
// accumulates into. Parsing and term handling come from gonum's
// graph/formats/rdf; the dataset itself is a set of statements with a subject
// index, enough to answer the pattern lookups the transforms need.
package store

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/formats/rdf"
)

// ErrParse is returned when an input stream is not valid N-Quads.
var ErrParse = errors.New("malformed n-quads")

// Pattern selects statements. An empty position matches any term. Graph
// matches the statement label; the default graph has the empty label and so
// can only be selected through a wildcard.
type Pattern struct {
	Subject   string
	Predicate string
	Object    string
	Graph     string
}

func (p Pattern) matches(s *rdf.Statement) bool {
	return (p.Subject == "" || p.Subject == s.Subject.Value) &&
		(p.Predicate == "" || p.Predicate == s.Predicate.Value) &&
		(p.Object == "" || p.Object == s.Object.Value) &&
		(p.Graph == "" || p.Graph == s.Label.Value)
}

// Dataset is a set of quads. Adding a statement that is already present is a
// no-op. A Dataset is not safe for concurrent mutation.
type Dataset struct {
	statements map[string]*rdf.Statement
	bySubject  map[string][]*rdf.Statement
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		statements: make(map[string]*rdf.Statement),
		bySubject:  make(map[string][]*rdf.Statement),
	}
}

// maxLine bounds a single N-Quads line; crawled descriptions can be long.
const maxLine = 16 << 20

// Load parses N-Quads from r. Blank node labels are rewritten into scope so
// that datasets loaded from different inputs never share a blank node; an
// empty scope keeps the labels as read. Parse errors name the input line.
func Load(r io.Reader, scope string) (*Dataset, error) {
	d := NewDataset()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		s, err := rdf.ParseNQuad(text)
		if err != nil {
			return nil, errors.Wrapf(ErrParse, "line %d: %v", line, err)
		}
		if s == nil {
			continue
		}
		if scope != "" {
			s.Subject = scoped(s.Subject, scope)
			s.Object = scoped(s.Object, scope)
			s.Label = scoped(s.Label, scope)
		}
		d.Add(s)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(ErrParse, "line %d: %v", line+1, err)
	}
	return d, nil
}

func scoped(t rdf.Term, scope string) rdf.Term {
	if !strings.HasPrefix(t.Value, "_:") {
		return t
	}
	return rdf.Term{Value: "_:" + scope + "_" + strings.TrimPrefix(t.Value, "_:")}
}

func key(s *rdf.Statement) string {
	return s.Subject.Value + " " + s.Predicate.Value + " " + s.Object.Value + " " + s.Label.Value
}

// Add inserts s and reports whether it was new. Term UIDs are ignored.
func (d *Dataset) Add(s *rdf.Statement) bool {
	k := key(s)
	if _, ok := d.statements[k]; ok {
		return false
	}
	stored := &rdf.Statement{
		Subject:   rdf.Term{Value: s.Subject.Value},
		Predicate: rdf.Term{Value: s.Predicate.Value},
		Object:    rdf.Term{Value: s.Object.Value},
		Label:     rdf.Term{Value: s.Label.Value},
	}
	d.statements[k] = stored
	d.bySubject[stored.Subject.Value] = append(d.bySubject[stored.Subject.Value], stored)
	return true
}

// AddAll inserts every statement and returns how many were new.
func (d *Dataset) AddAll(statements []*rdf.Statement) int {
	added := 0
	for _, s := range statements {
		if d.Add(s) {
			added++
		}
	}
	return added
}

// Len is the number of statements in the dataset.
func (d *Dataset) Len() int {
	return len(d.statements)
}

// Match returns the statements selected by p, in no particular order.
func (d *Dataset) Match(p Pattern) []*rdf.Statement {
	var candidates []*rdf.Statement
	if p.Subject != "" {
		candidates = d.bySubject[p.Subject]
	} else {
		candidates = make([]*rdf.Statement, 0, len(d.statements))
		for _, s := range d.statements {
			candidates = append(candidates, s)
		}
	}
	var matched []*rdf.Statement
	for _, s := range candidates {
		if p.matches(s) {
			matched = append(matched, s)
		}
	}
	return matched
}

// Objects returns the distinct objects of subject under any of predicates,
// sorted by their lexical form.
func (d *Dataset) Objects(subject string, predicates ...string) []rdf.Term {
	seen := make(map[string]bool)
	var objects []rdf.Term
	for _, s := range d.bySubject[subject] {
		if !contains(predicates, s.Predicate.Value) || seen[s.Object.Value] {
			continue
		}
		seen[s.Object.Value] = true
		objects = append(objects, s.Object)
	}
	sortTerms(objects)
	return objects
}

// SubjectsOfType returns the distinct subjects typed with any of classes,
// sorted by their lexical form.
func (d *Dataset) SubjectsOfType(typePredicate string, classes ...string) []rdf.Term {
	seen := make(map[string]bool)
	var subjects []rdf.Term
	for _, s := range d.statements {
		if s.Predicate.Value != typePredicate || !contains(classes, s.Object.Value) || seen[s.Subject.Value] {
			continue
		}
		seen[s.Subject.Value] = true
		subjects = append(subjects, s.Subject)
	}
	sortTerms(subjects)
	return subjects
}

// Contexts returns the sorted labels of the named graphs in the dataset.
func (d *Dataset) Contexts() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, s := range d.statements {
		if s.Label.Value == "" || seen[s.Label.Value] {
			continue
		}
		seen[s.Label.Value] = true
		labels = append(labels, s.Label.Value)
	}
	sort.Strings(labels)
	return labels
}

// CountByContext returns the number of statements per graph label. The
// default graph is reported under the empty label when it is not empty.
func (d *Dataset) CountByContext() map[string]int {
	counts := make(map[string]int)
	for _, s := range d.statements {
		counts[s.Label.Value]++
	}
	return counts
}

// Statements returns every statement ordered by graph label and then by the
// statement's N-Quads form, so that serialised output is stable.
func (d *Dataset) Statements() []*rdf.Statement {
	all := make([]*rdf.Statement, 0, len(d.statements))
	for _, s := range d.statements {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Label.Value != all[j].Label.Value {
			return all[i].Label.Value < all[j].Label.Value
		}
		return all[i].String() < all[j].String()
	})
	return all
}

// Encode writes the dataset as N-Quads (N-Triples when every statement is in
// the default graph) and returns the number of statements written.
func (d *Dataset) Encode(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for _, s := range d.Statements() {
		if _, err := bw.WriteString(s.String() + "\n"); err != nil {
			return n, errors.Wrap(err, "write statement")
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, "flush statements")
	}
	return n, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func sortTerms(terms []rdf.Term) {
	sort.Slice(terms, func(i, j int) bool { return terms[i].Value < terms[j].Value })
}
