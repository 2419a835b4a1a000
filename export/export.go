package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"idpkg-go/logger"
	"idpkg-go/store"
	"idpkg-go/vocab"
)

var (
	// ErrNamedGraphs is returned when a dataset with named graphs is written
	// to a triples-only format.
	ErrNamedGraphs = errors.New("format cannot carry named graphs")

	// ErrRoundTrip is returned when a written file does not read back to the
	// dataset it was written from.
	ErrRoundTrip = errors.New("output does not match dataset")
)

const nquadsMIME = "application/n-quads"

// WriteFile writes d to path in the format implied by the path's extension,
// creating parent directories as needed. It returns the number of statements
// written.
func WriteFile(path string, d *store.Dataset) (int, error) {
	info, err := FormatFor(path)
	if err != nil {
		return 0, err
	}
	if !info.Quads && len(d.Contexts()) > 0 {
		return 0, errors.Wrapf(ErrNamedGraphs, "%s (%s)", path, info.Name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrapf(err, "create directory for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", path)
	}
	w := bufio.NewWriter(f)

	var n int
	switch info.Name {
	case FormatNQuads:
		n, err = d.Encode(w)
	case FormatTurtle:
		n, err = encodeTurtle(w, d)
	case FormatJSONLD:
		n, err = encodeJSONLD(w, d)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Wrapf(err, "write %s", path)
	}

	logger.Info("Wrote dataset",
		zap.String("path", path),
		zap.String("format", string(info.Name)),
		zap.Int("statements", n))
	return n, nil
}

// encodeTurtle transcodes the N-Triples form of d into Turtle.
func encodeTurtle(w io.Writer, d *store.Dataset) (int, error) {
	var nt bytes.Buffer
	if _, err := d.Encode(&nt); err != nil {
		return 0, err
	}

	dec := rdf.NewTripleDecoder(&nt, rdf.NTriples)
	enc := rdf.NewTripleEncoder(w, rdf.Turtle)
	enc.Namespaces = turtleNamespaces()
	n := 0
	for {
		tr, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrapf(err, "decode statement %d", n+1)
		}
		if err := enc.Encode(tr); err != nil {
			return n, errors.Wrap(err, "encode turtle")
		}
		n++
	}
	if err := enc.Close(); err != nil {
		return n, errors.Wrap(err, "close turtle encoder")
	}
	return n, nil
}

// turtleNamespaces maps namespace IRIs onto their prefixes.
func turtleNamespaces() map[string]string {
	ns := make(map[string]string)
	for prefix, iri := range vocab.Prefixes() {
		ns[iri] = prefix
	}
	return ns
}

// jsonldContext is the context the JSON-LD output is compacted against.
func jsonldContext() map[string]interface{} {
	ctx := make(map[string]interface{})
	for prefix, iri := range vocab.Prefixes() {
		ctx[prefix] = iri
	}
	return map[string]interface{}{"@context": ctx}
}

// encodeJSONLD converts d from N-Quads to compacted JSON-LD.
func encodeJSONLD(w io.Writer, d *store.Dataset) (int, error) {
	var nq bytes.Buffer
	n, err := d.Encode(&nq)
	if err != nil {
		return 0, err
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.Format = nquadsMIME
	doc, err := proc.FromRDF(nq.String(), opts)
	if err != nil {
		return 0, errors.Wrap(err, "json-ld from rdf")
	}
	compacted, err := proc.Compact(doc, jsonldContext(), ld.NewJsonLdOptions(""))
	if err != nil {
		return 0, errors.Wrap(err, "compact json-ld")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(compacted); err != nil {
		return 0, errors.Wrap(err, "encode json-ld")
	}
	return n, nil
}

// Verify reads path back with an independent parser and checks that it holds
// as many statements and named graphs as d, including every graph of d.
func Verify(path string, d *store.Dataset) error {
	info, err := FormatFor(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var statements int
	var contexts map[string]bool
	switch info.Name {
	case FormatNQuads:
		statements, contexts, err = countQuads(f)
	case FormatTurtle:
		statements, err = countTriples(f, rdf.Turtle)
	case FormatJSONLD:
		statements, contexts, err = countJSONLD(f)
	}
	if err != nil {
		return errors.Wrapf(err, "read back %s", path)
	}

	if statements != d.Len() {
		return errors.Wrapf(ErrRoundTrip, "%s: %d statements, expected %d", path, statements, d.Len())
	}
	expected := d.Contexts()
	for _, c := range expected {
		if !contexts[c] {
			return errors.Wrapf(ErrRoundTrip, "%s: graph %s is missing", path, c)
		}
	}
	if len(contexts) != len(expected) {
		return errors.Wrapf(ErrRoundTrip, "%s: %d graphs, expected %d", path, len(contexts), len(expected))
	}
	return nil
}

// countQuads counts the quads in r and collects their named graphs.
func countQuads(r io.Reader) (int, map[string]bool, error) {
	dec := rdf.NewQuadDecoder(r, rdf.NQuads)
	// Default graph quads then carry a nil context instead of a blank node.
	dec.DefaultGraph = nil
	contexts := make(map[string]bool)
	n := 0
	for {
		q, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, nil, errors.Wrapf(err, "after quad %d", n)
		}
		n++
		if q.Ctx != nil {
			contexts[q.Ctx.Serialize(rdf.NTriples)] = true
		}
	}
	return n, contexts, nil
}

func countTriples(r io.Reader, format rdf.Format) (int, error) {
	dec := rdf.NewTripleDecoder(r, format)
	n := 0
	for {
		_, err := dec.Decode()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrapf(err, "after triple %d", n)
		}
		n++
	}
}

// countJSONLD expands the document back into N-Quads and counts those.
func countJSONLD(r io.Reader) (int, map[string]bool, error) {
	var doc interface{}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, nil, errors.Wrap(err, "decode json-ld")
	}
	opts := ld.NewJsonLdOptions("")
	opts.Format = nquadsMIME
	out, err := ld.NewJsonLdProcessor().ToRDF(doc, opts)
	if err != nil {
		return 0, nil, errors.Wrap(err, "json-ld to rdf")
	}
	nq, ok := out.(string)
	if !ok {
		return 0, nil, errors.Errorf("json-ld to rdf returned %T", out)
	}
	return countQuads(strings.NewReader(nq))
}
