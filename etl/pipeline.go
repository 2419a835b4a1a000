// Package etl turns crawled Bioschemas quads into the IDP knowledge graph (one
// named graph per crawl, provenance in the default graph) and into the flat
// IDPcentral model.
package etl

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph/formats/rdf"

	"idpkg-go/logger"
	"idpkg-go/source"
	"idpkg-go/store"
)

// Skip reasons reported to an Observer.
const (
	SkipNoProvenance = "no_provenance"
	SkipNoEntity     = "no_entity"
)

// Observer is told about every processed file.
type Observer interface {
	FileProcessed(source string, merged, records int)
	FileSkipped(source, reason string)
}

// FileResult is the output of the transforms for one file.
type FileResult struct {
	Path       string
	Source     string
	Context    string
	Provenance []*rdf.Statement
	Entities   []Entity
	Merged     []*rdf.Statement
	Records    []Record
	Flat       []*rdf.Statement
	skip       string
}

// Process runs provenance extraction, normalisation, merging and projection
// over one parsed file.
func Process(file *source.File) (*FileResult, error) {
	fr := &FileResult{Path: file.Path, Source: file.Source}

	prov, err := ExtractProvenance(file.Data)
	switch {
	case errors.Is(err, ErrNoProvenance):
		fr.skip = SkipNoProvenance
	case err != nil:
		return nil, errors.Wrapf(err, "provenance of %s", file.Path)
	default:
		if len(prov.Ignored) > 0 {
			logger.Warn("File declares several crawl contexts, using the first",
				zap.String("path", file.Path),
				zap.String("context", prov.Context),
				zap.Strings("ignored", prov.Ignored))
		}
		fr.Context = prov.Context
		fr.Provenance = prov.Statements

		entities, err := Normalize(file.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "normalise %s", file.Path)
		}
		fr.Entities = entities
		fr.Merged = Merge(file.Data, entities, prov.Context)
		if len(fr.Merged) == 0 {
			fr.skip = SkipNoEntity
		}
	}

	fr.Records = Project(file.Data, file.Source)
	for _, r := range fr.Records {
		statements, err := r.Statements()
		if err != nil {
			return nil, errors.Wrapf(err, "project %s", file.Path)
		}
		fr.Flat = append(fr.Flat, statements...)
	}
	return fr, nil
}

// FileSummary describes what one file contributed to a run.
type FileSummary struct {
	Path    string
	Source  string
	Context string
	Merged  int
	Records int
}

// Result holds the accumulated outputs of one run. It is owned by the run
// that created it.
type Result struct {
	// Dataset is the merged knowledge graph.
	Dataset *store.Dataset
	// Flat is the simplified IDPcentral graph.
	Flat    *store.Dataset
	Records []Record
	Files   []FileSummary
	// Contributing counts the files that added statements to Dataset.
	Contributing int
}

// NewResult returns empty accumulators.
func NewResult() *Result {
	return &Result{Dataset: store.NewDataset(), Flat: store.NewDataset()}
}

// Add accumulates one file. Provenance is only recorded for files that
// contribute merged statements, so no context is ever created empty.
func (r *Result) Add(fr *FileResult) {
	summary := FileSummary{Path: fr.Path, Source: fr.Source, Records: len(fr.Records)}
	if len(fr.Merged) > 0 {
		r.Dataset.AddAll(fr.Provenance)
		r.Dataset.AddAll(fr.Merged)
		r.Contributing++
		summary.Context = fr.Context
		summary.Merged = len(fr.Merged)
	}
	r.Flat.AddAll(fr.Flat)
	r.Records = append(r.Records, fr.Records...)
	r.Files = append(r.Files, summary)
}

// Pipeline reads every source in turn and accumulates a Result.
type Pipeline struct {
	readers  []*source.Reader
	workers  int
	observer Observer
}

type Option func(*Pipeline)

// WithWorkers bounds how many files are transformed concurrently. Files are
// always parsed, and their results accumulated, one at a time and in order.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

func NewPipeline(readers []*source.Reader, opts ...Option) *Pipeline {
	p := &Pipeline{readers: readers, workers: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes every file of every source. The first parse or transform
// error aborts the whole run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var slots []**FileResult
	read := func() error {
		for _, reader := range p.readers {
			logger.Info("Reading source", zap.String("source", reader.Name), zap.String("dir", reader.Dir))
			files := reader.Files()
			for files.Next() {
				if err := gctx.Err(); err != nil {
					return err
				}
				file := files.File()
				slot := new(*FileResult)
				slots = append(slots, slot)
				g.Go(func() error {
					fr, err := Process(file)
					if err != nil {
						return err
					}
					*slot = fr
					return nil
				})
			}
			if err := files.Err(); err != nil {
				return err
			}
		}
		return nil
	}

	readErr := read()
	waitErr := g.Wait()
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		return nil, readErr
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if readErr != nil {
		return nil, readErr
	}

	result := NewResult()
	for _, slot := range slots {
		fr := *slot
		result.Add(fr)
		p.observe(fr)
		logger.Info("Processed file",
			zap.String("source", fr.Source),
			zap.String("path", fr.Path),
			zap.String("context", fr.Context),
			zap.Int("entities", len(fr.Entities)),
			zap.Int("merged", len(fr.Merged)),
			zap.Int("records", len(fr.Records)))
	}
	return result, nil
}

func (p *Pipeline) observe(fr *FileResult) {
	if p.observer == nil {
		return
	}
	if fr.skip != "" {
		p.observer.FileSkipped(fr.Source, fr.skip)
	}
	p.observer.FileProcessed(fr.Source, len(fr.Merged), len(fr.Records))
}
