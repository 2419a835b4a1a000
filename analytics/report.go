package analytics

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
)

// Report is the full battery of questions asked about a dataset.
type Report struct {
	Counts     Counts
	Classes    []Count
	Properties []Count
	Provenance []Crawl
	Duplicates []Duplicate
}

// Run asks every question in turn.
func (a *DB) Run(ctx context.Context) (*Report, error) {
	var r Report
	var err error
	if r.Counts, err = a.Counts(ctx); err != nil {
		return nil, err
	}
	if r.Classes, err = a.InstancesPerClass(ctx); err != nil {
		return nil, err
	}
	if r.Properties, err = a.StatementsPerProperty(ctx); err != nil {
		return nil, err
	}
	if r.Provenance, err = a.Provenance(ctx); err != nil {
		return nil, err
	}
	if r.Duplicates, err = a.Duplicates(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}

// Write prints the report as aligned tables.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	c := r.Counts
	fmt.Fprintln(tw, "COUNT\tVALUE")
	fmt.Fprintf(tw, "statements\t%d\n", c.Statements)
	fmt.Fprintf(tw, "entities\t%d\n", c.Entities)
	fmt.Fprintf(tw, "subjects\t%d\n", c.Subjects)
	fmt.Fprintf(tw, "properties\t%d\n", c.Properties)
	fmt.Fprintf(tw, "objects\t%d\n", c.Objects)
	fmt.Fprintf(tw, "classes\t%d\n", c.Classes)
	fmt.Fprintf(tw, "graphs\t%d\n", c.Graphs)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "CLASS\tINSTANCES")
	for _, row := range r.Classes {
		fmt.Fprintf(tw, "%s\t%d\n", row.Key, row.N)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "PROPERTY\tSTATEMENTS")
	for _, row := range r.Properties {
		fmt.Fprintf(tw, "%s\t%d\n", row.Key, row.N)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "GRAPH\tRETRIEVED FROM\tRETRIEVED ON")
	for _, row := range r.Provenance {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Graph, row.RetrievedFrom, row.RetrievedOn)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "ACCESSION\tGRAPHS")
	for _, row := range r.Duplicates {
		fmt.Fprintf(tw, "%s\t%s\n", row.Accession, strings.Join(row.Graphs, " "))
	}

	return errors.Wrap(tw.Flush(), "write analytics report")
}
