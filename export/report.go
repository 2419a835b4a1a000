package export

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"

	"idpkg-go/etl"
)

// defaultGraph names the unlabelled graph in reports.
const defaultGraph = "(default)"

// WriteReport prints what a run produced: one line per input file, the size
// of both outputs and the statement count of every graph.
func WriteReport(w io.Writer, r *etl.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "SOURCE\tFILE\tCONTEXT\tMERGED\tRECORDS")
	for _, f := range r.Files {
		context := f.Context
		if context == "" {
			context = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", f.Source, f.Path, context, f.Merged, f.Records)
	}
	fmt.Fprintln(tw)

	counts := r.Dataset.CountByContext()
	graphs := make([]string, 0, len(counts))
	for g := range counts {
		graphs = append(graphs, g)
	}
	sort.Strings(graphs)

	fmt.Fprintln(tw, "GRAPH\tSTATEMENTS")
	for _, g := range graphs {
		name := g
		if name == "" {
			name = defaultGraph
		}
		fmt.Fprintf(tw, "%s\t%d\n", name, counts[g])
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "files\t%d\n", len(r.Files))
	fmt.Fprintf(tw, "contexts\t%d\n", len(r.Dataset.Contexts()))
	fmt.Fprintf(tw, "merged statements\t%d\n", r.Dataset.Len())
	fmt.Fprintf(tw, "flat statements\t%d\n", r.Flat.Len())
	fmt.Fprintf(tw, "records\t%d\n", len(r.Records))

	return errors.Wrap(tw.Flush(), "write report")
}
