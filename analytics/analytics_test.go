package analytics

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idpkg-go/etl"
	"idpkg-go/export"
	"idpkg-go/source"
	"idpkg-go/vocab"
)

func crawlContext(src, id, day string) string {
	return "<https://bioschemas.org/crawl/v1/" + src + "/" + id + "/202110" + day + ">"
}

// openCorpus runs the pipeline over the fixture corpus, writes the merged
// dataset and opens it the way the analyze command does.
func openCorpus(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	readers := []*source.Reader{
		source.NewReader("DisProt", "../testdata/disprot", ".nq"),
		source.NewReader("MobiDB", "../testdata/mobidb", ".nq"),
		source.NewReader("PED", "../testdata/ped", ".nq"),
	}
	result, err := etl.NewPipeline(readers).Run(ctx)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "idpkg.nq")
	_, err = export.WriteFile(path, result.Dataset)
	require.NoError(t, err)

	db, err := OpenFile(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCounts(t *testing.T) {
	db := openCorpus(t)

	c, err := db.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, c.Statements)
	assert.Equal(t, 5, c.Entities)
	assert.Equal(t, 6, c.Graphs)
	assert.Equal(t, 7, c.Classes, "both schema.org namespaces are counted separately")
	assert.Greater(t, c.Subjects, c.Entities)
	assert.Greater(t, c.Objects, 0)
	assert.Greater(t, c.Properties, 0)
}

func TestInstancesPerClass(t *testing.T) {
	db := openCorpus(t)

	rows, err := db.InstancesPerClass(context.Background())
	require.NoError(t, err)

	byClass := make(map[string]int)
	for _, r := range rows {
		byClass[r.Key] = r.N
	}
	assert.Equal(t, 4, byClass[vocab.Schema(vocab.ClassProtein)[0]])
	assert.Equal(t, 2, byClass[vocab.Schema(vocab.ClassProtein)[1]])
	assert.Equal(t, 5, byClass[vocab.Schema(vocab.ClassSequenceAnnotation)[0]])
	assert.Equal(t, 2, byClass[vocab.Schema(vocab.ClassPropertyValue)[0]])

	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].N, rows[i].N)
	}
}

func TestStatementsPerProperty(t *testing.T) {
	db := openCorpus(t)

	rows, err := db.StatementsPerProperty(context.Background())
	require.NoError(t, err)

	byProperty := make(map[string]int)
	for _, r := range rows {
		byProperty[r.Key] = r.N
	}
	assert.Equal(t, 6, byProperty[vocab.RetrievedFromRT])
	assert.Equal(t, 6, byProperty[vocab.RetrievedOnRT])
	assert.Zero(t, byProperty[vocab.SchemaOut("citation")])
}

func TestProvenance(t *testing.T) {
	db := openCorpus(t)

	crawls, err := db.Provenance(context.Background())
	require.NoError(t, err)
	require.Len(t, crawls, 6)
	assert.Equal(t, crawlContext("disprot", "DP00003", "11"), crawls[0].Graph)
	assert.Equal(t, "<https://disprot.org/DP00003>", crawls[0].RetrievedFrom)
	assert.Contains(t, crawls[0].RetrievedOn, "2021-10-11T10:00:00")
}

func TestDuplicates(t *testing.T) {
	db := openCorpus(t)

	dups, err := db.Duplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "P03265", dups[0].Accession)
	assert.Equal(t, []string{
		crawlContext("disprot", "DP00003", "11"),
		crawlContext("mobidb", "P03265", "12"),
	}, dups[0].Graphs)
}

func TestReport(t *testing.T) {
	db := openCorpus(t)

	report, err := db.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	assert.Contains(t, buf.String(), "ACCESSION")
	assert.Regexp(t, `P03265\s+<https://bioschemas.org/crawl/v1/disprot/DP00003/20211011> <https://bioschemas.org/crawl/v1/mobidb/P03265/20211012>`, buf.String())
	assert.Regexp(t, `statements\s+80\n`, buf.String())
}

func TestEmptyDataset(t *testing.T) {
	db, err := Open(context.Background())
	require.NoError(t, err)
	defer db.Close()

	report, err := db.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, report.Counts)
	assert.Empty(t, report.Duplicates)
}
