package metadb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"idpkg-go/etl"
	"idpkg-go/source"
)

func corpusRecords(t *testing.T) []etl.Record {
	t.Helper()
	readers := []*source.Reader{
		source.NewReader("DisProt", "../testdata/disprot", ".nq"),
		source.NewReader("MobiDB", "../testdata/mobidb", ".nq"),
		source.NewReader("PED", "../testdata/ped", ".nq"),
	}
	result, err := etl.NewPipeline(readers).Run(context.Background())
	require.NoError(t, err)
	return result.Records
}

func TestRegionDocument(t *testing.T) {
	var record etl.Record
	for _, r := range corpusRecords(t) {
		if r.Source == "MobiDB" {
			record = r
		}
	}
	require.Equal(t, "P03265", record.Accession)

	doc := regionDocument(record)
	assert.Equal(t, record.ID(), doc["uri"])
	assert.Equal(t, "P03265", doc["identifier"])
	assert.Equal(t, "https://www.uniprot.org/uniprot/P03265", doc["sameAs"])
	assert.Equal(t, "Early E1A protein", doc["prefLabel"])
	assert.Equal(t, "early e1a protein", doc["lcLabel"])
	assert.Equal(t, "1", doc["rangeStart"])
	assert.Equal(t, "289", doc["rangeEnd"])
	assert.Equal(t, "MobiDB", doc["source"])
	assert.Equal(t, "https://bioschemas.org/crawl/v1/mobidb/P03265/20211012", doc["context"])
	assert.Equal(t, "https://mobidb.org/P03265", doc["retrievedFrom"])
	assert.Equal(t, "2021-10-12T09:00:00", doc["retrievedOn"])
}

func TestRegionDocumentWithoutName(t *testing.T) {
	for _, r := range corpusRecords(t) {
		if r.Accession != "P02686" {
			continue
		}
		doc := regionDocument(r)
		assert.Equal(t, "", doc["prefLabel"])
		assert.Empty(t, doc["names"])
		return
	}
	t.Fatal("no record for P02686")
}

func TestEntityDocuments(t *testing.T) {
	docs := entityDocuments(corpusRecords(t))

	var accessions []string
	for _, d := range docs {
		accessions = append(accessions, d["accession"].(string))
	}
	assert.Equal(t, []string{"P02686", "P03265", "P04637", "P37840"}, accessions)

	p03265 := docs[1]
	assert.Equal(t, "https://idpcentral.org/entity/P03265", p03265["uri"])
	assert.Equal(t, []string{"DisProt", "MobiDB"}, p03265["sources"])
	assert.Equal(t, []string{"Early E1A protein"}, p03265["synonyms"])
	assert.Equal(t, []string{"early e1a protein"}, p03265["lcSynonyms"])
	assert.Len(t, p03265["instances"], 2)

	assert.Len(t, docs[2]["instances"], 2, "one region per annotation of P04637")
}

func TestPartition(t *testing.T) {
	docs := make([]bson.M, 10)
	for i := range docs {
		docs[i] = bson.M{"uri": i}
	}

	tests := []struct {
		threads int
		sizes   []int
	}{
		{threads: 1, sizes: []int{10}},
		{threads: 3, sizes: []int{4, 4, 2}},
		{threads: 0, sizes: []int{10}},
		{threads: 20, sizes: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		var sizes []int
		total := 0
		for _, part := range partition(docs, tt.threads) {
			sizes = append(sizes, len(part))
			total += len(part)
		}
		assert.Equal(t, tt.sizes, sizes, "threads=%d", tt.threads)
		assert.Equal(t, len(docs), total)
	}

	assert.Empty(t, partition(nil, 4))
}
