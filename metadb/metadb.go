// Package metadb upserts the flat IDPcentral records into MongoDB, one
// collection of protein regions and one of canonical proteins, so that the
// regions can be searched by accession, name or source.
package metadb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph/formats/rdf"

	"idpkg-go/etl"
	"idpkg-go/logger"
	"idpkg-go/vocab"
)

const (
	DefaultDatabase = "metadb"

	regionCollection = "region"
	entityCollection = "prot"

	progressEvery = 1000
)

// Sink writes records to one database.
type Sink struct {
	client   *mongo.Client
	database string
	threads  int
}

// Connect opens a client for uri. threads bounds the concurrent writers.
func Connect(ctx context.Context, uri, database string, threads int) (*Sink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}
	if database == "" {
		database = DefaultDatabase
	}
	if threads < 1 {
		threads = 1
	}
	return &Sink{client: client, database: database, threads: threads}, nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	return errors.Wrap(s.client.Disconnect(ctx), "disconnect from mongodb")
}

// WriteRecords upserts one document per record and one per canonical
// protein. Reruns over the same records overwrite the same documents.
func (s *Sink) WriteRecords(ctx context.Context, records []etl.Record) error {
	regions := make([]bson.M, 0, len(records))
	for _, r := range records {
		regions = append(regions, regionDocument(r))
	}
	if err := s.upsertAll(ctx, regionCollection, regionIndices(), regions); err != nil {
		return err
	}
	return s.upsertAll(ctx, entityCollection, entityIndices(), entityDocuments(records))
}

func regionIndices() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.M{"uri": 1}},
		{Keys: bson.M{"accession": 1}},
		{Keys: bson.M{"lcLabel": 1}},
		{Keys: bson.M{"source": 1}},
		{Keys: bson.M{"context": 1}},
	}
}

func entityIndices() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.M{"uri": 1}},
		{Keys: bson.M{"accession": 1}},
		{Keys: bson.M{"lcSynonyms": 1}},
		{Keys: bson.M{"sources": 1}},
		{Keys: bson.M{"instances": 1}},
	}
}

// upsertAll creates the indices of a collection and then spreads docs over
// the writer threads.
func (s *Sink) upsertAll(ctx context.Context, collection string, indices []mongo.IndexModel, docs []bson.M) error {
	coll := s.client.Database(s.database).Collection(collection)
	if _, err := coll.Indexes().CreateMany(ctx, indices); err != nil {
		return errors.Wrapf(err, "create indices on %s", collection)
	}

	g, gctx := errgroup.WithContext(ctx)
	for index, part := range partition(docs, s.threads) {
		index, part := index, part
		g.Go(func() error {
			return upsert(gctx, coll, index, part)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Upserted documents",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)))
	return nil
}

func upsert(ctx context.Context, coll *mongo.Collection, index int, docs []bson.M) error {
	updateOptions := options.Update().SetUpsert(true)
	timestamp := time.Now()
	for n, doc := range docs {
		_, err := coll.UpdateOne(ctx,
			bson.M{"uri": doc["uri"]},
			bson.M{"$set": doc},
			updateOptions)
		if err != nil {
			return errors.Wrapf(err, "upsert %v into %s", doc["uri"], coll.Name())
		}
		if (n+1)%progressEvery == 0 {
			logger.Debug("Upsert progress",
				zap.String("collection", coll.Name()),
				zap.Int("thread", index),
				zap.Int("documents", n+1),
				zap.Duration("elapsed", time.Since(timestamp)))
			timestamp = time.Now()
		}
	}
	return nil
}

// partition splits docs into at most threads contiguous parts of nearly equal
// size. Empty parts are dropped.
func partition(docs []bson.M, threads int) [][]bson.M {
	if threads < 1 {
		threads = 1
	}
	perThread := len(docs)/threads + 1
	var parts [][]bson.M
	for start := 0; start < len(docs); start += perThread {
		end := start + perThread
		if end > len(docs) {
			end = len(docs)
		}
		parts = append(parts, docs[start:end])
	}
	return parts
}

// plain returns the IRI or the lexical value of a term.
func plain(t rdf.Term) string {
	text, _, _, err := t.Parts()
	if err != nil {
		return t.Value
	}
	return text
}

func regionDocument(r etl.Record) bson.M {
	names := make([]string, 0, len(r.Names))
	for _, n := range r.Names {
		names = append(names, plain(n))
	}
	prefLabel := ""
	if len(names) > 0 {
		prefLabel = names[0]
	}
	return bson.M{
		"uri":           r.ID(),
		"accession":     r.Accession,
		"identifier":    plain(r.Identifier),
		"sameAs":        plain(r.SameAs),
		"prefLabel":     prefLabel,
		"lcLabel":       strings.ToLower(prefLabel),
		"names":         names,
		"rangeStart":    plain(r.RangeStart),
		"rangeEnd":      plain(r.RangeEnd),
		"source":        r.Source,
		"context":       plain(rdf.Term{Value: r.Context}),
		"retrievedFrom": plain(r.RetrievedFrom),
		"retrievedOn":   plain(r.RetrievedOn),
	}
}

// entityDocuments groups records by accession into one document per
// canonical protein.
func entityDocuments(records []etl.Record) []bson.M {
	type entity struct {
		names     map[string]bool
		sources   map[string]bool
		instances []string
	}
	byAccession := make(map[string]*entity)
	for _, r := range records {
		e, ok := byAccession[r.Accession]
		if !ok {
			e = &entity{names: make(map[string]bool), sources: make(map[string]bool)}
			byAccession[r.Accession] = e
		}
		for _, n := range r.Names {
			e.names[plain(n)] = true
		}
		e.sources[r.Source] = true
		e.instances = append(e.instances, r.ID())
	}

	accessions := make([]string, 0, len(byAccession))
	for acc := range byAccession {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)

	docs := make([]bson.M, 0, len(accessions))
	for _, acc := range accessions {
		e := byAccession[acc]
		synonyms := sortedKeys(e.names)
		lcSynonyms := make([]string, 0, len(synonyms))
		for _, s := range synonyms {
			lcSynonyms = append(lcSynonyms, strings.ToLower(s))
		}
		sort.Strings(e.instances)
		docs = append(docs, bson.M{
			"uri":        vocab.EntityNamespace + acc,
			"accession":  acc,
			"synonyms":   synonyms,
			"lcSynonyms": lcSynonyms,
			"sources":    sortedKeys(e.sources),
			"instances":  e.instances,
		})
	}
	return docs
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
