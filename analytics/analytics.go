// Package analytics answers descriptive questions about the merged dataset.
// The quads are loaded into an in-memory SQLite table and every question is a
// parameterised SQL query over it.
package analytics

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"idpkg-go/logger"
	"idpkg-go/store"
	"idpkg-go/vocab"
)

const schema = `
CREATE TABLE quads (
	subject   TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object    TEXT NOT NULL,
	graph     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX quads_subject ON quads (subject);
CREATE INDEX quads_predicate_object ON quads (predicate, object);
CREATE INDEX quads_graph ON quads (graph);
`

// DB is an analytics session over one dataset.
type DB struct {
	db *sql.DB
}

// Open creates an empty in-memory quads table.
func Open(ctx context.Context) (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create quads table")
	}
	return &DB{db: db}, nil
}

// OpenFile loads an N-Quads file into a new session.
func OpenFile(ctx context.Context, path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	d, err := store.Load(f, "")
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	a, err := Open(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := a.Load(ctx, d); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Load inserts every statement of d in one transaction and returns how many
// rows were written.
func (a *DB) Load(ctx context.Context, d *store.Dataset) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin load")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quads (subject, predicate, object, graph) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	n := 0
	for _, s := range d.Statements() {
		if _, err := stmt.ExecContext(ctx, s.Subject.Value, s.Predicate.Value, s.Object.Value, s.Label.Value); err != nil {
			return n, errors.Wrapf(err, "insert %s", s)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit load")
	}
	logger.Debug("Loaded quads", zap.Int("rows", n))
	return n, nil
}

func (a *DB) Close() error {
	return a.db.Close()
}

// Counts are the headline figures of a dataset.
type Counts struct {
	Statements int
	Entities   int
	Subjects   int
	Properties int
	Objects    int
	Classes    int
	Graphs     int
}

type countQuery struct {
	name   string
	query  string
	target *int
	args   []interface{}
}

// Counts answers the headline questions.
func (a *DB) Counts(ctx context.Context) (Counts, error) {
	entityPrefix := "<" + vocab.EntityNamespace
	var c Counts
	queries := []countQuery{
		{"statements", `SELECT COUNT(*) FROM quads`, &c.Statements, nil},
		{"entities", `SELECT COUNT(DISTINCT subject) FROM quads WHERE substr(subject, 1, length(?)) = ?`,
			&c.Entities, []interface{}{entityPrefix, entityPrefix}},
		{"subjects", `SELECT COUNT(DISTINCT subject) FROM quads`, &c.Subjects, nil},
		{"properties", `SELECT COUNT(DISTINCT predicate) FROM quads`, &c.Properties, nil},
		{"objects", `SELECT COUNT(DISTINCT object) FROM quads`, &c.Objects, nil},
		{"classes", `SELECT COUNT(DISTINCT object) FROM quads WHERE predicate = ?`,
			&c.Classes, []interface{}{vocab.TypeRT}},
		{"graphs", `SELECT COUNT(DISTINCT graph) FROM quads WHERE graph <> ''`, &c.Graphs, nil},
	}

	for _, q := range queries {
		if err := a.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.target); err != nil {
			return Counts{}, errors.Wrapf(err, "count %s", q.name)
		}
	}
	return c, nil
}

// Count is one row of a breakdown.
type Count struct {
	Key string
	N   int
}

// InstancesPerClass counts the distinct subjects typed with each class.
func (a *DB) InstancesPerClass(ctx context.Context) ([]Count, error) {
	return a.breakdown(ctx, "instances per class", `
		SELECT object, COUNT(DISTINCT subject) AS n
		FROM quads
		WHERE predicate = ?
		GROUP BY object
		ORDER BY n DESC, object`, vocab.TypeRT)
}

// StatementsPerProperty counts the statements using each predicate.
func (a *DB) StatementsPerProperty(ctx context.Context) ([]Count, error) {
	return a.breakdown(ctx, "statements per property", `
		SELECT predicate, COUNT(*) AS n
		FROM quads
		GROUP BY predicate
		ORDER BY n DESC, predicate`)
}

func (a *DB) breakdown(ctx context.Context, name, query string, args ...interface{}) ([]Count, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.N); err != nil {
			return nil, errors.Wrapf(err, "scan %s", name)
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), name)
}

// Crawl is the provenance recorded for one named graph.
type Crawl struct {
	Graph         string
	RetrievedFrom string
	RetrievedOn   string
}

// Provenance lists every named graph with where and when it was crawled.
func (a *DB) Provenance(ctx context.Context) ([]Crawl, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT f.subject, f.object, o.object
		FROM quads f
		JOIN quads o ON o.subject = f.subject AND o.predicate = ? AND o.graph = ''
		WHERE f.predicate = ? AND f.graph = ''
		ORDER BY f.subject, f.object, o.object`,
		vocab.RetrievedOnRT, vocab.RetrievedFromRT)
	if err != nil {
		return nil, errors.Wrap(err, "provenance")
	}
	defer rows.Close()

	var out []Crawl
	for rows.Next() {
		var c Crawl
		if err := rows.Scan(&c.Graph, &c.RetrievedFrom, &c.RetrievedOn); err != nil {
			return nil, errors.Wrap(err, "scan provenance")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "provenance")
}

// Duplicate is a canonical protein described by more than one crawl.
type Duplicate struct {
	Entity    string
	Accession string
	Graphs    []string
}

// Duplicates finds canonical proteins typed in more than one named graph,
// which is how the same UniProt entry shows up across sources.
func (a *DB) Duplicates(ctx context.Context) ([]Duplicate, error) {
	entityPrefix := "<" + vocab.EntityNamespace
	classes := vocab.Schema(vocab.ClassProtein)
	rows, err := a.db.QueryContext(ctx, `
		SELECT DISTINCT subject, graph
		FROM quads
		WHERE predicate = ? AND object IN (?, ?) AND graph <> ''
		  AND substr(subject, 1, length(?)) = ?
		  AND subject IN (
			SELECT subject FROM quads
			WHERE predicate = ? AND object IN (?, ?) AND graph <> ''
			GROUP BY subject
			HAVING COUNT(DISTINCT graph) > 1
		  )
		ORDER BY subject, graph`,
		vocab.TypeRT, classes[0], classes[1],
		entityPrefix, entityPrefix,
		vocab.TypeRT, classes[0], classes[1])
	if err != nil {
		return nil, errors.Wrap(err, "duplicates")
	}
	defer rows.Close()

	var out []Duplicate
	for rows.Next() {
		var subject, graph string
		if err := rows.Scan(&subject, &graph); err != nil {
			return nil, errors.Wrap(err, "scan duplicates")
		}
		if len(out) == 0 || out[len(out)-1].Entity != subject {
			out = append(out, Duplicate{
				Entity:    subject,
				Accession: strings.TrimSuffix(strings.TrimPrefix(subject, entityPrefix), ">"),
			})
		}
		last := &out[len(out)-1]
		last.Graphs = append(last.Graphs, graph)
	}
	return out, errors.Wrap(rows.Err(), "duplicates")
}
