// Package store persists document history: an SQLite event journal and
// compressed state snapshots.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"fortio.org/safecast"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	"github.com/FocuswithJustin/JuniperTag/core/sqlite"
)

// MemoryPath opens a journal that lives only as long as the Journal.
const MemoryPath = ":memory:"

const journalSchema = `
CREATE TABLE IF NOT EXISTS events (
	pos       INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id    TEXT    NOT NULL,
	seq       INTEGER NOT NULL,
	id        TEXT    NOT NULL UNIQUE,
	revision  INTEGER NOT NULL,
	type      TEXT    NOT NULL,
	timestamp TEXT    NOT NULL,
	payload   TEXT    NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS events_doc ON events (doc_id, pos);
`

// Journal is an append-only event log in SQLite. It implements
// document.EventSink.
//
// Events accumulate across sessions: a document reloaded from the same
// source keeps its id, so each session's events follow the previous ones.
// Seq numbers restart per session; append order is kept separately.
type Journal struct {
	db   *sql.DB
	path string
}

var _ document.EventSink = (*Journal)(nil)

// DocumentSummary describes one document recorded in a journal.
type DocumentSummary struct {
	DocID    string `json:"doc_id"`
	Events   int    `json:"events"`
	Revision int    `json:"revision"`
}

// OpenJournal opens (creating if needed) the journal at path.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, jerrors.NewIO("open journal", path, err)
	}
	inMemory := path == MemoryPath
	if inMemory {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := sqlite.Configure(ctx, db, !inMemory); err != nil {
		db.Close()
		return nil, jerrors.NewIO("configure journal", path, err)
	}
	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		db.Close()
		return nil, jerrors.NewIO("create journal schema", path, err)
	}
	return &Journal{db: db, path: path}, nil
}

// OpenJournalReadOnly opens an existing journal for reading. It fails if
// the journal does not exist, and Append through it fails.
func OpenJournalReadOnly(ctx context.Context, path string) (*Journal, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, jerrors.NewIO("open journal", path, err)
	}
	if err := sqlite.Configure(ctx, db, false); err != nil {
		db.Close()
		return nil, jerrors.NewIO("configure journal", path, err)
	}
	var name string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'events'`).Scan(&name)
	if err != nil {
		db.Close()
		return nil, jerrors.NewIO("read journal schema", path, err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the data source the journal was opened with.
func (j *Journal) Path() string { return j.path }

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records ev for docID. Appending an event id twice fails.
func (j *Journal) Append(ctx context.Context, docID string, ev document.Event) error {
	seq, err := safecast.Conv[int64](ev.Seq)
	if err != nil {
		return jerrors.Wrap(err, "event seq")
	}
	rev, err := safecast.Conv[int64](ev.Revision)
	if err != nil {
		return jerrors.Wrap(err, "event revision")
	}
	payload := []byte("{}")
	if len(ev.Payload) > 0 {
		if payload, err = json.Marshal(ev.Payload); err != nil {
			return jerrors.Wrap(err, "encode payload")
		}
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (doc_id, seq, id, revision, type, timestamp, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		docID, seq, ev.ID, rev, string(ev.Type), ev.Timestamp.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return jerrors.NewIO("append event", j.path, err)
	}
	return nil
}

// Events returns the events recorded for docID in append order.
func (j *Journal) Events(ctx context.Context, docID string) ([]document.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, id, revision, type, timestamp, payload FROM events WHERE doc_id = ? ORDER BY pos`, docID)
	if err != nil {
		return nil, jerrors.NewIO("query events", j.path, err)
	}
	defer rows.Close()

	var out []document.Event
	for rows.Next() {
		var (
			seq, rev    int64
			id, typ, ts string
			payload     string
		)
		if err := rows.Scan(&seq, &id, &rev, &typ, &ts, &payload); err != nil {
			return nil, jerrors.NewIO("scan event", j.path, err)
		}
		ev, err := decodeEvent(seq, id, rev, typ, ts, payload)
		if err != nil {
			return nil, jerrors.Wrapf(err, "event %d of %s", seq, docID)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, jerrors.NewIO("read events", j.path, err)
	}
	return out, nil
}

// Documents lists every document in the journal with its event count and
// latest revision, ordered by document id.
func (j *Journal) Documents(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT doc_id, COUNT(*), MAX(revision) FROM events GROUP BY doc_id ORDER BY doc_id`)
	if err != nil {
		return nil, jerrors.NewIO("query documents", j.path, err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var (
			docID      string
			count, rev int64
		)
		if err := rows.Scan(&docID, &count, &rev); err != nil {
			return nil, jerrors.NewIO("scan document", j.path, err)
		}
		n, err := safecast.Conv[int](count)
		if err != nil {
			return nil, jerrors.Wrap(err, "event count")
		}
		r, err := safecast.Conv[int](rev)
		if err != nil {
			return nil, jerrors.Wrap(err, "revision")
		}
		out = append(out, DocumentSummary{DocID: docID, Events: n, Revision: r})
	}
	if err := rows.Err(); err != nil {
		return nil, jerrors.NewIO("read documents", j.path, err)
	}
	return out, nil
}

func decodeEvent(seq int64, id string, rev int64, typ, ts, payload string) (document.Event, error) {
	s, err := safecast.Conv[int](seq)
	if err != nil {
		return document.Event{}, err
	}
	r, err := safecast.Conv[int](rev)
	if err != nil {
		return document.Event{}, err
	}
	when, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return document.Event{}, err
	}
	ev := document.Event{
		ID:        id,
		Seq:       s,
		Type:      document.EventType(typ),
		Revision:  r,
		Timestamp: when,
	}
	if payload != "" && payload != "{}" {
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return document.Event{}, err
		}
	}
	return ev, nil
}
