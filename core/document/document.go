package document

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	"github.com/FocuswithJustin/JuniperTag/internal/logging"
)

// EventSink persists events as they are recorded. A sink failure aborts
// the mutation.
type EventSink interface {
	Append(ctx context.Context, docID string, ev Event) error
}

// Option configures a Document.
type Option func(*Document)

// WithSink sends every recorded event to sink.
func WithSink(sink EventSink) Option {
	return func(d *Document) { d.sink = sink }
}

// WithHistoryLimit bounds how many previous states are kept for Undo
// (0 = unbounded).
func WithHistoryLimit(n int) Option {
	return func(d *Document) { d.historyLimit = n }
}

// Document owns the current State of one document, its event log, and the
// states that Undo can return to. It is the single writer: every change
// goes through Apply under one lock.
type Document struct {
	mu           sync.RWMutex
	state        *State
	history      []*State
	events       []Event
	sink         EventSink
	historyLimit int
}

// Open wraps an initial state and records a loaded event for it.
func Open(ctx context.Context, initial *State, opts ...Option) (*Document, error) {
	if initial == nil {
		return nil, jerrors.NewValidation("state", "initial state is nil")
	}
	d := &Document{state: initial}
	for _, opt := range opts {
		opt(d)
	}
	ev := newEvent(EventLoaded, initial.Revision, map[string]string{
		"passages":    strconv.Itoa(len(initial.Passages)),
		"characters":  strconv.Itoa(len(initial.Characters)),
		"source_hash": initial.Metadata.SourceHash,
	})
	if err := d.record(ctx, ev); err != nil {
		return nil, err
	}
	return d, nil
}

// ID returns the document id.
func (d *Document) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.ID
}

// State returns the current snapshot. The value is immutable and stays
// valid after later mutations.
func (d *Document) State() *State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Revision returns the current revision.
func (d *Document) Revision() int {
	return d.State().Revision
}

// Events returns a copy of the event log.
func (d *Document) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.events))
	for i, ev := range d.events {
		out[i] = ev.Clone()
	}
	return out
}

// Apply runs m against the current state and, on success, makes its
// result current and appends its event. Nothing is applied once ctx is
// done.
func (d *Document) Apply(ctx context.Context, m Mutation) (*State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cur := d.state
	next, ev, err := m(cur)
	if err != nil {
		return nil, err
	}
	if next == nil || next.Revision != cur.Revision+1 || ev.Revision != next.Revision {
		return nil, &jerrors.ValidationError{
			Field:   "revision",
			Message: fmt.Sprintf("mutation must advance revision %d by one", cur.Revision),
			Err:     jerrors.ErrInternal,
		}
	}
	if err := d.record(ctx, ev); err != nil {
		return nil, err
	}
	d.pushHistory(cur)
	d.state = next
	return next, nil
}

// Undo returns to the previous state. The restored content is published as
// a new revision so revisions never go backwards.
func (d *Document) Undo(ctx context.Context) (*State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.history) == 0 {
		return nil, jerrors.NewNotFound("undo history", d.state.ID)
	}
	prev := d.history[len(d.history)-1]
	restored := *prev
	restored.Revision = d.state.Revision + 1

	ev := newEvent(EventUndo, restored.Revision, map[string]string{
		"undone_revision":   strconv.Itoa(d.state.Revision),
		"restored_revision": strconv.Itoa(prev.Revision),
	})
	if err := d.record(ctx, ev); err != nil {
		return nil, err
	}
	d.history = d.history[:len(d.history)-1]
	d.state = &restored
	return d.state, nil
}

// CanUndo reports whether Undo has a state to return to.
func (d *Document) CanUndo() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.history) > 0
}

// AddTag commits a new tag. See State.AddTag.
func (d *Document) AddTag(ctx context.Context, passageID string, r TextRange, tagType string, attrs map[string]string) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.AddTag(passageID, r, tagType, attrs)
	})
}

// InsertTag commits a prepared tag. See State.InsertTag.
func (d *Document) InsertTag(ctx context.Context, passageID string, tag Tag) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.InsertTag(passageID, tag)
	})
}

// RemoveTag removes a tag.
func (d *Document) RemoveTag(ctx context.Context, passageID, tagID string) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.RemoveTag(passageID, tagID)
	})
}

// AddCharacter adds a character.
func (d *Document) AddCharacter(ctx context.Context, c Character) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.AddCharacter(c)
	})
}

// RemoveCharacter removes a character and its relationships.
func (d *Document) RemoveCharacter(ctx context.Context, id string) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.RemoveCharacter(id)
	})
}

// AddPlace adds a place.
func (d *Document) AddPlace(ctx context.Context, p Place) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.AddPlace(p)
	})
}

// AddOrganization adds an organization.
func (d *Document) AddOrganization(ctx context.Context, o Organization) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.AddOrganization(o)
	})
}

// AddRelationship adds a relationship.
func (d *Document) AddRelationship(ctx context.Context, r Relationship) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.AddRelationship(r)
	})
}

// RemoveRelationship removes a relationship.
func (d *Document) RemoveRelationship(ctx context.Context, id string) (*State, error) {
	return d.Apply(ctx, func(s *State) (*State, Event, error) {
		return s.RemoveRelationship(id)
	})
}

// record assigns the next sequence number, hands the event to the sink and
// appends it. Callers hold d.mu.
func (d *Document) record(ctx context.Context, ev Event) error {
	ev.Seq = len(d.events) + 1
	if d.sink != nil {
		if err := d.sink.Append(ctx, d.state.ID, ev.Clone()); err != nil {
			return jerrors.Wrapf(err, "journal %s event", ev.Type)
		}
	}
	d.events = append(d.events, ev)
	logging.DocumentMutated(d.state.ID, string(ev.Type), ev.Revision, "seq", ev.Seq)
	return nil
}

func (d *Document) pushHistory(s *State) {
	d.history = append(d.history, s)
	if d.historyLimit > 0 && len(d.history) > d.historyLimit {
		d.history = slices.Delete(d.history, 0, len(d.history)-d.historyLimit)
	}
}
