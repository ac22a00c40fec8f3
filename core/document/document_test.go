package document

import (
	"context"
	"errors"
	"sync"
	"testing"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func (m *memorySink) Append(_ context.Context, docID string, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, ev)
	return nil
}

func TestOpen_RecordsLoaded(t *testing.T) {
	sink := &memorySink{}
	d, err := Open(context.Background(), simpleState(), WithSink(sink))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	events := d.Events()
	if len(events) != 1 || events[0].Type != EventLoaded || events[0].Seq != 1 {
		t.Fatalf("Events() = %+v", events)
	}
	if events[0].Payload["passages"] != "2" {
		t.Errorf("loaded payload = %v", events[0].Payload)
	}
	if len(sink.events) != 1 {
		t.Errorf("sink got %d events, want 1", len(sink.events))
	}
	if d.ID() != "doc-1" || d.Revision() != 0 {
		t.Errorf("ID/Revision = %s/%d", d.ID(), d.Revision())
	}

	if _, err := Open(context.Background(), nil); !errors.Is(err, jerrors.ErrInvalidInput) {
		t.Errorf("Open(nil) error = %v", err)
	}
}

func TestDocument_RevisionMonotonicity(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, simpleState())
	if err != nil {
		t.Fatal(err)
	}

	steps := []func() (*State, error){
		func() (*State, error) { return d.AddCharacter(ctx, Character{ID: "char-2", Name: "Bo"}) },
		func() (*State, error) {
			return d.AddTag(ctx, "p1", TextRange{0, 5}, "said", map[string]string{"who": "#char-1"})
		},
		func() (*State, error) {
			return d.AddRelationship(ctx, Relationship{ID: "r1", From: "char-1", To: "char-2"})
		},
		func() (*State, error) { return d.AddPlace(ctx, Place{ID: "pl-1"}) },
		func() (*State, error) { return d.AddOrganization(ctx, Organization{ID: "org-1"}) },
		func() (*State, error) { return d.RemoveRelationship(ctx, "r1") },
		func() (*State, error) { return d.RemoveCharacter(ctx, "char-2") },
	}
	for i, step := range steps {
		before, nEvents := d.Revision(), len(d.Events())
		s, err := step()
		if err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
		if s.Revision != before+1 || d.Revision() != before+1 {
			t.Errorf("step %d revision = %d, want %d", i, s.Revision, before+1)
		}
		events := d.Events()
		if len(events) != nEvents+1 {
			t.Errorf("step %d appended %d events, want 1", i, len(events)-nEvents)
		}
		if last := events[len(events)-1]; last.Revision != s.Revision || last.Seq != len(events) {
			t.Errorf("step %d event = %+v", i, last)
		}
	}

	// A failing mutation changes nothing.
	before, nEvents := d.Revision(), len(d.Events())
	if _, err := d.AddTag(ctx, "p1", TextRange{2, 4}, "q", nil); !errors.Is(err, jerrors.ErrOverlap) {
		t.Errorf("overlapping AddTag error = %v", err)
	}
	if d.Revision() != before || len(d.Events()) != nEvents {
		t.Error("failed mutation advanced the document")
	}
}

func TestDocument_Undo(t *testing.T) {
	ctx := context.Background()
	d, _ := Open(ctx, simpleState())

	if _, err := d.Undo(ctx); !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("Undo() on fresh document error = %v", err)
	}

	s1, err := d.InsertTag(ctx, "p1", Tag{ID: "t1", Type: "said", Range: TextRange{0, 5}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.RemoveTag(ctx, "p1", "t1"); err != nil {
		t.Fatal(err)
	}
	if !d.CanUndo() {
		t.Fatal("CanUndo() = false")
	}

	restored, err := d.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if restored.Revision != 3 {
		t.Errorf("restored revision = %d, want 3", restored.Revision)
	}
	p, _ := restored.Passage("p1")
	if len(p.Tags) != 1 || p.Tags[0].ID != "t1" {
		t.Errorf("undo did not restore tag: %+v", p.Tags)
	}
	if s1.Revision != 1 {
		t.Error("Undo modified a historical state")
	}

	events := d.Events()
	last := events[len(events)-1]
	if last.Type != EventUndo || last.Payload["undone_revision"] != "2" || last.Payload["restored_revision"] != "1" {
		t.Errorf("undo event = %+v", last)
	}
}

func TestDocument_HistoryLimit(t *testing.T) {
	ctx := context.Background()
	d, _ := Open(ctx, simpleState(), WithHistoryLimit(1))
	d.AddCharacter(ctx, Character{ID: "a"})
	d.AddCharacter(ctx, Character{ID: "b"})

	if _, err := d.Undo(ctx); err != nil {
		t.Fatalf("first Undo() error = %v", err)
	}
	if _, err := d.Undo(ctx); err == nil {
		t.Error("second Undo() should exceed the history limit")
	}
}

func TestDocument_SinkFailureAborts(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	d, _ := Open(ctx, simpleState(), WithSink(sink))

	sink.fail = errors.New("disk full")
	if _, err := d.AddCharacter(ctx, Character{ID: "x"}); err == nil {
		t.Fatal("AddCharacter() should fail when the sink fails")
	}
	if d.Revision() != 0 || len(d.Events()) != 1 {
		t.Errorf("sink failure advanced the document to revision %d", d.Revision())
	}
}

func TestDocument_ApplyRejectsBadMutation(t *testing.T) {
	ctx := context.Background()
	d, _ := Open(ctx, simpleState())
	_, err := d.Apply(ctx, func(s *State) (*State, Event, error) {
		n := *s
		n.Revision += 2
		return &n, Event{Revision: n.Revision}, nil
	})
	if !errors.Is(err, jerrors.ErrInternal) {
		t.Errorf("Apply() error = %v, want ErrInternal", err)
	}
}

func TestDocument_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	d, _ := Open(ctx, simpleState())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.AddCharacter(ctx, Character{Name: "extra"})
		}(i)
	}
	wg.Wait()

	if d.Revision() != 20 {
		t.Errorf("Revision = %d, want 20", d.Revision())
	}
	if n := len(d.State().Characters); n != 21 {
		t.Errorf("characters = %d, want 21", n)
	}
	for i, ev := range d.Events() {
		if ev.Seq != i+1 {
			t.Fatalf("event %d has Seq %d", i, ev.Seq)
		}
	}
}
