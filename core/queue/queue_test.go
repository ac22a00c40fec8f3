package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	"github.com/FocuswithJustin/JuniperTag/core/schema"
	"github.com/FocuswithJustin/JuniperTag/core/validate"
	"github.com/FocuswithJustin/JuniperTag/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const saidRNG = `<grammar>
  <define name="said">
    <element name="said">
      <attribute name="who"><data type="IDREF"/></attribute>
      <text/>
    </element>
  </define>
</grammar>`

func openDoc(t *testing.T) *document.Document {
	t.Helper()
	d, err := document.Open(context.Background(), &document.State{
		ID: "doc",
		Passages: []document.Passage{
			{ID: "p1", Content: "The quick brown fox jumps over the lazy dog."},
			{ID: "p2", Index: 1, Content: "Another passage entirely."},
		},
		Characters: []document.Character{{ID: "char-1", Name: "Fox"}},
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return d
}

func rng(start, end int) document.TextRange {
	return document.TextRange{Start: start, End: end}
}

func TestEnqueue_AcceptsAndOrders(t *testing.T) {
	d := openDoc(t)
	q := New(d, nil)
	defer q.Close()
	ctx := context.Background()

	reqs := []Request{
		{PassageID: "p1", Range: rng(10, 15), TagType: "q", TagID: "b"},
		{PassageID: "p1", Range: rng(0, 3), TagType: "q", TagID: "a"},
		{PassageID: "p1", Range: rng(20, 25), TagType: "q", TagID: "c"},
	}
	for i, req := range reqs {
		out, err := q.Enqueue(ctx, req)
		if err != nil {
			t.Fatalf("Enqueue(%s) error = %v", req.TagID, err)
		}
		if !out.Accepted || out.Rejection != nil {
			t.Fatalf("Enqueue(%s) = %+v", req.TagID, out)
		}
		if out.State.Revision != i+1 {
			t.Errorf("revision after %s = %d, want %d", req.TagID, out.State.Revision, i+1)
		}
	}

	p, _ := d.State().Passage("p1")
	var ids []string
	for _, tag := range p.Tags {
		ids = append(ids, tag.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("tag order = %v, want [a b c]", ids)
	}
	if n := len(d.Events()); n != 4 {
		t.Errorf("events = %d, want 4 (loaded + 3 tags)", n)
	}
}

func TestEnqueue_Rejections(t *testing.T) {
	d := openDoc(t)
	q := New(d, nil)
	defer q.Close()
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(4, 9), TagType: "q", TagID: "first"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		req      Request
		code     RejectionCode
		conflict string
	}{
		{"overlap", Request{PassageID: "p1", Range: rng(8, 12), TagType: "q", TagID: "second"}, RejectOverlap, "first"},
		{"nested", Request{PassageID: "p1", Range: rng(5, 6), TagType: "q"}, RejectOverlap, "first"},
		{"unknown passage", Request{PassageID: "p9", Range: rng(0, 1), TagType: "q"}, RejectPassageNotFound, ""},
		{"bad range", Request{PassageID: "p2", Range: rng(0, 500), TagType: "q"}, RejectInvalid, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := d.Revision()
			out, err := q.Enqueue(ctx, tt.req)
			if err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
			if out.Accepted || out.Rejection == nil {
				t.Fatalf("Enqueue() = %+v, want rejection", out)
			}
			r := out.Rejection
			if r.Code != tt.code || r.ConflictID != tt.conflict || r.PassageID != tt.req.PassageID {
				t.Errorf("Rejection = %+v", r)
			}
			if r.TagID == "" || r.Message == "" {
				t.Errorf("Rejection lacks context: %+v", r)
			}
			if d.Revision() != before {
				t.Error("rejected request advanced the revision")
			}
		})
	}
}

func TestEnqueue_ConcurrentNoOverlap(t *testing.T) {
	d := openDoc(t)
	q := New(d, nil, WithBuffer(4))
	defer q.Close()

	const n = 40
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := i % 38
			out, err := q.Enqueue(context.Background(), Request{PassageID: "p1", Range: rng(start, start+5), TagType: "q"})
			if err != nil {
				t.Errorf("Enqueue() error = %v", err)
				return
			}
			if out.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if out.Rejection.Code != RejectOverlap {
				t.Errorf("unexpected rejection %+v", out.Rejection)
			}
		}(i)
	}
	wg.Wait()

	s := d.State()
	p, _ := s.Passage("p1")
	if len(p.Tags) != accepted {
		t.Errorf("committed %d tags, accepted %d", len(p.Tags), accepted)
	}
	if s.Revision != accepted {
		t.Errorf("Revision = %d, want %d", s.Revision, accepted)
	}
	for i := range p.Tags {
		if i > 0 && p.Tags[i-1].Range.Start > p.Tags[i].Range.Start {
			t.Errorf("tags out of order at %d", i)
		}
		for j := i + 1; j < len(p.Tags); j++ {
			if p.Tags[i].Range.Overlaps(p.Tags[j].Range) {
				t.Errorf("committed tags %v and %v overlap", p.Tags[i].Range, p.Tags[j].Range)
			}
		}
	}
}

func TestEnqueue_LanesPerPassage(t *testing.T) {
	d := openDoc(t)
	q := New(d, nil)
	defer q.Close()

	var wg sync.WaitGroup
	for _, pid := range []string{"p1", "p2", "p1", "p2"} {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			q.Enqueue(context.Background(), Request{PassageID: pid, Range: rng(0, 3), TagType: "q"})
		}(pid)
	}
	wg.Wait()

	if got := q.Lanes(); got != 2 {
		t.Errorf("Lanes() = %d, want 2", got)
	}
	if got := d.State().TagCount(); got != 2 {
		t.Errorf("TagCount() = %d, want one tag per passage", got)
	}
}

func TestEnqueue_WithValidator(t *testing.T) {
	d := openDoc(t)
	loader := schema.LoaderFunc(func(context.Context, string, string) (string, error) {
		return saidRNG, nil
	})
	v := validate.New(schema.NewCache(loader, schema.Options{}), validate.Options{})
	q := New(d, v)
	defer q.Close()
	ctx := context.Background()

	out, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(0, 3), TagType: "said"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if out.Accepted || out.Rejection.Code != RejectInvalid {
		t.Fatalf("Enqueue(missing who) = %+v", out)
	}
	if out.Validation == nil || out.Validation.Valid || len(out.Validation.Fixes) != 1 {
		t.Errorf("Validation = %+v", out.Validation)
	}

	out, err = q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(0, 3), TagType: "said", Attributes: map[string]string{"who": "#char-1"}})
	if err != nil || !out.Accepted {
		t.Fatalf("Enqueue(valid) = %+v, %v", out, err)
	}
	if len(d.State().Dialogue) != 1 {
		t.Errorf("Dialogue = %+v", d.State().Dialogue)
	}
}

func TestEnqueue_SchemaFailure(t *testing.T) {
	d := openDoc(t)
	loader := schema.LoaderFunc(func(context.Context, string, string) (string, error) {
		return "not a grammar", nil
	})
	q := New(d, validate.New(schema.NewCache(loader, schema.Options{}), validate.Options{}))
	defer q.Close()

	_, err := q.Enqueue(context.Background(), Request{PassageID: "p1", Range: rng(0, 3), TagType: "said"})
	if !errors.Is(err, jerrors.ErrSchemaFormat) {
		t.Errorf("Enqueue() error = %v, want ErrSchemaFormat", err)
	}
}

func TestEnqueue_CancelledContext(t *testing.T) {
	d := openDoc(t)
	q := New(d, nil)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(0, 3), TagType: "q"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Enqueue(cancelled) error = %v", err)
	}
	if d.Revision() != 0 {
		t.Error("cancelled request was committed")
	}
}

// gateValidator accepts every selection once released.
type gateValidator struct {
	entered chan struct{}
	release chan struct{}
	opID    string
}

func (v *gateValidator) Validate(ctx context.Context, _ *document.State, _ validate.Selection) (validate.Result, error) {
	v.opID = logging.GetOperationID(ctx)
	close(v.entered)
	<-v.release
	return validate.Result{Valid: true}, nil
}

func TestEnqueue_CancelWhileProcessing(t *testing.T) {
	d := openDoc(t)
	v := &gateValidator{entered: make(chan struct{}), release: make(chan struct{})}
	q := New(d, v)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(0, 3), TagType: "q"})
		done <- err
	}()
	<-v.entered
	cancel()
	close(v.release)

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Enqueue() error = %v, want context.Canceled", err)
	}
	if d.Revision() != 0 || d.State().TagCount() != 0 {
		t.Errorf("revision = %d, tags = %d after a cancelled request", d.Revision(), d.State().TagCount())
	}
	if v.opID == "" {
		t.Error("request context carries no operation id")
	}
}

// cancelSink cancels the request context as a tag is journaled.
type cancelSink struct {
	cancel context.CancelFunc
}

func (s cancelSink) Append(_ context.Context, _ string, ev document.Event) error {
	if ev.Type == document.EventTagAdded {
		s.cancel()
	}
	return nil
}

func TestEnqueue_CancelAfterCommitReportsCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, err := document.Open(context.Background(), &document.State{
		ID:       "doc",
		Passages: []document.Passage{{ID: "p1", Content: "Hello there."}},
	}, document.WithSink(cancelSink{cancel: cancel}))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	q := New(d, nil)
	defer q.Close()

	out, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(0, 5), TagType: "q", TagID: "t1"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v, want the committed outcome", err)
	}
	if !out.Accepted || out.State.Revision != 1 {
		t.Errorf("Enqueue() = %+v, want accepted at revision 1", out)
	}
	if d.Revision() != 1 {
		t.Errorf("Revision() = %d, want 1", d.Revision())
	}
}

func TestEnqueue_OverlapBeforeValidation(t *testing.T) {
	d := openDoc(t)
	loader := schema.LoaderFunc(func(context.Context, string, string) (string, error) {
		return saidRNG, nil
	})
	q := New(d, validate.New(schema.NewCache(loader, schema.Options{}), validate.Options{}))
	defer q.Close()
	ctx := context.Background()

	first, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(0, 3), TagType: "said",
		Attributes: map[string]string{"who": "#char-1"}, TagID: "s1"})
	if err != nil || !first.Accepted {
		t.Fatalf("Enqueue(first) = %+v, %v", first, err)
	}

	// Missing who and overlapping s1.
	out, err := q.Enqueue(ctx, Request{PassageID: "p1", Range: rng(2, 9), TagType: "said"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if out.Rejection == nil || out.Rejection.Code != RejectOverlap || out.Rejection.ConflictID != "s1" {
		t.Fatalf("Rejection = %+v, want OVERLAP with s1", out.Rejection)
	}
	if out.Validation != nil {
		t.Errorf("Validation = %+v, want nil for an overlapping request", out.Validation)
	}
}

func TestClose(t *testing.T) {
	d := openDoc(t)
	q := New(d, nil)
	if _, err := q.Enqueue(context.Background(), Request{PassageID: "p1", Range: rng(0, 3), TagType: "q"}); err != nil {
		t.Fatal(err)
	}
	q.Close()
	q.Close()

	if _, err := q.Enqueue(context.Background(), Request{PassageID: "p1", Range: rng(5, 6), TagType: "q"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue after Close error = %v, want ErrQueueClosed", err)
	}
}
