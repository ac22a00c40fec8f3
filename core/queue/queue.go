// Package queue serializes tag insertions per passage.
//
// Each passage gets its own lane: a goroutine that takes requests off a
// buffered channel in arrival order, validates each against the latest
// document snapshot and commits it through the Document. Lanes of
// different passages run in parallel.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	"github.com/FocuswithJustin/JuniperTag/core/validate"
	"github.com/FocuswithJustin/JuniperTag/internal/logging"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("tag queue closed")

// DefaultBuffer is the per-lane channel capacity.
const DefaultBuffer = 16

// RejectionCode says why a request was not committed.
type RejectionCode string

// Rejection codes.
const (
	RejectOverlap         RejectionCode = "OVERLAP"
	RejectInvalid         RejectionCode = "INVALID"
	RejectPassageNotFound RejectionCode = "PASSAGE_NOT_FOUND"
)

// Rejection describes a request the queue refused. Rejections are values:
// they are reported once and never retried.
type Rejection struct {
	Code       RejectionCode `json:"code"`
	PassageID  string        `json:"passage_id"`
	TagID      string        `json:"tag_id"`
	ConflictID string        `json:"conflict_id,omitempty"`
	Message    string        `json:"message"`
}

// Request asks for a tag over a passage range.
type Request struct {
	PassageID  string
	Range      document.TextRange
	TagType    string
	Attributes map[string]string

	// TagID is optional; a fresh id is minted when empty.
	TagID string
}

// Outcome is the result of one request.
type Outcome struct {
	Accepted   bool             `json:"accepted"`
	Tag        document.Tag     `json:"tag"`
	State      *document.State  `json:"-"`
	Rejection  *Rejection       `json:"rejection,omitempty"`
	Validation *validate.Result `json:"validation,omitempty"`
}

// Validator checks a selection against a snapshot. *validate.Validator
// implements it.
type Validator interface {
	Validate(ctx context.Context, doc *document.State, sel validate.Selection) (validate.Result, error)
}

// Option configures a Queue.
type Option func(*Queue)

// WithBuffer sets the per-lane channel capacity.
func WithBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.buffer = n
		}
	}
}

// Queue routes requests to per-passage lanes.
type Queue struct {
	doc       *document.Document
	validator Validator
	buffer    int

	mu      sync.Mutex
	lanes   map[string]chan *pending
	closed  bool
	sending sync.WaitGroup
	running sync.WaitGroup
}

type pending struct {
	ctx  context.Context
	req  Request
	done chan result
}

type result struct {
	out Outcome
	err error
}

// New creates a queue committing to doc. A nil validator skips schema
// validation; overlap is always enforced.
func New(doc *document.Document, v Validator, opts ...Option) *Queue {
	q := &Queue{
		doc:       doc,
		validator: v,
		buffer:    DefaultBuffer,
		lanes:     make(map[string]chan *pending),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue submits req and waits for its outcome. Rejections are returned
// in the Outcome; the error is non-nil only for schema failures, a closed
// queue, or ctx ending before the request is committed.
//
// A request whose ctx ends while it waits for its lane is dropped. Once a
// lane holds the request Enqueue always reports what the lane did with it,
// so a nil error means the tag was committed or rejected and a ctx error
// means nothing changed.
func (q *Queue) Enqueue(ctx context.Context, req Request) (Outcome, error) {
	if logging.GetOperationID(ctx) == "" {
		ctx = logging.WithOperationID(ctx, uuid.NewString())
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Outcome{}, ErrQueueClosed
	}
	lane := q.laneLocked(req.PassageID)
	q.sending.Add(1)
	q.mu.Unlock()

	p := &pending{ctx: ctx, req: req, done: make(chan result, 1)}
	select {
	case lane <- p:
		q.sending.Done()
	case <-ctx.Done():
		q.sending.Done()
		return Outcome{}, ctx.Err()
	}

	r := <-p.done
	return r.out, r.err
}

// Lanes returns the number of started lanes.
func (q *Queue) Lanes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// Close stops accepting requests, lets every lane finish what it has
// buffered, and waits for the lanes to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.sending.Wait()
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.running.Wait()
}

func (q *Queue) laneLocked(passageID string) chan *pending {
	lane, ok := q.lanes[passageID]
	if !ok {
		lane = make(chan *pending, q.buffer)
		q.lanes[passageID] = lane
		q.running.Add(1)
		go q.run(lane)
	}
	return lane
}

func (q *Queue) run(lane chan *pending) {
	defer q.running.Done()
	for p := range lane {
		if err := p.ctx.Err(); err != nil {
			logging.DebugContext(p.ctx, "request_dropped", "passage_id", p.req.PassageID, "error", err)
			p.done <- result{err: err}
			continue
		}
		out, err := q.process(p.ctx, p.req)
		p.done <- result{out: out, err: err}
	}
}

func (q *Queue) process(ctx context.Context, req Request) (Outcome, error) {
	tag := document.NewTag(req.TagType, req.Range, req.Attributes)
	if req.TagID != "" {
		tag.ID = req.TagID
	}
	out := Outcome{Tag: tag}
	state := q.doc.State()

	passage, ok := state.Passage(req.PassageID)
	if !ok {
		return q.reject(ctx, out, RejectPassageNotFound, "", "passage not found: "+req.PassageID, req), nil
	}
	// Overlap is structural; it is reported ahead of schema problems.
	if conflict, ok := passage.Conflict(req.Range); ok {
		oe := jerrors.NewOverlap(req.PassageID, tag.ID, conflict.ID)
		return q.reject(ctx, out, RejectOverlap, conflict.ID, oe.Error(), req), nil
	}

	if q.validator != nil {
		res, err := q.validator.Validate(ctx, state, validate.Selection{
			PassageID:  req.PassageID,
			Range:      req.Range,
			TagType:    req.TagType,
			Attributes: req.Attributes,
		})
		if err != nil {
			logging.ErrorContext(ctx, "validation_error", "passage_id", req.PassageID, "tag", req.TagType, "error", err)
			return Outcome{}, err
		}
		out.Validation = &res
		if !res.Valid {
			msg := "validation failed"
			if len(res.Errors) > 0 {
				msg = res.Errors[0].Message
			}
			return q.reject(ctx, out, RejectInvalid, "", msg, req), nil
		}
	}

	next, err := q.doc.InsertTag(ctx, req.PassageID, tag)
	if err != nil {
		var (
			oe *jerrors.OverlapError
			ve *jerrors.ValidationError
		)
		switch {
		case errors.As(err, &oe):
			return q.reject(ctx, out, RejectOverlap, oe.ConflictID, err.Error(), req), nil
		case errors.Is(err, jerrors.ErrNotFound):
			return q.reject(ctx, out, RejectPassageNotFound, "", err.Error(), req), nil
		case errors.As(err, &ve):
			return q.reject(ctx, out, RejectInvalid, "", err.Error(), req), nil
		}
		return Outcome{}, err
	}

	out.Accepted = true
	out.State = next
	logging.TagCommitted(ctx, req.PassageID, tag.ID, next.Revision)
	return out, nil
}

func (q *Queue) reject(ctx context.Context, out Outcome, code RejectionCode, conflict, msg string, req Request) Outcome {
	out.Rejection = &Rejection{
		Code:       code,
		PassageID:  req.PassageID,
		TagID:      out.Tag.ID,
		ConflictID: conflict,
		Message:    msg,
	}
	logging.TagRejected(ctx, req.PassageID, string(code), msg, "tag_id", out.Tag.ID)
	return out
}
