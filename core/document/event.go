package document

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// EventType names a document mutation.
type EventType string

// Event types.
const (
	EventLoaded              EventType = "loaded"
	EventTagAdded            EventType = "tagAdded"
	EventTagRemoved          EventType = "tagRemoved"
	EventCharacterAdded      EventType = "characterAdded"
	EventCharacterRemoved    EventType = "characterRemoved"
	EventPlaceAdded          EventType = "placeAdded"
	EventOrganizationAdded   EventType = "organizationAdded"
	EventRelationshipAdded   EventType = "relationshipAdded"
	EventRelationshipRemoved EventType = "relationshipRemoved"
	EventUndo                EventType = "undo"
)

// Event is one append-only log entry. Seq is assigned by the Document that
// records it; Revision is the revision the mutation produced.
type Event struct {
	ID        string            `json:"id" msgpack:"id"`
	Seq       int               `json:"seq" msgpack:"seq"`
	Type      EventType         `json:"type" msgpack:"type"`
	Revision  int               `json:"revision" msgpack:"revision"`
	Timestamp time.Time         `json:"timestamp" msgpack:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Clone returns a copy that shares nothing with e.
func (e Event) Clone() Event {
	e.Payload = maps.Clone(e.Payload)
	return e
}

// clock and newID are variables so tests can pin them.
var (
	clock = time.Now
	newID = uuid.NewString
)

func newEvent(typ EventType, revision int, payload map[string]string) Event {
	return Event{
		ID:        newID(),
		Type:      typ,
		Revision:  revision,
		Timestamp: clock().UTC(),
		Payload:   payload,
	}
}
