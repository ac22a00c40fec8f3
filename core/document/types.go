// Package document holds the immutable, revisioned state of a TEI document
// under annotation and the event-logged wrapper that advances it.
//
// A *State is never modified after construction. Every mutation returns a
// new *State whose Revision is one greater, together with the Event that
// records it. Unchanged passages and entity slices are shared between
// revisions.
package document

import (
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	xmlpkg "github.com/FocuswithJustin/JuniperTag/core/xml"
)

// TextRange is a half-open [Start, End) range of rune offsets into a
// passage's content.
type TextRange struct {
	Start int `json:"start" msgpack:"start"`
	End   int `json:"end" msgpack:"end"`
}

// Len returns the number of runes covered.
func (r TextRange) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range covers no text.
func (r TextRange) Empty() bool {
	return r.Start == r.End
}

// Within reports whether 0 <= Start <= End <= length.
func (r TextRange) Within(length int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= length
}

// Overlaps reports whether the two ranges share at least one rune, or one
// is an empty range strictly inside the other.
func (r TextRange) Overlaps(o TextRange) bool {
	if r.Empty() || o.Empty() {
		return (r.Empty() && o.Start < r.Start && r.Start < o.End) ||
			(o.Empty() && r.Start < o.Start && o.Start < r.End)
	}
	return r.Start < o.End && o.Start < r.End
}

func (r TextRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Tag is an annotation over a range of one passage.
type Tag struct {
	ID         string            `json:"id" msgpack:"id"`
	Type       string            `json:"type" msgpack:"type"`
	Range      TextRange         `json:"range" msgpack:"range"`
	Attributes map[string]string `json:"attributes,omitempty" msgpack:"attributes,omitempty"`
}

// Attr returns the named attribute value, or "".
func (t Tag) Attr(name string) string {
	return t.Attributes[name]
}

// Passage is a unit of document text that owns its tags. Tags are kept
// sorted by Range.Start; equal starts keep insertion order.
type Passage struct {
	ID      string `json:"id" msgpack:"id"`
	Index   int    `json:"index" msgpack:"index"`
	Content string `json:"content" msgpack:"content"`
	Tags    []Tag  `json:"tags,omitempty" msgpack:"tags,omitempty"`

	// Element is the TEI element the passage was read from (p, ab or l).
	Element string `json:"element,omitempty" msgpack:"element,omitempty"`
}

// Len returns the content length in runes.
func (p *Passage) Len() int {
	return utf8.RuneCountInString(p.Content)
}

// Text returns the content covered by r. Out-of-bounds ranges are clamped.
func (p *Passage) Text(r TextRange) string {
	runes := []rune(p.Content)
	start := max(0, min(r.Start, len(runes)))
	end := max(start, min(r.End, len(runes)))
	return string(runes[start:end])
}

// Tag returns the tag with the given id.
func (p *Passage) Tag(id string) (Tag, bool) {
	for _, t := range p.Tags {
		if t.ID == id {
			return t, true
		}
	}
	return Tag{}, false
}

// Conflict returns the first committed tag whose range overlaps r.
func (p *Passage) Conflict(r TextRange) (Tag, bool) {
	for _, t := range p.Tags {
		if t.Range.Overlaps(r) {
			return t, true
		}
	}
	return Tag{}, false
}

// insertionIndex returns the position that keeps Tags ordered by start,
// placing r after existing tags with the same start.
func (p *Passage) insertionIndex(r TextRange) int {
	i, _ := slices.BinarySearchFunc(p.Tags, r.Start+1, func(t Tag, target int) int {
		return t.Range.Start - target
	})
	return i
}

// Character is a person in the document's listPerson.
type Character struct {
	ID    string `json:"id" msgpack:"id"`
	XMLID string `json:"xml_id,omitempty" msgpack:"xml_id,omitempty"`
	Name  string `json:"name" msgpack:"name"`
	Sex   string `json:"sex,omitempty" msgpack:"sex,omitempty"`
	Age   string `json:"age,omitempty" msgpack:"age,omitempty"`
}

// Place is an entry of listPlace.
type Place struct {
	ID    string `json:"id" msgpack:"id"`
	XMLID string `json:"xml_id,omitempty" msgpack:"xml_id,omitempty"`
	Name  string `json:"name" msgpack:"name"`
	Type  string `json:"type,omitempty" msgpack:"type,omitempty"`
}

// Organization is an entry of listOrg.
type Organization struct {
	ID    string `json:"id" msgpack:"id"`
	XMLID string `json:"xml_id,omitempty" msgpack:"xml_id,omitempty"`
	Name  string `json:"name" msgpack:"name"`
	Type  string `json:"type,omitempty" msgpack:"type,omitempty"`
}

// Relationship links two characters.
type Relationship struct {
	ID     string `json:"id" msgpack:"id"`
	Type   string `json:"type" msgpack:"type"`
	From   string `json:"from" msgpack:"from"`
	To     string `json:"to" msgpack:"to"`
	Mutual bool   `json:"mutual,omitempty" msgpack:"mutual,omitempty"`
}

// DialogueEntry indexes one speech tag.
type DialogueEntry struct {
	TagID     string    `json:"tag_id" msgpack:"tag_id"`
	PassageID string    `json:"passage_id" msgpack:"passage_id"`
	Speaker   string    `json:"speaker" msgpack:"speaker"`
	Range     TextRange `json:"range" msgpack:"range"`
}

// Metadata is taken from the teiHeader and the load itself.
type Metadata struct {
	Title      string    `json:"title,omitempty" msgpack:"title,omitempty"`
	Author     string    `json:"author,omitempty" msgpack:"author,omitempty"`
	Profile    string    `json:"profile,omitempty" msgpack:"profile,omitempty"`
	SourceHash string    `json:"source_hash,omitempty" msgpack:"source_hash,omitempty"`
	LoadedAt   time.Time `json:"loaded_at" msgpack:"loaded_at"`
}

// State is one immutable revision of a document.
type State struct {
	ID       string `json:"id" msgpack:"id"`
	XML      string `json:"xml,omitempty" msgpack:"xml,omitempty"`
	Revision int    `json:"revision" msgpack:"revision"`

	Passages      []Passage       `json:"passages" msgpack:"passages"`
	Characters    []Character     `json:"characters,omitempty" msgpack:"characters,omitempty"`
	Places        []Place         `json:"places,omitempty" msgpack:"places,omitempty"`
	Organizations []Organization  `json:"organizations,omitempty" msgpack:"organizations,omitempty"`
	Relationships []Relationship  `json:"relationships,omitempty" msgpack:"relationships,omitempty"`
	Dialogue      []DialogueEntry `json:"dialogue,omitempty" msgpack:"dialogue,omitempty"`
	Metadata      Metadata        `json:"metadata" msgpack:"metadata"`

	// Parsed is the tree of the loaded source. It is not carried into
	// snapshots and reflects XML, not later mutations.
	Parsed *xmlpkg.Document `json:"-" msgpack:"-"`
}

// Passage returns the passage with the given id.
func (s *State) Passage(id string) (*Passage, bool) {
	if i := s.passageIndex(id); i >= 0 {
		return &s.Passages[i], true
	}
	return nil, false
}

func (s *State) passageIndex(id string) int {
	for i := range s.Passages {
		if s.Passages[i].ID == id {
			return i
		}
	}
	return -1
}

// Character returns the character whose ID or XMLID equals id.
func (s *State) Character(id string) (Character, bool) {
	for _, c := range s.Characters {
		if c.ID == id || (c.XMLID != "" && c.XMLID == id) {
			return c, true
		}
	}
	return Character{}, false
}

// Place returns the place whose ID or XMLID equals id.
func (s *State) Place(id string) (Place, bool) {
	for _, p := range s.Places {
		if p.ID == id || (p.XMLID != "" && p.XMLID == id) {
			return p, true
		}
	}
	return Place{}, false
}

// Organization returns the organization whose ID or XMLID equals id.
func (s *State) Organization(id string) (Organization, bool) {
	for _, o := range s.Organizations {
		if o.ID == id || (o.XMLID != "" && o.XMLID == id) {
			return o, true
		}
	}
	return Organization{}, false
}

// TagCount returns the number of tags across all passages.
func (s *State) TagCount() int {
	n := 0
	for i := range s.Passages {
		n += len(s.Passages[i].Tags)
	}
	return n
}

// next returns a shallow copy with Revision+1. Slices are shared until the
// caller replaces the ones it changes.
func (s *State) next() *State {
	n := *s
	n.Revision = s.Revision + 1
	return &n
}
