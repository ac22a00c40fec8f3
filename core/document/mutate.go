package document

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
)

// Mutation computes the next state from the current one. It must return a
// state with Revision exactly one above its input and the event recording
// the change.
type Mutation func(*State) (*State, Event, error)

// NewTag builds a tag with a fresh id. attrs is copied.
func NewTag(tagType string, r TextRange, attrs map[string]string) Tag {
	return Tag{
		ID:         "tag-" + newID(),
		Type:       tagType,
		Range:      r,
		Attributes: maps.Clone(attrs),
	}
}

// AddTag adds a new tag of tagType over r in the passage.
func (s *State) AddTag(passageID string, r TextRange, tagType string, attrs map[string]string) (*State, Event, error) {
	return s.InsertTag(passageID, NewTag(tagType, r, attrs))
}

// InsertTag commits tag to the passage. It fails when the passage is
// unknown, the range lies outside the content, or the range overlaps a
// committed tag (*errors.OverlapError).
func (s *State) InsertTag(passageID string, tag Tag) (*State, Event, error) {
	i := s.passageIndex(passageID)
	if i < 0 {
		return nil, Event{}, jerrors.NewNotFound("passage", passageID)
	}
	p := s.Passages[i]

	if strings.TrimSpace(tag.Type) == "" {
		return nil, Event{}, jerrors.NewValidation("type", "tag type is required")
	}
	if !tag.Range.Within(p.Len()) {
		return nil, Event{}, &jerrors.ValidationError{
			Field:   "range",
			Value:   tag.Range.String(),
			Message: fmt.Sprintf("range %s is outside passage %s of length %d", tag.Range, passageID, p.Len()),
		}
	}
	if tag.ID == "" {
		tag.ID = "tag-" + newID()
	}
	if _, dup := p.Tag(tag.ID); dup {
		return nil, Event{}, &jerrors.ValidationError{Field: "id", Value: tag.ID, Message: "duplicate tag id"}
	}
	if c, ok := p.Conflict(tag.Range); ok {
		return nil, Event{}, jerrors.NewOverlap(passageID, tag.ID, c.ID)
	}
	tag.Attributes = maps.Clone(tag.Attributes)

	idx := p.insertionIndex(tag.Range)
	p.Tags = slices.Insert(slices.Clone(p.Tags), idx, tag)

	n := s.next()
	n.Passages = replaceAt(s.Passages, i, p)
	n.Dialogue = dialogueIndex(n.Passages)
	return n, newEvent(EventTagAdded, n.Revision, map[string]string{
		"passage_id": passageID,
		"tag_id":     tag.ID,
		"tag_type":   tag.Type,
		"start":      strconv.Itoa(tag.Range.Start),
		"end":        strconv.Itoa(tag.Range.End),
	}), nil
}

// RemoveTag removes a tag from the passage.
func (s *State) RemoveTag(passageID, tagID string) (*State, Event, error) {
	i := s.passageIndex(passageID)
	if i < 0 {
		return nil, Event{}, jerrors.NewNotFound("passage", passageID)
	}
	p := s.Passages[i]
	j := slices.IndexFunc(p.Tags, func(t Tag) bool { return t.ID == tagID })
	if j < 0 {
		return nil, Event{}, jerrors.NewNotFound("tag", tagID)
	}
	removed := p.Tags[j]
	p.Tags = slices.Delete(slices.Clone(p.Tags), j, j+1)

	n := s.next()
	n.Passages = replaceAt(s.Passages, i, p)
	n.Dialogue = dialogueIndex(n.Passages)
	return n, newEvent(EventTagRemoved, n.Revision, map[string]string{
		"passage_id": passageID,
		"tag_id":     tagID,
		"tag_type":   removed.Type,
	}), nil
}

// AddCharacter appends a character. An empty ID takes the XMLID, or a
// fresh id when both are empty.
func (s *State) AddCharacter(c Character) (*State, Event, error) {
	c.ID = entityID(c.ID, c.XMLID, "char")
	if _, dup := s.Character(c.ID); dup {
		return nil, Event{}, &jerrors.ValidationError{Field: "id", Value: c.ID, Message: "duplicate character id"}
	}
	n := s.next()
	n.Characters = append(slices.Clip(s.Characters), c)
	return n, newEvent(EventCharacterAdded, n.Revision, map[string]string{
		"character_id": c.ID,
		"name":         c.Name,
	}), nil
}

// RemoveCharacter removes a character and every relationship that
// references it, as one mutation.
func (s *State) RemoveCharacter(id string) (*State, Event, error) {
	id = stripRef(id)
	i := slices.IndexFunc(s.Characters, func(c Character) bool {
		return c.ID == id || (c.XMLID != "" && c.XMLID == id)
	})
	if i < 0 {
		return nil, Event{}, jerrors.NewNotFound("character", id)
	}
	gone := s.Characters[i]

	n := s.next()
	n.Characters = slices.Delete(slices.Clone(s.Characters), i, i+1)
	n.Relationships = slices.DeleteFunc(slices.Clone(s.Relationships), func(r Relationship) bool {
		return references(r, gone)
	})
	return n, newEvent(EventCharacterRemoved, n.Revision, map[string]string{
		"character_id":          gone.ID,
		"relationships_removed": strconv.Itoa(len(s.Relationships) - len(n.Relationships)),
	}), nil
}

// AddPlace appends a place.
func (s *State) AddPlace(p Place) (*State, Event, error) {
	p.ID = entityID(p.ID, p.XMLID, "place")
	if _, dup := s.Place(p.ID); dup {
		return nil, Event{}, &jerrors.ValidationError{Field: "id", Value: p.ID, Message: "duplicate place id"}
	}
	n := s.next()
	n.Places = append(slices.Clip(s.Places), p)
	return n, newEvent(EventPlaceAdded, n.Revision, map[string]string{
		"place_id": p.ID,
		"name":     p.Name,
	}), nil
}

// AddOrganization appends an organization.
func (s *State) AddOrganization(o Organization) (*State, Event, error) {
	o.ID = entityID(o.ID, o.XMLID, "org")
	if _, dup := s.Organization(o.ID); dup {
		return nil, Event{}, &jerrors.ValidationError{Field: "id", Value: o.ID, Message: "duplicate organization id"}
	}
	n := s.next()
	n.Organizations = append(slices.Clip(s.Organizations), o)
	return n, newEvent(EventOrganizationAdded, n.Revision, map[string]string{
		"organization_id": o.ID,
		"name":            o.Name,
	}), nil
}

// AddRelationship links two existing characters.
func (s *State) AddRelationship(r Relationship) (*State, Event, error) {
	r.From, r.To = stripRef(r.From), stripRef(r.To)
	for _, end := range []string{r.From, r.To} {
		if _, ok := s.Character(end); !ok {
			return nil, Event{}, jerrors.NewNotFound("character", end)
		}
	}
	if r.ID == "" {
		r.ID = "rel-" + newID()
	}
	if slices.ContainsFunc(s.Relationships, func(x Relationship) bool { return x.ID == r.ID }) {
		return nil, Event{}, &jerrors.ValidationError{Field: "id", Value: r.ID, Message: "duplicate relationship id"}
	}
	n := s.next()
	n.Relationships = append(slices.Clip(s.Relationships), r)
	return n, newEvent(EventRelationshipAdded, n.Revision, map[string]string{
		"relationship_id": r.ID,
		"type":            r.Type,
		"from":            r.From,
		"to":              r.To,
	}), nil
}

// RemoveRelationship removes a relationship by id.
func (s *State) RemoveRelationship(id string) (*State, Event, error) {
	i := slices.IndexFunc(s.Relationships, func(r Relationship) bool { return r.ID == id })
	if i < 0 {
		return nil, Event{}, jerrors.NewNotFound("relationship", id)
	}
	n := s.next()
	n.Relationships = slices.Delete(slices.Clone(s.Relationships), i, i+1)
	return n, newEvent(EventRelationshipRemoved, n.Revision, map[string]string{
		"relationship_id": id,
	}), nil
}

// IsDialogueTag reports whether a tag type is indexed as speech.
func IsDialogueTag(tagType string) bool {
	return tagType == "said" || tagType == "q"
}

// dialogueIndex lists speech tags with a speaker in document order.
func dialogueIndex(passages []Passage) []DialogueEntry {
	var out []DialogueEntry
	for _, p := range passages {
		for _, t := range p.Tags {
			if !IsDialogueTag(t.Type) || t.Attr("who") == "" {
				continue
			}
			out = append(out, DialogueEntry{
				TagID:     t.ID,
				PassageID: p.ID,
				Speaker:   stripRef(t.Attr("who")),
				Range:     t.Range,
			})
		}
	}
	return out
}

func replaceAt(passages []Passage, i int, p Passage) []Passage {
	out := slices.Clone(passages)
	out[i] = p
	return out
}

func references(r Relationship, c Character) bool {
	for _, end := range []string{r.From, r.To} {
		if end == c.ID || (c.XMLID != "" && end == c.XMLID) {
			return true
		}
	}
	return false
}

// entityID picks the stable id of an entity, minting prefix-uuid when
// neither id is set.
func entityID(id, xmlID, prefix string) string {
	switch {
	case id != "":
		return stripRef(id)
	case xmlID != "":
		return xmlID
	default:
		return prefix + "-" + newID()
	}
}

// stripRef removes the leading '#' of a local pointer.
func stripRef(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "#")
}
