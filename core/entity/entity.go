// Package entity maps tag attributes to entity categories and projects
// the matching entities out of a document state.
package entity

import (
	"strings"

	"github.com/FocuswithJustin/JuniperTag/core/document"
)

// Type is a semantic entity category.
type Type string

// Entity categories. None means the attribute does not reference an entity.
const (
	None         Type = ""
	Character    Type = "character"
	Place        Type = "place"
	Organization Type = "organization"
)

// Kind is the closed vocabulary of tags with known attribute semantics.
type Kind int

// Known tag kinds. Anything else is KindUnconstrained.
const (
	KindUnconstrained Kind = iota
	KindSaid
	KindQ
	KindPersName
	KindPlaceName
	KindOrgName
)

var kindNames = map[string]Kind{
	"said":      KindSaid,
	"q":         KindQ,
	"persName":  KindPersName,
	"placeName": KindPlaceName,
	"orgName":   KindOrgName,
}

// KindOf classifies a tag name.
func KindOf(tagName string) Kind {
	return kindNames[tagName]
}

func (k Kind) String() string {
	switch k {
	case KindSaid:
		return "said"
	case KindQ:
		return "q"
	case KindPersName:
		return "persName"
	case KindPlaceName:
		return "placeName"
	case KindOrgName:
		return "orgName"
	default:
		return "unconstrained"
	}
}

// DetectType returns the entity category referenced by tagName's attrName,
// or None.
func DetectType(tagName, attrName string) Type {
	switch KindOf(tagName) {
	case KindSaid, KindQ:
		if attrName == "who" {
			return Character
		}
	case KindPersName:
		if attrName == "ref" || attrName == "key" {
			return Character
		}
	case KindPlaceName:
		if attrName == "ref" || attrName == "key" {
			return Place
		}
	case KindOrgName:
		if attrName == "ref" || attrName == "key" {
			return Organization
		}
	case KindUnconstrained:
	}
	return None
}

// Entity is the category-independent view of a document entity.
type Entity struct {
	ID    string `json:"id"`
	XMLID string `json:"xml_id,omitempty"`
	Name  string `json:"name"`
	Type  Type   `json:"type"`
}

// Matches reports whether ref (with or without '#') names this entity.
func (e Entity) Matches(ref string) bool {
	ref = StripRef(ref)
	return ref != "" && (ref == e.ID || (e.XMLID != "" && ref == e.XMLID))
}

// Entities returns the entities of typ in document order. None yields nil.
func Entities(s *document.State, typ Type) []Entity {
	if s == nil {
		return nil
	}
	var out []Entity
	switch typ {
	case Character:
		for _, c := range s.Characters {
			out = append(out, Entity{ID: c.ID, XMLID: c.XMLID, Name: c.Name, Type: Character})
		}
	case Place:
		for _, p := range s.Places {
			out = append(out, Entity{ID: p.ID, XMLID: p.XMLID, Name: p.Name, Type: Place})
		}
	case Organization:
		for _, o := range s.Organizations {
			out = append(out, Entity{ID: o.ID, XMLID: o.XMLID, Name: o.Name, Type: Organization})
		}
	case None:
	}
	return out
}

// Find returns the entity of typ that ref points at.
func Find(s *document.State, typ Type, ref string) (Entity, bool) {
	for _, e := range Entities(s, typ) {
		if e.Matches(ref) {
			return e, true
		}
	}
	return Entity{}, false
}

// IDs returns the ids of entities in order.
func IDs(entities []Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

// StripRef removes whitespace and a leading '#' from a local pointer.
func StripRef(ref string) string {
	return strings.TrimPrefix(strings.TrimSpace(ref), "#")
}
