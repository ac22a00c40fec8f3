package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
)

func TestAddTag_RevisionAndEvent(t *testing.T) {
	pinIDs(t)
	s0 := simpleState()

	s1, ev, err := s0.AddTag("p1", TextRange{0, 11}, "said", map[string]string{"who": "#char-1"})
	if err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	if s1.Revision != s0.Revision+1 {
		t.Errorf("Revision = %d, want %d", s1.Revision, s0.Revision+1)
	}
	if ev.Type != EventTagAdded || ev.Revision != s1.Revision {
		t.Errorf("event = %+v", ev)
	}
	if ev.Payload["passage_id"] != "p1" || ev.Payload["start"] != "0" || ev.Payload["end"] != "11" {
		t.Errorf("payload = %v", ev.Payload)
	}

	p, _ := s1.Passage("p1")
	if len(p.Tags) != 1 || p.Tags[0].ID != "tag-id1" {
		t.Fatalf("tags = %+v", p.Tags)
	}
	want := []DialogueEntry{{TagID: "tag-id1", PassageID: "p1", Speaker: "char-1", Range: TextRange{0, 11}}}
	if diff := cmp.Diff(want, s1.Dialogue); diff != "" {
		t.Errorf("dialogue mismatch (-want +got):\n%s", diff)
	}

	// The previous state is untouched.
	if p0, _ := s0.Passage("p1"); len(p0.Tags) != 0 {
		t.Error("AddTag modified the previous state")
	}
	if s0.Revision != 0 || len(s0.Dialogue) != 0 {
		t.Error("previous revision changed")
	}
}

func TestAddTag_CopiesAttributes(t *testing.T) {
	attrs := map[string]string{"who": "#char-1"}
	s1, _, err := simpleState().AddTag("p1", TextRange{0, 5}, "said", attrs)
	if err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	attrs["who"] = "#changed"
	p, _ := s1.Passage("p1")
	if got := p.Tags[0].Attr("who"); got != "#char-1" {
		t.Errorf("tag attribute aliased caller map: %q", got)
	}
}

func TestInsertTag_Errors(t *testing.T) {
	s, _, err := simpleState().InsertTag("p1", Tag{ID: "t1", Type: "said", Range: TextRange{0, 5}})
	if err != nil {
		t.Fatalf("InsertTag() error = %v", err)
	}

	tests := []struct {
		name      string
		passageID string
		tag       Tag
		target    error
	}{
		{"unknown passage", "p9", Tag{Type: "said", Range: TextRange{0, 1}}, jerrors.ErrNotFound},
		{"out of range", "p1", Tag{Type: "said", Range: TextRange{0, 99}}, jerrors.ErrInvalidInput},
		{"inverted", "p1", Tag{Type: "said", Range: TextRange{4, 2}}, jerrors.ErrInvalidInput},
		{"no type", "p1", Tag{Range: TextRange{6, 7}}, jerrors.ErrInvalidInput},
		{"duplicate id", "p1", Tag{ID: "t1", Type: "q", Range: TextRange{8, 9}}, jerrors.ErrInvalidInput},
		{"overlap", "p1", Tag{ID: "t2", Type: "q", Range: TextRange{3, 8}}, jerrors.ErrOverlap},
		{"nested", "p1", Tag{ID: "t3", Type: "q", Range: TextRange{1, 2}}, jerrors.ErrOverlap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := s.InsertTag(tt.passageID, tt.tag)
			if !errors.Is(err, tt.target) {
				t.Errorf("InsertTag() error = %v, want %v", err, tt.target)
			}
			if next != nil {
				t.Error("failed InsertTag returned a state")
			}
		})
	}

	var oe *jerrors.OverlapError
	_, _, err = s.InsertTag("p1", Tag{ID: "t2", Type: "q", Range: TextRange{3, 8}})
	if !errors.As(err, &oe) || oe.ConflictID != "t1" || oe.PassageID != "p1" {
		t.Errorf("overlap error = %#v", err)
	}
}

func TestInsertTag_OrderingAndNoOverlap(t *testing.T) {
	s := simpleState()
	inserts := []Tag{
		{ID: "c", Type: "q", Range: TextRange{12, 16}},
		{ID: "a", Type: "q", Range: TextRange{0, 5}},
		{ID: "z1", Type: "q", Range: TextRange{6, 6}},
		{ID: "z2", Type: "q", Range: TextRange{6, 6}},
		{ID: "b", Type: "q", Range: TextRange{6, 11}},
	}
	for _, tag := range inserts {
		var err error
		s, _, err = s.InsertTag("p1", tag)
		if err != nil {
			t.Fatalf("InsertTag(%s) error = %v", tag.ID, err)
		}
	}

	p, _ := s.Passage("p1")
	var got []string
	for _, tag := range p.Tags {
		got = append(got, tag.ID)
	}
	if diff := cmp.Diff([]string{"a", "z1", "z2", "b", "c"}, got); diff != "" {
		t.Errorf("tag order mismatch (-want +got):\n%s", diff)
	}
	for i := range p.Tags {
		for j := i + 1; j < len(p.Tags); j++ {
			if p.Tags[i].Range.Overlaps(p.Tags[j].Range) {
				t.Errorf("tags %s and %s overlap", p.Tags[i].ID, p.Tags[j].ID)
			}
		}
	}
	if s.Revision != len(inserts) {
		t.Errorf("Revision = %d, want %d", s.Revision, len(inserts))
	}
}

func TestRemoveTag(t *testing.T) {
	s1, _, _ := simpleState().InsertTag("p1", Tag{ID: "t1", Type: "said", Range: TextRange{0, 5}, Attributes: map[string]string{"who": "#char-1"}})
	s2, ev, err := s1.RemoveTag("p1", "t1")
	if err != nil {
		t.Fatalf("RemoveTag() error = %v", err)
	}
	if ev.Type != EventTagRemoved || s2.Revision != 2 {
		t.Errorf("event %s at revision %d", ev.Type, s2.Revision)
	}
	if p, _ := s2.Passage("p1"); len(p.Tags) != 0 || len(s2.Dialogue) != 0 {
		t.Error("tag or dialogue entry survived removal")
	}
	if p, _ := s1.Passage("p1"); len(p.Tags) != 1 {
		t.Error("RemoveTag modified the previous state")
	}
	if _, _, err := s2.RemoveTag("p1", "t1"); !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("RemoveTag(missing) error = %v", err)
	}
}

func TestCharacters(t *testing.T) {
	pinIDs(t)
	s0 := simpleState()

	s1, ev, err := s0.AddCharacter(Character{Name: "Bo"})
	if err != nil {
		t.Fatalf("AddCharacter() error = %v", err)
	}
	if ev.Type != EventCharacterAdded || ev.Payload["character_id"] != "char-id1" {
		t.Errorf("event = %+v", ev)
	}
	if _, _, err := s1.AddCharacter(Character{ID: "#char-1"}); !errors.Is(err, jerrors.ErrInvalidInput) {
		t.Errorf("duplicate AddCharacter error = %v", err)
	}
	if len(s0.Characters) != 1 {
		t.Error("AddCharacter modified the previous state")
	}

	s2, _, err := s1.AddRelationship(Relationship{Type: "friend", From: "#char-1", To: "char-id1"})
	if err != nil {
		t.Fatalf("AddRelationship() error = %v", err)
	}
	if _, _, err := s2.AddRelationship(Relationship{From: "char-1", To: "ghost"}); !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("AddRelationship(ghost) error = %v", err)
	}

	s3, ev, err := s2.RemoveCharacter("char-id1")
	if err != nil {
		t.Fatalf("RemoveCharacter() error = %v", err)
	}
	if len(s3.Characters) != 1 || len(s3.Relationships) != 0 {
		t.Errorf("after removal: %d characters, %d relationships", len(s3.Characters), len(s3.Relationships))
	}
	if ev.Payload["relationships_removed"] != "1" || s3.Revision != 3 {
		t.Errorf("event = %+v at revision %d", ev, s3.Revision)
	}
	if len(s2.Relationships) != 1 {
		t.Error("RemoveCharacter modified the previous state")
	}
	if _, _, err := s3.RemoveCharacter("char-id1"); !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("RemoveCharacter(missing) error = %v", err)
	}
}

func TestRelationshipsAndOtherEntities(t *testing.T) {
	s := simpleState()
	s, _, err := s.AddCharacter(Character{ID: "char-2", Name: "Bo"})
	if err != nil {
		t.Fatal(err)
	}
	s, _, err = s.AddRelationship(Relationship{ID: "r1", Type: "sibling", From: "char-1", To: "char-2", Mutual: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AddRelationship(Relationship{ID: "r1", From: "char-1", To: "char-2"}); !errors.Is(err, jerrors.ErrInvalidInput) {
		t.Errorf("duplicate relationship error = %v", err)
	}
	s, ev, err := s.RemoveRelationship("r1")
	if err != nil || ev.Type != EventRelationshipRemoved {
		t.Fatalf("RemoveRelationship() = %v, %v", ev.Type, err)
	}
	if _, _, err := s.RemoveRelationship("r1"); !errors.Is(err, jerrors.ErrNotFound) {
		t.Errorf("RemoveRelationship(missing) error = %v", err)
	}

	s, _, err = s.AddPlace(Place{XMLID: "pl-1", Name: "Ely"})
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := s.Place("pl-1"); !ok || p.ID != "pl-1" {
		t.Errorf("Place(pl-1) = %+v, %v", p, ok)
	}
	s, _, err = s.AddOrganization(Organization{ID: "org-1", Name: "Guild"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.AddOrganization(Organization{ID: "org-1"}); !errors.Is(err, jerrors.ErrInvalidInput) {
		t.Errorf("duplicate organization error = %v", err)
	}
	if s.Revision != 5 {
		t.Errorf("Revision = %d, want 5", s.Revision)
	}
}
