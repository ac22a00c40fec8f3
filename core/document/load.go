package document

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/JuniperTag/core/encoding"
	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	xmlpkg "github.com/FocuswithJustin/JuniperTag/core/xml"
)

// NamespaceTEI is the TEI P5 namespace.
const NamespaceTEI = "http://www.tei-c.org/ns/1.0"

// InlineTags are the elements Load converts to stand-off tags.
var InlineTags = map[string]bool{
	"said":      true,
	"q":         true,
	"persName":  true,
	"placeName": true,
	"orgName":   true,
}

var (
	bodyExpr        = xmlpkg.MustCompile("//body")
	titleStmtExpr   = xmlpkg.MustCompile("//teiHeader//titleStmt")
	applicationExpr = xmlpkg.MustCompile("//teiHeader//application")
	personExpr      = xmlpkg.MustCompile("//listPerson/person")
	placeExpr       = xmlpkg.MustCompile("//listPlace/place")
	orgExpr         = xmlpkg.MustCompile("//listOrg/org")
	relationExpr    = xmlpkg.MustCompile("//listRelation/relation")
)

// passageElements are the body elements that become passages.
var passageElements = map[string]bool{
	"p":  true,
	"ab": true,
	"l":  true,
}

// Load parses a TEI document into revision 0.
//
// Inline said, q, persName, placeName and orgName elements become tags over
// the whitespace-collapsed passage text. An inline element nested inside
// another contributes text only, since committed tags never overlap.
//
// The document id is the root xml:id when present, otherwise derived from
// the source hash, so reloading the same file yields the same id.
func Load(data []byte) (*State, error) {
	if err := xmlpkg.CheckWellFormed(data); err != nil {
		return nil, &jerrors.ValidationError{Field: "xml", Message: "document is not well-formed XML", Err: err}
	}
	doc, err := xmlpkg.Parse(data)
	if err != nil {
		return nil, jerrors.Wrap(err, "parse TEI")
	}
	root := doc.Root()
	if root == nil || root.Name() != "TEI" {
		return nil, &jerrors.ValidationError{
			Field:   "root",
			Value:   root.Name(),
			Message: "document root must be TEI",
		}
	}

	hash := HashSource(data)
	id := root.ID()
	if id == "" {
		id = "doc-" + hash[:16]
	}
	s := &State{
		ID:       id,
		XML:      string(data),
		Revision: 0,
		Parsed:   doc,
		Metadata: loadMetadata(doc, root),
	}
	s.Metadata.SourceHash = hash
	s.Metadata.LoadedAt = clock().UTC()

	s.Characters = loadCharacters(doc)
	s.Places = loadPlaces(doc)
	s.Organizations = loadOrganizations(doc)
	s.Relationships = loadRelationships(doc)

	if body := doc.SelectFirst(bodyExpr); body != nil {
		collectPassages(body, &s.Passages)
	} else if text := root.Child("text"); text != nil {
		collectPassages(text, &s.Passages)
	}
	s.Dialogue = dialogueIndex(s.Passages)
	return s, nil
}

func loadMetadata(doc *xmlpkg.Document, root *xmlpkg.Node) Metadata {
	var m Metadata
	if stmt := doc.SelectFirst(titleStmtExpr); stmt != nil {
		m.Title = encoding.NormalizeSpace(stmt.Child("title").Text())
		m.Author = encoding.NormalizeSpace(stmt.Child("author").Text())
	}
	if app := doc.SelectFirst(applicationExpr); app != nil {
		m.Profile = app.Attr("ident")
	}
	if m.Profile == "" {
		m.Profile = root.Attr("profile")
	}
	return m
}

func loadCharacters(doc *xmlpkg.Document) []Character {
	var out []Character
	for _, person := range doc.Select(personExpr) {
		id := person.ID()
		out = append(out, Character{
			ID:    entityID("", id, "char"),
			XMLID: id,
			Name:  entityName(person, "persName"),
			Sex:   person.Attr("sex"),
			Age:   person.Attr("age"),
		})
	}
	return out
}

func loadPlaces(doc *xmlpkg.Document) []Place {
	var out []Place
	for _, place := range doc.Select(placeExpr) {
		id := place.ID()
		out = append(out, Place{
			ID:    entityID("", id, "place"),
			XMLID: id,
			Name:  entityName(place, "placeName"),
			Type:  place.Attr("type"),
		})
	}
	return out
}

func loadOrganizations(doc *xmlpkg.Document) []Organization {
	var out []Organization
	for _, org := range doc.Select(orgExpr) {
		id := org.ID()
		out = append(out, Organization{
			ID:    entityID("", id, "org"),
			XMLID: id,
			Name:  entityName(org, "orgName"),
			Type:  org.Attr("type"),
		})
	}
	return out
}

// loadRelationships reads relation elements in either the active/passive
// or the mutual form.
func loadRelationships(doc *xmlpkg.Document) []Relationship {
	var out []Relationship
	for _, rel := range doc.Select(relationExpr) {
		r := Relationship{
			ID:   entityID("", rel.ID(), "rel"),
			Type: rel.Attr("name"),
		}
		if r.Type == "" {
			r.Type = rel.Attr("type")
		}
		if mutual := strings.Fields(rel.Attr("mutual")); len(mutual) >= 2 {
			r.From, r.To, r.Mutual = stripRef(mutual[0]), stripRef(mutual[1]), true
		} else {
			r.From, r.To = stripRef(rel.Attr("active")), stripRef(rel.Attr("passive"))
		}
		if r.From == "" || r.To == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func entityName(n *xmlpkg.Node, nameElement string) string {
	if name := n.Child(nameElement); name != nil {
		return encoding.NormalizeSpace(name.Text())
	}
	if name := n.Attr("n"); name != "" {
		return name
	}
	return encoding.NormalizeSpace(n.Text())
}

func collectPassages(n *xmlpkg.Node, out *[]Passage) {
	for _, c := range n.Children() {
		if !c.IsElement() {
			continue
		}
		if passageElements[c.Name()] {
			*out = append(*out, flattenPassage(c, len(*out)))
			continue
		}
		collectPassages(c, out)
	}
}

// flattener builds passage text with collapsed whitespace and records
// inline tags against rune offsets.
type flattener struct {
	runes   []rune
	pending bool
	tags    []Tag
}

func flattenPassage(n *xmlpkg.Node, index int) Passage {
	f := &flattener{}
	f.walk(n, false)

	id := n.ID()
	if id == "" {
		id = fmt.Sprintf("passage-%d", index+1)
	}
	return Passage{
		ID:      id,
		Index:   index,
		Content: string(f.runes),
		Tags:    f.tags,
		Element: n.Name(),
	}
}

func (f *flattener) walk(n *xmlpkg.Node, inTag bool) {
	for _, c := range n.Content() {
		if c.IsText() {
			f.text(c.Data())
			continue
		}
		switch {
		case c.Name() == "lb":
			f.space()
		case InlineTags[c.Name()] && !inTag:
			f.flush()
			start := len(f.runes)
			f.walk(c, true)
			if start < len(f.runes) && f.runes[start] == ' ' {
				start++
			}
			f.tags = append(f.tags, inlineTag(c, TextRange{Start: start, End: len(f.runes)}))
		default:
			f.walk(c, inTag)
		}
	}
}

func (f *flattener) text(s string) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			f.space()
			continue
		}
		f.flush()
		f.runes = append(f.runes, r)
	}
}

// space marks a pending separator. Leading space and space following an
// emitted separator are dropped.
func (f *flattener) space() {
	if n := len(f.runes); n > 0 && f.runes[n-1] != ' ' {
		f.pending = true
	}
}

func (f *flattener) flush() {
	if f.pending {
		f.runes = append(f.runes, ' ')
		f.pending = false
	}
}

func inlineTag(n *xmlpkg.Node, r TextRange) Tag {
	attrs := n.Attributes()
	id := n.ID()
	if id != "" {
		delete(attrs, "id")
	} else {
		id = "tag-" + newID()
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return Tag{ID: id, Type: n.Name(), Range: r, Attributes: attrs}
}
