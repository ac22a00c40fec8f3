package rng

import (
	"encoding/json"
	"sort"
	"strings"
)

// DataType is the value type of an attribute, taken from the XSD datatype
// library names used by `data type="..."`.
type DataType string

// Data type constants.
const (
	TypeString  DataType = "string"
	TypeIDREF   DataType = "IDREF"
	TypeIDREFS  DataType = "IDREFS"
	TypeID      DataType = "ID"
	TypeBoolean DataType = "boolean"
	TypeInteger DataType = "integer"
	TypeAnyURI  DataType = "anyURI"
	TypeToken   DataType = "token"
	TypeNCName  DataType = "NCName"
)

// knownTypes is the set of data types the validator understands.
var knownTypes = map[DataType]bool{
	TypeString:  true,
	TypeIDREF:   true,
	TypeIDREFS:  true,
	TypeID:      true,
	TypeBoolean: true,
	TypeInteger: true,
	TypeAnyURI:  true,
	TypeToken:   true,
	TypeNCName:  true,
}

// IsKnown returns true if the data type has validator support. Unknown
// names are preserved verbatim and treated like strings.
func (d DataType) IsKnown() bool {
	return knownTypes[d]
}

// IsReference returns true for types whose values point at entity ids.
func (d DataType) IsReference() bool {
	return d == TypeIDREF || d == TypeIDREFS
}

// parseDataType strips a datatype library prefix ("xsd:IDREF") and
// defaults to string.
func parseDataType(s string) DataType {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return TypeString
	}
	return DataType(s)
}

// Set is an unordered set of names.
type Set map[string]struct{}

// NewSet returns a set holding names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name.
func (s Set) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is present.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}

// TagConstraint lists the attributes a tag requires and permits.
type TagConstraint struct {
	Name               string `json:"name"`
	RequiredAttributes Set    `json:"required_attributes"`
	OptionalAttributes Set    `json:"optional_attributes"`
}

// Declares returns true if attr is required or optional on the tag.
func (t *TagConstraint) Declares(attr string) bool {
	return t.RequiredAttributes.Has(attr) || t.OptionalAttributes.Has(attr)
}

// AttributeConstraint describes the value space of one tag attribute.
type AttributeConstraint struct {
	Tag  string   `json:"tag"`
	Name string   `json:"name"`
	Type DataType `json:"type"`

	// Values is the ordered list of permitted literals for enumerated
	// attributes; empty means unrestricted.
	Values []string `json:"values,omitempty"`
}

// Permits returns true if value is in the enumerated value list, or the
// attribute is not enumerated.
func (a *AttributeConstraint) Permits(value string) bool {
	if len(a.Values) == 0 {
		return true
	}
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

// ContentModel describes what may appear inside a tag.
type ContentModel struct {
	// AllowedChildren holds ref targets (define names) and inline element names.
	AllowedChildren Set  `json:"allowed_children"`
	TextOnly        bool `json:"text_only"`
	Mixed           bool `json:"mixed,omitempty"`
	Empty           bool `json:"empty,omitempty"`
}

// Skipped records a grammar construct the parser ignored.
type Skipped struct {
	Construct string `json:"construct"`
	Context   string `json:"context"`
}

// Constraints is the in-memory constraint model derived from a grammar.
// A value is never modified after parsing completes; cached instances are
// shared between goroutines.
type Constraints struct {
	Tags          map[string]*TagConstraint       `json:"tags"`
	Attributes    map[string]*AttributeConstraint `json:"attributes"`
	ContentModels map[string]*ContentModel        `json:"content_models"`

	// Defines maps define names to the element name they wrap.
	Defines map[string]string `json:"defines"`

	// Skipped lists every construct the lenient walk did not model, in
	// document order.
	Skipped []Skipped `json:"skipped,omitempty"`
}

// AttributeKey returns the "tag.attr" key used by Constraints.Attributes.
func AttributeKey(tag, attr string) string {
	return tag + "." + attr
}

// newConstraints returns an empty constraint model.
func newConstraints() *Constraints {
	return &Constraints{
		Tags:          make(map[string]*TagConstraint),
		Attributes:    make(map[string]*AttributeConstraint),
		ContentModels: make(map[string]*ContentModel),
		Defines:       make(map[string]string),
	}
}

// Lookup returns the tag constraint for name, or nil if the grammar does not
// declare it.
func (c *Constraints) Lookup(name string) *TagConstraint {
	if c == nil {
		return nil
	}
	return c.Tags[name]
}

// Attribute returns the constraint for tag.attr, or nil.
func (c *Constraints) Attribute(tag, attr string) *AttributeConstraint {
	if c == nil {
		return nil
	}
	return c.Attributes[AttributeKey(tag, attr)]
}

// AllowsChild reports whether child may be nested inside parent. Tags
// without a content model are unconstrained.
func (c *Constraints) AllowsChild(parent, child string) bool {
	if c == nil {
		return true
	}
	cm, ok := c.ContentModels[parent]
	if !ok {
		return true
	}
	if cm.AllowedChildren.Has(child) {
		return true
	}
	for name := range cm.AllowedChildren {
		if c.Defines[name] == child {
			return true
		}
	}
	return false
}
