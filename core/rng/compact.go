package rng

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
)

// compactGrammar is the participle grammar for the compact syntax subset.
// Example:
//
//	datatypes xsd = "http://www.w3.org/2001/XMLSchema-datatypes"
//	start = said
//	said = element said { attribute who { xsd:IDREF }, attribute aloud { xsd:boolean }?, text }
//
//nolint:govet // participle grammar tags are not standard struct tags
type compactGrammar struct {
	Decls       []*compactDecl       `@@*`
	Definitions []*compactDefinition `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactDecl struct {
	Default bool   `@"default"?`
	Kind    string `@( "namespace" | "datatypes" )`
	Prefix  string `@Ident? "="`
	URI     string `@String`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactDefinition struct {
	Start  *compactStart  `  @@`
	Define *compactDefine `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactStart struct {
	Ref string `"start" "=" @Ident`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactDefine struct {
	Name    string          `@Ident "="`
	Element *compactElement `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactElement struct {
	Name string      `"element" @(Ident | QName) "{"`
	Body *compactSeq `@@? "}"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactSeq struct {
	First *compactItem   `@@`
	Rest  []*compactTail `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactTail struct {
	Sep  string       `@( "," | "&" | "|" )`
	Item *compactItem `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactItem struct {
	Attribute *compactAttribute `(  @@`
	Text      bool              ` | @"text"`
	Empty     bool              ` | @"empty"`
	Element   *compactElement   ` | @@`
	Group     *compactSeq       ` | "(" @@ ")"`
	Ref       string            ` | @Ident )`
	Suffix    string            `@( "?" | "*" | "+" )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type compactAttribute struct {
	Name   string   `"attribute" @(Ident | QName) "{"`
	Type   string   `( @QName`
	Text   bool     `| @"text"`
	Values []string `| @String ( "|" @String )*`
	Plain  string   `| @Ident )? "}"`
}

// choice returns true if the sequence alternates with "|".
func (s *compactSeq) choice() bool {
	for _, t := range s.Rest {
		if t.Sep == "|" {
			return true
		}
	}
	return false
}

func (s *compactSeq) items() []*compactItem {
	if s == nil || s.First == nil {
		return nil
	}
	out := []*compactItem{s.First}
	for _, t := range s.Rest {
		out = append(out, t.Item)
	}
	return out
}

// compactLexer defines the lexer for the compact syntax. QName must come
// before Ident so "xsd:IDREF" lexes as one token.
var compactLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "QName", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*:[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[{}(),=?*+|&]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// compactParser is the participle parser for the compact syntax.
var compactParser = participle.MustBuild[compactGrammar](
	participle.Lexer(compactLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// ParseCompact parses a grammar in RelaxNG compact syntax.
//
// Blank input and syntax errors fail with a *errors.SchemaFormatError.
// Declarations without definitions yield empty maps.
func ParseCompact(raw string) (*Constraints, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, jerrors.NewSchemaFormat("", "empty compact grammar")
	}
	parsed, err := compactParser.ParseString("", raw)
	if err != nil {
		return nil, &jerrors.SchemaFormatError{Message: "compact syntax error", Err: err}
	}

	b := newBuilder()
	for _, d := range parsed.Decls {
		b.skip(d.Kind, "grammar")
	}
	for _, def := range parsed.Definitions {
		switch {
		case def.Start != nil:
			b.skip("start", "grammar")
		case def.Define != nil:
			name := localName(def.Define.Element.Name)
			b.define(def.Define.Name, name)
			compactElementWalk(b, name, def.Define.Element)
		}
	}
	return b.finish(), nil
}

func compactElementWalk(b *builder, tag string, el *compactElement) {
	b.element(tag)
	compactSeqWalk(b, tag, el.Body, false)
}

func compactSeqWalk(b *builder, tag string, seq *compactSeq, optional bool) {
	if seq == nil {
		return
	}
	optional = optional || seq.choice()
	for _, item := range seq.items() {
		compactItemWalk(b, tag, item, optional)
	}
}

func compactItemWalk(b *builder, tag string, item *compactItem, optional bool) {
	if item.Suffix == "?" || item.Suffix == "*" {
		optional = true
	}
	switch {
	case item.Attribute != nil:
		a := item.Attribute
		typ := TypeString
		switch {
		case a.Type != "":
			typ = parseDataType(a.Type)
		case a.Plain != "":
			typ = parseDataType(a.Plain)
		case len(a.Values) > 0:
			typ = TypeToken
		}
		b.attribute(tag, localName(a.Name), optional, typ, a.Values)
	case item.Text:
		b.text(tag)
	case item.Empty:
	case item.Element != nil:
		name := localName(item.Element.Name)
		b.child(tag, name)
		compactElementWalk(b, name, item.Element)
	case item.Group != nil:
		compactSeqWalk(b, tag, item.Group, optional)
	case item.Ref != "":
		b.child(tag, item.Ref)
	}
}
