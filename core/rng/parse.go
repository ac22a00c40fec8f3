// Package rng turns a constrained RelaxNG dialect into an in-memory
// constraint model.
//
// Only define, element, attribute, optional, data, ref and text carry
// meaning, plus a few neighbours (choice, zeroOrMore, oneOrMore, group,
// interleave, mixed, empty, value, div). Anything else is ignored and listed
// in Constraints.Skipped, so callers can see what a lenient parse dropped.
package rng

import (
	"strings"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
	"github.com/FocuswithJustin/JuniperTag/core/xml"
)

// Parse parses a grammar in RelaxNG XML syntax.
//
// It fails with a *errors.SchemaFormatError when the text is not XML or its
// root element is not grammar. An empty grammar yields empty maps.
func Parse(raw string) (*Constraints, error) {
	if err := xml.CheckWellFormed([]byte(raw)); err != nil {
		return nil, &jerrors.SchemaFormatError{Message: "no grammar root element", Err: err}
	}
	doc, err := xml.ParseString(raw)
	if err != nil {
		return nil, &jerrors.SchemaFormatError{Message: "no grammar root element", Err: err}
	}
	root := doc.Root()
	if root == nil || root.Name() != "grammar" {
		return nil, jerrors.NewSchemaFormat("", "no grammar root element")
	}

	b := newBuilder()
	walkGrammar(b, root)
	return b.finish(), nil
}

// walkGrammar visits top-level grammar content. div only groups
// definitions, so it is walked transparently.
func walkGrammar(b *builder, grammar *xml.Node) {
	for _, n := range grammar.Children() {
		switch n.Name() {
		case "define":
			walkDefine(b, n)
		case "div":
			walkGrammar(b, n)
		default:
			b.skip(n.Name(), "grammar")
		}
	}
}

func walkDefine(b *builder, def *xml.Node) {
	defName := def.Attr("name")
	for _, n := range def.Children() {
		if n.Name() != "element" {
			b.skip(n.Name(), "define "+defName)
			continue
		}
		name := elementName(n)
		if name == "" {
			b.skip("element", "define "+defName)
			continue
		}
		b.define(defName, name)
		walkElement(b, name, n)
	}
}

// elementName returns the name attribute, or the text of a <name> child.
func elementName(el *xml.Node) string {
	if name := el.Attr("name"); name != "" {
		return localName(name)
	}
	if n := el.Child("name"); n != nil {
		return localName(strings.TrimSpace(n.Text()))
	}
	return ""
}

// localName drops a namespace prefix; namespaces are not resolved.
func localName(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func walkElement(b *builder, tag string, el *xml.Node) {
	b.element(tag)
	for _, n := range el.Children() {
		walkPattern(b, tag, n, false)
	}
}

// walkPattern handles one content pattern of tag. optional is true when the
// pattern sits under optional, zeroOrMore or choice.
func walkPattern(b *builder, tag string, n *xml.Node, optional bool) {
	switch n.Name() {
	case "name":
		// Consumed by elementName.
	case "attribute":
		walkAttribute(b, tag, n, optional)
	case "optional", "zeroOrMore", "choice":
		for _, c := range n.Children() {
			walkPattern(b, tag, c, true)
		}
	case "oneOrMore", "group", "interleave":
		for _, c := range n.Children() {
			walkPattern(b, tag, c, optional)
		}
	case "mixed":
		b.mixed(tag)
		for _, c := range n.Children() {
			walkPattern(b, tag, c, optional)
		}
	case "text", "data", "value":
		b.text(tag)
	case "empty":
		// An empty pattern adds nothing to the model.
	case "ref", "parentRef":
		b.child(tag, n.Attr("name"))
	case "element":
		name := elementName(n)
		if name == "" {
			b.skip("element", tag)
			return
		}
		b.child(tag, name)
		walkElement(b, name, n)
	default:
		b.skip(n.Name(), tag)
	}
}

func walkAttribute(b *builder, tag string, attr *xml.Node, optional bool) {
	name := attr.Attr("name")
	if name == "" {
		if n := attr.Child("name"); n != nil {
			name = strings.TrimSpace(n.Text())
		}
	}
	if name == "" {
		b.skip("attribute", tag)
		return
	}

	typ := TypeString
	var values []string
	for _, c := range attr.Children() {
		switch c.Name() {
		case "name":
		case "data":
			typ = parseDataType(c.Attr("type"))
		case "text":
			typ = TypeString
		case "value":
			values = append(values, strings.TrimSpace(c.Text()))
			typ = TypeToken
		case "choice":
			for _, v := range c.Children() {
				if v.Name() == "value" {
					values = append(values, strings.TrimSpace(v.Text()))
					typ = TypeToken
				} else {
					b.skip(v.Name(), AttributeKey(tag, name))
				}
			}
		default:
			b.skip(c.Name(), AttributeKey(tag, name))
		}
	}
	b.attribute(tag, localName(name), optional, typ, values)
}
