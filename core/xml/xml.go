// Package xml provides pure Go XML parsing and XPath navigation for TEI
// documents and RelaxNG grammars.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities, and CheckWellFormed disables
//     entity expansion explicitly.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// NamespaceXML is the namespace bound to the reserved xml: prefix.
const NamespaceXML = "http://www.w3.org/XML/1998/namespace"

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node represents an XML node (element, text, attribute, etc.).
type Node struct {
	node *xmlquery.Node
}

// SyntaxError describes the first well-formedness violation in a document.
type SyntaxError struct {
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses XML text and returns a Document.
func ParseString(s string) (*Document, error) {
	root, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// CheckWellFormed reports the first well-formedness error in data, or nil.
//
// Security: entity expansion is disabled (CWE-611).
func CheckWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	sawElement := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return &SyntaxError{Line: se.Line, Message: se.Msg}
			}
			return &SyntaxError{Message: err.Error()}
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return &SyntaxError{Message: "no root element"}
	}
	return nil
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d == nil || d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// Expr is a compiled XPath expression.
type Expr = xpath.Expr

// Compile compiles an XPath expression for use with Select.
func Compile(expr string) (*Expr, error) {
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return e, nil
}

// MustCompile is like Compile but panics if the expression is invalid.
// It is meant for package-level expressions.
func MustCompile(expr string) *Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// Select returns the nodes matching expr in document order.
// Unprefixed names match elements in the default namespace.
func (d *Document) Select(expr *Expr) []*Node {
	if d == nil || d.root == nil {
		return nil
	}
	nodes := xmlquery.QuerySelectorAll(d.root, expr)
	if len(nodes) == 0 {
		return nil
	}
	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result
}

// SelectFirst returns the first node matching expr, or nil.
func (d *Document) SelectFirst(expr *Expr) *Node {
	if d == nil || d.root == nil {
		return nil
	}
	if n := xmlquery.QuerySelector(d.root, expr); n != nil {
		return &Node{node: n}
	}
	return nil
}

// Name returns the local element name.
func (n *Node) Name() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.Data
}

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool {
	return n != nil && n.node != nil && n.node.Type == xmlquery.ElementNode
}

// IsText reports whether the node carries character data.
func (n *Node) IsText() bool {
	if n == nil || n.node == nil {
		return false
	}
	return n.node.Type == xmlquery.TextNode || n.node.Type == xmlquery.CharDataNode
}

// Data returns the raw character data of a text node.
func (n *Node) Data() string {
	if !n.IsText() {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n == nil || n.node == nil {
		return nil
	}

	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Content returns element and text children in document order. Comments and
// processing instructions are skipped.
func (n *Node) Content() []*Node {
	if n == nil || n.node == nil {
		return nil
	}

	var content []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode, xmlquery.TextNode, xmlquery.CharDataNode:
			content = append(content, &Node{node: child})
		}
	}
	return content
}

// Child returns the first child element with the given local name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Attributes returns all attributes of the node keyed by local name.
// Namespace declarations are omitted.
func (n *Node) Attributes() map[string]string {
	if n == nil || n.node == nil {
		return nil
	}

	attrs := make(map[string]string)
	for _, attr := range n.node.Attr {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		attrs[attr.Name.Local] = attr.Value
	}
	return attrs
}

// Attr returns the value of a specific attribute.
func (n *Node) Attr(name string) string {
	if n == nil || n.node == nil {
		return ""
	}
	return n.node.SelectAttr(name)
}

// ID returns the xml:id of the element. Parsers differ in whether the
// attribute space carries the prefix or the namespace URI, so both are
// accepted; a bare id attribute is the fallback.
func (n *Node) ID() string {
	if n == nil || n.node == nil {
		return ""
	}
	bare := ""
	for _, attr := range n.node.Attr {
		if attr.Name.Local != "id" {
			continue
		}
		switch attr.Name.Space {
		case "xml", NamespaceXML:
			return attr.Value
		case "":
			bare = attr.Value
		}
		if attr.NamespaceURI == NamespaceXML {
			return attr.Value
		}
	}
	return bare
}
