// Package encoding provides shared text escaping and normalization for TEI
// serialization.
package encoding

import (
	"strings"
	"unicode"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\n", "&#10;",
	"\t", "&#9;",
)

// EscapeXMLText escapes the basic XML entities for element text content.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeXMLAttr escapes text for use in a double-quoted XML attribute.
// Newlines and tabs are written as character references so they survive
// attribute value normalization.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(s)
}

// NormalizeSpace collapses every run of whitespace to a single space and
// trims the ends, mirroring XPath normalize-space().
func NormalizeSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// CollapseSpace collapses whitespace runs to a single space without trimming.
// It is used while flattening mixed content, where a leading or trailing
// space is significant to the offsets of the following text node.
func CollapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
