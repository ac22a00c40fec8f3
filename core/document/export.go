package document

import (
	"sort"
	"strings"

	"github.com/FocuswithJustin/JuniperTag/core/encoding"
)

// Export renders the state as a TEI document. Tags are written inline in
// their passages; entity lists go to the header and standOff.
func (s *State) Export() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<TEI xmlns="` + NamespaceTEI + `">` + "\n")
	s.writeHeader(&b)
	s.writeStandOff(&b)

	b.WriteString("  <text>\n    <body>\n")
	for i := range s.Passages {
		writePassage(&b, &s.Passages[i])
	}
	b.WriteString("    </body>\n  </text>\n</TEI>\n")
	return []byte(b.String())
}

func (s *State) writeHeader(b *strings.Builder) {
	m := s.Metadata
	b.WriteString("  <teiHeader>\n    <fileDesc>\n      <titleStmt>\n")
	b.WriteString("        <title>" + encoding.EscapeXMLText(m.Title) + "</title>\n")
	if m.Author != "" {
		b.WriteString("        <author>" + encoding.EscapeXMLText(m.Author) + "</author>\n")
	}
	b.WriteString("      </titleStmt>\n")
	b.WriteString("      <publicationStmt><p/></publicationStmt>\n")
	b.WriteString("      <sourceDesc><p/></sourceDesc>\n")
	b.WriteString("    </fileDesc>\n")

	if m.Profile != "" {
		b.WriteString("    <encodingDesc>\n      <appInfo>\n")
		b.WriteString(`        <application ident="` + encoding.EscapeXMLAttr(m.Profile) + `" version="1"><label>JuniperTag</label></application>` + "\n")
		b.WriteString("      </appInfo>\n    </encodingDesc>\n")
	}

	if len(s.Characters) == 0 && len(s.Places) == 0 {
		b.WriteString("  </teiHeader>\n")
		return
	}
	b.WriteString("    <profileDesc>\n")
	if len(s.Characters) > 0 {
		b.WriteString("      <particDesc>\n        <listPerson>\n")
		for _, c := range s.Characters {
			b.WriteString("          <person" + idAttr(c.XMLID, c.ID))
			optAttr(b, "sex", c.Sex)
			optAttr(b, "age", c.Age)
			b.WriteString("><persName>" + encoding.EscapeXMLText(c.Name) + "</persName></person>\n")
		}
		b.WriteString("        </listPerson>\n      </particDesc>\n")
	}
	if len(s.Places) > 0 {
		b.WriteString("      <settingDesc>\n        <listPlace>\n")
		for _, p := range s.Places {
			b.WriteString("          <place" + idAttr(p.XMLID, p.ID))
			optAttr(b, "type", p.Type)
			b.WriteString("><placeName>" + encoding.EscapeXMLText(p.Name) + "</placeName></place>\n")
		}
		b.WriteString("        </listPlace>\n      </settingDesc>\n")
	}
	b.WriteString("    </profileDesc>\n  </teiHeader>\n")
}

func (s *State) writeStandOff(b *strings.Builder) {
	if len(s.Organizations) == 0 && len(s.Relationships) == 0 {
		return
	}
	b.WriteString("  <standOff>\n")
	if len(s.Organizations) > 0 {
		b.WriteString("    <listOrg>\n")
		for _, o := range s.Organizations {
			b.WriteString("      <org" + idAttr(o.XMLID, o.ID))
			optAttr(b, "type", o.Type)
			b.WriteString("><orgName>" + encoding.EscapeXMLText(o.Name) + "</orgName></org>\n")
		}
		b.WriteString("    </listOrg>\n")
	}
	if len(s.Relationships) > 0 {
		b.WriteString("    <listRelation>\n")
		for _, r := range s.Relationships {
			b.WriteString("      <relation" + idAttr("", r.ID))
			optAttr(b, "name", r.Type)
			if r.Mutual {
				optAttr(b, "mutual", "#"+r.From+" #"+r.To)
			} else {
				optAttr(b, "active", "#"+r.From)
				optAttr(b, "passive", "#"+r.To)
			}
			b.WriteString("/>\n")
		}
		b.WriteString("    </listRelation>\n")
	}
	b.WriteString("  </standOff>\n")
}

// writePassage writes the passage element with its tags inline. Tags are
// sorted and never overlap, so a single pass over the runes suffices.
func writePassage(b *strings.Builder, p *Passage) {
	el := p.Element
	if el == "" {
		el = "p"
	}
	runes := []rune(p.Content)
	b.WriteString("      <" + el + idAttr("", p.ID) + ">")

	pos := 0
	for _, t := range p.Tags {
		start := max(pos, min(t.Range.Start, len(runes)))
		end := max(start, min(t.Range.End, len(runes)))
		b.WriteString(encoding.EscapeXMLText(string(runes[pos:start])))

		b.WriteString("<" + t.Type + idAttr("", t.ID))
		keys := make([]string, 0, len(t.Attributes))
		for k := range t.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			optAttr(b, k, t.Attributes[k])
		}
		b.WriteString(">" + encoding.EscapeXMLText(string(runes[start:end])) + "</" + t.Type + ">")
		pos = end
	}
	b.WriteString(encoding.EscapeXMLText(string(runes[pos:])))
	b.WriteString("</" + el + ">\n")
}

// idAttr returns an xml:id attribute for the first id that is a valid
// NCName, or "".
func idAttr(ids ...string) string {
	for _, id := range ids {
		if isNCName(id) {
			return ` xml:id="` + encoding.EscapeXMLAttr(id) + `"`
		}
	}
	return ""
}

func optAttr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(" " + name + `="` + encoding.EscapeXMLAttr(value) + `"`)
}

func isNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r > 0x7f:
		case i > 0 && (r == '-' || r == '.' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}
