package document

import (
	"fmt"
	"testing"
	"time"
)

const novelTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt>
        <title>The   Pond</title>
        <author>A. Writer</author>
      </titleStmt>
    </fileDesc>
    <encodingDesc>
      <appInfo><application ident="tei-novel" version="1"/></appInfo>
    </encodingDesc>
    <profileDesc>
      <particDesc>
        <listPerson>
          <person xml:id="char-1" sex="F" age="30"><persName>Ann Lee</persName></person>
          <person xml:id="char-2"><persName>Bo</persName></person>
        </listPerson>
      </particDesc>
      <settingDesc>
        <listPlace>
          <place xml:id="pl-1" type="town"><placeName>Ely</placeName></place>
        </listPlace>
      </settingDesc>
    </profileDesc>
  </teiHeader>
  <standOff>
    <listOrg><org xml:id="org-1"><orgName>The Guild</orgName></org></listOrg>
    <listRelation>
      <relation name="sibling" mutual="#char-1 #char-2"/>
      <relation name="employs" active="#char-1" passive="#char-2"/>
    </listRelation>
  </standOff>
  <text>
    <body>
      <div>
        <p xml:id="p1">
          <said who="#char-1" aloud="true">Hello  there</said>, said <persName ref="#char-1">Ann</persName>.
        </p>
        <p>They walked to <placeName ref="#pl-1">Ely</placeName><lb/>together.</p>
      </div>
      <lg><l>A line with <q>a <persName>nested</persName> quote</q></l></lg>
    </body>
  </text>
</TEI>`

// pinIDs makes generated ids and timestamps deterministic for the test.
func pinIDs(t *testing.T) {
	t.Helper()
	oldID, oldClock := newID, clock
	n := 0
	newID = func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock = func() time.Time { return base }
	t.Cleanup(func() {
		newID, clock = oldID, oldClock
	})
}

// simpleState returns a state with one passage "Hello world" and one
// character.
func simpleState() *State {
	return &State{
		ID: "doc-1",
		Passages: []Passage{
			{ID: "p1", Index: 0, Content: "Hello world, said Ann."},
			{ID: "p2", Index: 1, Content: "Second passage."},
		},
		Characters: []Character{{ID: "char-1", XMLID: "char-1", Name: "Ann"}},
	}
}
