package xml

import (
	"errors"
	"testing"
)

// TestParseValidXML verifies parsing of well-formed XML.
func TestParseValidXML(t *testing.T) {
	xmlData := `<?xml version="1.0"?>
<TEI>
	<text><body><p>Call me Ishmael.</p></body></text>
</TEI>`

	doc, err := Parse([]byte(xmlData))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Root() == nil {
		t.Fatal("Root should not be nil")
	}
	if got := doc.Root().Name(); got != "TEI" {
		t.Errorf("Root name = %q, want %q", got, "TEI")
	}
}

// TestParseInvalidXML verifies error handling for malformed XML.
func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseString(tt.xml); err == nil {
				t.Error("ParseString should fail for invalid XML")
			}
		})
	}
}

func TestCheckWellFormed(t *testing.T) {
	tests := []struct {
		name    string
		xml     string
		wantErr bool
	}{
		{"valid", `<grammar><define name="a"/></grammar>`, false},
		{"unclosed", `<grammar><define>`, true},
		{"text only", `just words`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWellFormed([]byte(tt.xml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckWellFormed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var se *SyntaxError
				if !errors.As(err, &se) {
					t.Errorf("error %T is not *SyntaxError", err)
				}
			}
		})
	}
}

// TestSelect verifies compiled XPath selection.
func TestSelect(t *testing.T) {
	xmlData := `<TEI><teiHeader><profileDesc><particDesc><listPerson>
	<person xml:id="c1"><persName>Emma</persName></person>
	<person xml:id="c2"><persName>Harriet</persName></person>
</listPerson></particDesc></profileDesc></teiHeader></TEI>`

	doc, err := Parse([]byte(xmlData))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	results := doc.Select(MustCompile("//listPerson/person"))
	if len(results) != 2 {
		t.Fatalf("Select should return 2 results, got %d", len(results))
	}
	if got := results[1].ID(); got != "c2" {
		t.Errorf("ID() = %q, want %q", got, "c2")
	}

	first := doc.SelectFirst(MustCompile("//persName"))
	if first == nil || first.Text() != "Emma" {
		t.Errorf("SelectFirst text = %v, want Emma", first)
	}
	if missing := doc.SelectFirst(MustCompile("//placeName")); missing != nil {
		t.Error("SelectFirst should return nil when nothing matches")
	}
	if none := doc.Select(MustCompile("//placeName")); none != nil {
		t.Errorf("Select = %v, want nil", none)
	}
}

// TestSelectDefaultNamespace verifies unprefixed names match TEI elements.
func TestSelectDefaultNamespace(t *testing.T) {
	doc, err := Parse([]byte(`<TEI xmlns="http://www.tei-c.org/ns/1.0"><standOff><listPlace>
<place xml:id="pl1"><placeName>Highbury</placeName></place>
</listPlace></standOff></TEI>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	places := doc.Select(MustCompile("//listPlace/place"))
	if len(places) != 1 || places[0].ID() != "pl1" {
		t.Fatalf("Select = %v, want [pl1]", places)
	}
}

// TestCompileInvalidExpression verifies error handling for invalid XPath.
func TestCompileInvalidExpression(t *testing.T) {
	if _, err := Compile("[invalid"); err == nil {
		t.Error("Invalid XPath should return error")
	}
	defer func() {
		if recover() == nil {
			t.Error("MustCompile should panic on an invalid expression")
		}
	}()
	MustCompile("[invalid")
}

func TestSelectNilDocument(t *testing.T) {
	var d *Document
	if d.Select(MustCompile("//p")) != nil || d.SelectFirst(MustCompile("//p")) != nil {
		t.Error("nil document selection should return nil")
	}
}

// TestNodeContent verifies mixed content ordering.
func TestNodeContent(t *testing.T) {
	doc, err := Parse([]byte(`<p>Hello <said who="#c1">there</said>!<!-- note --></p>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	content := doc.Root().Content()
	if len(content) != 3 {
		t.Fatalf("Content() returned %d nodes, want 3", len(content))
	}
	if !content[0].IsText() || content[0].Data() != "Hello " {
		t.Errorf("content[0] = %q, want text %q", content[0].Data(), "Hello ")
	}
	if !content[1].IsElement() || content[1].Name() != "said" {
		t.Errorf("content[1] name = %q, want said", content[1].Name())
	}
	if content[1].Attr("who") != "#c1" {
		t.Errorf("Attr(who) = %q, want %q", content[1].Attr("who"), "#c1")
	}
	if content[2].Data() != "!" {
		t.Errorf("content[2] = %q, want %q", content[2].Data(), "!")
	}
}

// TestNodeNavigation verifies Child and Children against descendant selection.
func TestNodeNavigation(t *testing.T) {
	doc, err := Parse([]byte(`<body><div><p>a</p><p>b</p></div><p>c</p></body>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()

	if got := len(root.Children()); got != 2 {
		t.Errorf("Children() = %d, want 2", got)
	}
	if root.Child("div") == nil {
		t.Error("Child(div) should not be nil")
	}
	if root.Child("lg") != nil {
		t.Error("Child(lg) should be nil")
	}

	ps := doc.Select(MustCompile("//p"))
	if len(ps) != 3 {
		t.Fatalf("Select(//p) = %d, want 3", len(ps))
	}
	want := []string{"a", "b", "c"}
	for i, p := range ps {
		if p.Text() != want[i] {
			t.Errorf("Select(//p)[%d] = %q, want %q", i, p.Text(), want[i])
		}
	}
}

// TestNodeAttributes verifies attribute access.
func TestNodeAttributes(t *testing.T) {
	doc, err := Parse([]byte(`<said xmlns="http://www.tei-c.org/ns/1.0" who="#c1" aloud="true"/>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	attrs := doc.Root().Attributes()
	if len(attrs) != 2 {
		t.Errorf("Should have 2 attributes, got %d: %v", len(attrs), attrs)
	}
	if attrs["aloud"] != "true" {
		t.Errorf("attrs[aloud] = %q, want %q", attrs["aloud"], "true")
	}
}

func TestNodeNil(t *testing.T) {
	var n *Node
	if n.Name() != "" || n.Text() != "" || n.Attr("x") != "" || n.ID() != "" {
		t.Error("nil node accessors should return empty values")
	}
	if n.Children() != nil || n.Content() != nil {
		t.Error("nil node navigation should return nil")
	}
}
