package rng

// contentState accumulates what an element's patterns contained across all
// of its definitions.
type contentState struct {
	text     bool
	mixed    bool
	children bool
}

// builder collects constraints from either grammar syntax.
type builder struct {
	c       *Constraints
	content map[string]*contentState
	order   []string
}

func newBuilder() *builder {
	return &builder{
		c:       newConstraints(),
		content: make(map[string]*contentState),
	}
}

// element registers a tag and returns its constraint.
func (b *builder) element(name string) *TagConstraint {
	if tc, ok := b.c.Tags[name]; ok {
		return tc
	}
	tc := &TagConstraint{
		Name:               name,
		RequiredAttributes: NewSet(),
		OptionalAttributes: NewSet(),
	}
	b.c.Tags[name] = tc
	b.c.ContentModels[name] = &ContentModel{AllowedChildren: NewSet()}
	b.content[name] = &contentState{}
	b.order = append(b.order, name)
	return tc
}

// define maps a define name to the element it wraps.
func (b *builder) define(defineName, elementName string) {
	if defineName == "" {
		return
	}
	b.c.Defines[defineName] = elementName
}

// attribute records an attribute of tag. An attribute seen as required in
// any definition stays required.
func (b *builder) attribute(tag, name string, optional bool, typ DataType, values []string) {
	tc := b.element(tag)
	switch {
	case optional && !tc.RequiredAttributes.Has(name):
		tc.OptionalAttributes.Add(name)
	case !optional:
		delete(tc.OptionalAttributes, name)
		tc.RequiredAttributes.Add(name)
	}
	b.c.Attributes[AttributeKey(tag, name)] = &AttributeConstraint{
		Tag:    tag,
		Name:   name,
		Type:   typ,
		Values: values,
	}
}

// child permits ref (a define or element name) inside tag.
func (b *builder) child(tag, ref string) {
	if ref == "" {
		return
	}
	b.element(tag)
	b.c.ContentModels[tag].AllowedChildren.Add(ref)
	b.content[tag].children = true
}

func (b *builder) text(tag string) {
	b.element(tag)
	b.content[tag].text = true
}

func (b *builder) mixed(tag string) {
	b.element(tag)
	b.content[tag].mixed = true
}

func (b *builder) skip(construct, context string) {
	b.c.Skipped = append(b.c.Skipped, Skipped{Construct: construct, Context: context})
}

// finish derives content model flags and returns the constraints.
func (b *builder) finish() *Constraints {
	for _, name := range b.order {
		st := b.content[name]
		cm := b.c.ContentModels[name]
		cm.Mixed = st.mixed
		cm.TextOnly = st.text && !st.children && !st.mixed
		cm.Empty = !st.text && !st.children && !st.mixed
	}
	return b.c
}
