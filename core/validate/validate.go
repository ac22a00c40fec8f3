// Package validate checks proposed tag insertions against the constraints
// of a document's schema and suggests fixes.
//
// Validation only reads the document state it is given, so one Validator
// may be shared by any number of goroutines. Problems with the selection
// are reported in the Result; only a schema that cannot be loaded or
// parsed is returned as an error.
package validate

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	"github.com/FocuswithJustin/JuniperTag/core/entity"
	"github.com/FocuswithJustin/JuniperTag/core/rng"
	"github.com/FocuswithJustin/JuniperTag/core/schema"
	"github.com/FocuswithJustin/JuniperTag/internal/logging"
)

// Resolver returns parsed constraints for a schema path. *schema.Cache
// implements it.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*rng.Constraints, error)
}

// Options configures schema selection and batch concurrency.
type Options struct {
	SchemaDir     string
	DefaultSchema string
	Profiles      map[string]string

	// BatchLimit caps concurrent validations in ValidateBatch
	// (0 = GOMAXPROCS).
	BatchLimit int
}

// Validator validates selections against cached constraints.
type Validator struct {
	schemas Resolver
	opts    Options
}

// New creates a validator that resolves constraints through schemas.
func New(schemas Resolver, opts Options) *Validator {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = runtime.GOMAXPROCS(0)
	}
	return &Validator{schemas: schemas, opts: opts}
}

// SchemaPath returns the schema path for the document's profile.
func (v *Validator) SchemaPath(doc *document.State) string {
	return schema.DetectPath(doc.Metadata.Profile, v.opts.SchemaDir, v.opts.Profiles, v.opts.DefaultSchema)
}

// Constraints resolves the constraints for the document's schema.
func (v *Validator) Constraints(ctx context.Context, doc *document.State) (*rng.Constraints, error) {
	return v.schemas.Resolve(ctx, v.SchemaPath(doc))
}

// Validate checks sel against doc.
func (v *Validator) Validate(ctx context.Context, doc *document.State, sel Selection) (Result, error) {
	cons, err := v.Constraints(ctx, doc)
	if err != nil {
		return Result{}, err
	}
	res := Check(cons, doc, sel)
	logging.ValidationRun(ctx, sel.PassageID, sel.TagType, res.Valid, len(res.Errors), len(res.Warnings))
	return res, nil
}

// IsValidSelection reports whether sel validates without errors. A schema
// failure counts as invalid.
func (v *Validator) IsValidSelection(ctx context.Context, doc *document.State, sel Selection) bool {
	res, err := v.Validate(ctx, doc, sel)
	return err == nil && res.Valid
}

// ValidateBatch validates selections concurrently against one snapshot.
// Results are returned in input order.
func (v *Validator) ValidateBatch(ctx context.Context, doc *document.State, sels []Selection) ([]Result, error) {
	cons, err := v.Constraints(ctx, doc)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(sels))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.BatchLimit)
	for i, sel := range sels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Check(cons, doc, sel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Check validates sel against already resolved constraints.
func Check(cons *rng.Constraints, doc *document.State, sel Selection) Result {
	res := Result{Errors: []Issue{}, Warnings: []Issue{}, Fixes: []Fix{}}
	c := checker{cons: cons, doc: doc, sel: sel, res: &res}
	c.run()
	res.Valid = len(res.Errors) == 0
	return res
}

type checker struct {
	cons     *rng.Constraints
	doc      *document.State
	sel      Selection
	res      *Result
	selected string
}

func (c *checker) issue(code Code, attr, value, msg string) Issue {
	return Issue{
		Code:      code,
		Message:   msg,
		PassageID: c.sel.PassageID,
		TagType:   c.sel.TagType,
		Attribute: attr,
		Value:     value,
	}
}

func (c *checker) run() {
	p, ok := c.doc.Passage(c.sel.PassageID)
	if !ok {
		c.res.addError(c.issue(CodePassageNotFound, "", "",
			fmt.Sprintf("Passage not found: %s", c.sel.PassageID)))
		return
	}
	r := c.sel.Range
	if !r.Within(p.Len()) {
		c.res.addError(c.issue(CodeInvalidRange, "", r.String(),
			fmt.Sprintf("Range %s is outside passage of length %d", r, p.Len())))
	} else if r.Empty() {
		c.res.addWarning(c.issue(CodeEmptySelection, "", r.String(), "Selection is empty"))
	}
	c.selected = p.Text(r)

	tc := c.cons.Lookup(c.sel.TagType)
	if tc == nil {
		// Unconstrained tag: no attribute rules apply.
		return
	}

	for _, name := range tc.RequiredAttributes.Sorted() {
		if _, present := c.sel.Attributes[name]; present {
			continue
		}
		c.res.addError(
			c.issue(CodeRequiredAttributeMissing, name, "", "Required attribute missing: "+name),
			c.fixFor(name),
		)
	}

	names := make([]string, 0, len(c.sel.Attributes))
	for name := range c.sel.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.checkAttribute(tc, name, c.sel.Attributes[name])
	}
}

func (c *checker) checkAttribute(tc *rng.TagConstraint, name, value string) {
	if !tc.Declares(name) {
		c.res.addWarning(c.issue(CodeUnknownAttribute, name, value,
			fmt.Sprintf("Attribute %s is not declared for %s", name, c.sel.TagType)))
		return
	}
	ac := c.cons.Attribute(c.sel.TagType, name)
	if ac == nil {
		return
	}

	switch ac.Type {
	case rng.TypeIDREF, rng.TypeIDREFS:
		refs := []string{value}
		if ac.Type == rng.TypeIDREFS {
			refs = strings.Fields(value)
		}
		fixed := false
		for _, ref := range refs {
			if c.resolves(name, ref) {
				continue
			}
			iss := c.issue(CodeReferenceNotFound, name, ref, "Reference not found: "+ref)
			if fixed {
				c.res.addError(iss)
				continue
			}
			c.res.addError(iss, c.fixFor(name))
			fixed = true
		}
		return
	case rng.TypeBoolean:
		switch strings.TrimSpace(value) {
		case "true", "false", "1", "0":
		default:
			c.res.addWarning(c.issue(CodeInvalidBoolean, name, value,
				fmt.Sprintf("Attribute %s expects a boolean, got %q", name, value)))
		}
	case rng.TypeInteger:
		if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
			c.res.addError(c.issue(CodeInvalidValue, name, value,
				fmt.Sprintf("Attribute %s expects an integer, got %q", name, value)))
		}
	}

	if !ac.Permits(value) {
		c.res.addError(
			c.issue(CodeInvalidValue, name, value,
				fmt.Sprintf("Value %q is not allowed for %s; expected one of %s", value, name, strings.Join(ac.Values, ", "))),
			Fix{Type: FixReplaceValue, Attribute: name, SuggestedValues: ac.Values},
		)
	}
}

// resolves reports whether ref names an entity of the category the
// attribute points at. Attributes with no known category accept any entity.
func (c *checker) resolves(attr, ref string) bool {
	if typ := entity.DetectType(c.sel.TagType, attr); typ != entity.None {
		_, ok := entity.Find(c.doc, typ, ref)
		return ok
	}
	for _, typ := range []entity.Type{entity.Character, entity.Place, entity.Organization} {
		if _, ok := entity.Find(c.doc, typ, ref); ok {
			return true
		}
	}
	return false
}

// fixFor builds the repair for a missing or dangling attribute: candidate
// entity ids when the category has members, create-entity when it has none.
func (c *checker) fixFor(attr string) Fix {
	ac := c.cons.Attribute(c.sel.TagType, attr)
	typ := entity.DetectType(c.sel.TagType, attr)
	if ac != nil && !ac.Type.IsReference() {
		return Fix{Type: FixAddAttribute, Attribute: attr, SuggestedValues: ac.Values}
	}
	if typ == entity.None {
		return Fix{Type: FixAddAttribute, Attribute: attr}
	}

	candidates := entity.Entities(c.doc, typ)
	if len(candidates) == 0 {
		return Fix{Type: FixCreateEntity, Attribute: attr, EntityType: typ}
	}
	return Fix{
		Type:            FixAddAttribute,
		Attribute:       attr,
		SuggestedValues: entity.IDs(candidates),
		Preferred:       c.preferred(candidates),
	}
}

// preferred ranks candidates whose names fuzzy-match the selected text.
// Only name tags carry the name in the selection.
func (c *checker) preferred(candidates []entity.Entity) []string {
	switch entity.KindOf(c.sel.TagType) {
	case entity.KindPersName, entity.KindPlaceName, entity.KindOrgName:
	default:
		return nil
	}
	text := strings.TrimSpace(c.selected)
	if text == "" {
		return nil
	}

	names := make([]string, len(candidates))
	for i, e := range candidates {
		names[i] = e.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(text, names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	var out []string
	for _, r := range ranks {
		out = append(out, candidates[r.OriginalIndex].ID)
	}
	return out
}
