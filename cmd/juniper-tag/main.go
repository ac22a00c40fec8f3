// Command juniper-tag validates and applies TEI annotations from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	"github.com/FocuswithJustin/JuniperTag/core/entity"
	"github.com/FocuswithJustin/JuniperTag/core/queue"
	"github.com/FocuswithJustin/JuniperTag/core/schema"
	"github.com/FocuswithJustin/JuniperTag/core/sqlite"
	"github.com/FocuswithJustin/JuniperTag/core/store"
	"github.com/FocuswithJustin/JuniperTag/core/validate"
	"github.com/FocuswithJustin/JuniperTag/internal/config"
	"github.com/FocuswithJustin/JuniperTag/internal/logging"
	"github.com/FocuswithJustin/JuniperTag/internal/validation"
)

const version = "0.1.0"

// errSelectionInvalid makes the process exit non-zero after the result
// has been printed.
var errSelectionInvalid = errors.New("selection is not valid")

// CLI defines the command-line interface for juniper-tag.
type CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Config file" default:"juniper-tag.toml" type:"path"`
	SchemaDir string `name:"schema-dir" help:"Schema directory (overrides config)" type:"path"`
	Journal   string `name:"journal" help:"SQLite event journal (overrides config)" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat string `name:"log-format" help:"Log format: text, json"`

	// Command groups (noun-first organization)
	Schema   SchemaGroup   `cmd:"" help:"Schema operations"`
	Validate ValidateCmd   `cmd:"" help:"Validate a selection against the document schema"`
	Tag      TagGroup      `cmd:"" help:"Tag operations"`
	Entities EntitiesCmd   `cmd:"" help:"List document entities"`
	Events   EventsCmd     `cmd:"" help:"List journaled events"`
	Snapshot SnapshotGroup `cmd:"" help:"Snapshot archives"`
	Version  VersionCmd    `cmd:"" help:"Print version information"`
}

// SchemaGroup contains schema operations.
type SchemaGroup struct {
	Inspect SchemaInspectCmd `cmd:"" help:"Parse a schema and print its constraints"`
}

// TagGroup contains tag operations.
type TagGroup struct {
	Add    TagAddCmd    `cmd:"" help:"Validate and commit a tag"`
	Remove TagRemoveCmd `cmd:"" help:"Remove a tag"`
}

// SnapshotGroup contains snapshot operations.
type SnapshotGroup struct {
	Save SnapshotSaveCmd `cmd:"" help:"Save a document as a snapshot archive"`
	Load SnapshotLoadCmd `cmd:"" help:"Load a snapshot archive"`
}

// env carries resolved configuration into commands.
type env struct {
	cfg     *config.Config
	out     io.Writer
	schemas *schema.Cache
}

func newEnv(cli *CLI, out io.Writer) (*env, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.SchemaDir != "" {
		cfg.SchemaDir = cli.SchemaDir
	}
	if cli.Journal != "" {
		cfg.JournalPath = cli.Journal
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.LogFormat = cli.LogFormat
	}
	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	logging.Debug("config_loaded", "path", cli.Config, "schema_dir", cfg.SchemaDir, "journal", cfg.JournalPath)

	loader := schema.FSLoader{FS: os.DirFS(cfg.SchemaDir)}
	return &env{
		cfg:     cfg,
		out:     out,
		schemas: schema.NewCache(loader, schema.Options{MaxSize: cfg.CacheSize}),
	}, nil
}

func (e *env) validator() *validate.Validator {
	return validate.New(e.schemas, validate.Options{
		DefaultSchema: e.cfg.DefaultSchema,
		Profiles:      e.cfg.Profiles,
	})
}

// openJournal returns nil when no journal is configured.
func (e *env) openJournal(ctx context.Context) (*store.Journal, error) {
	if e.cfg.JournalPath == "" {
		return nil, nil
	}
	return store.OpenJournal(ctx, e.cfg.JournalPath)
}

// openDocument loads a TEI file and wraps it, journaling when configured.
func (e *env) openDocument(ctx context.Context, path string) (*document.Document, func(), error) {
	state, err := loadDocument(path)
	if err != nil {
		return nil, nil, err
	}
	j, err := e.openJournal(ctx)
	if err != nil {
		return nil, nil, err
	}
	var opts []document.Option
	closer := func() {}
	if j != nil {
		opts = append(opts, document.WithSink(j))
		closer = func() { j.Close() }
	}
	doc, err := document.Open(ctx, state, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return doc, closer, nil
}

func loadDocument(path string) (*document.State, error) {
	data, err := validation.ReadFile(path, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	state, err := document.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return state, nil
}

// SelectionFlags identify a passage range and the tag to apply.
type SelectionFlags struct {
	Passage string            `name:"passage" short:"p" required:"" help:"Passage id"`
	Start   int               `name:"start" help:"Start offset (characters)"`
	End     int               `name:"end" help:"End offset (characters, exclusive)"`
	TagType string            `name:"tag" short:"t" required:"" help:"Tag name, e.g. said"`
	Attr    map[string]string `name:"attr" short:"a" help:"Attribute key=value (repeatable)"`
}

func (f SelectionFlags) selection() validate.Selection {
	return validate.Selection{
		PassageID:  f.Passage,
		Range:      document.TextRange{Start: f.Start, End: f.End},
		TagType:    f.TagType,
		Attributes: f.Attr,
	}
}

// SchemaInspectCmd prints parsed constraints as JSON.
type SchemaInspectCmd struct {
	Path string `arg:"" help:"Schema file (.rng or .rnc)" type:"existingfile"`
	Tag  string `name:"tag" help:"Only show constraints for this tag"`
}

// Run executes the schema inspect command.
func (c *SchemaInspectCmd) Run(e *env) error {
	ctx := context.Background()
	loader := schema.LoaderFunc(func(_ context.Context, p, _ string) (string, error) {
		data, err := validation.ReadFile(p, 0)
		if err != nil {
			return "", fmt.Errorf("failed to read schema: %w", err)
		}
		return string(data), nil
	})
	cons, err := schema.NewCache(loader, schema.Options{MaxSize: 1}).Resolve(ctx, c.Path)
	if err != nil {
		return err
	}
	if c.Tag == "" {
		return writeJSON(e.out, cons)
	}
	tc := cons.Lookup(c.Tag)
	if tc == nil {
		return fmt.Errorf("tag %q is not constrained by %s", c.Tag, c.Path)
	}
	attrs := map[string]any{}
	for _, name := range append(tc.RequiredAttributes.Sorted(), tc.OptionalAttributes.Sorted()...) {
		attrs[name] = cons.Attribute(c.Tag, name)
	}
	return writeJSON(e.out, map[string]any{
		"tag":        tc,
		"attributes": attrs,
		"content":    cons.ContentModels[c.Tag],
	})
}

// ValidateCmd validates one selection.
type ValidateCmd struct {
	Doc            string `arg:"" help:"TEI document" type:"existingfile"`
	SelectionFlags `embed:""`
	JSON           bool `name:"json" help:"Print the result as JSON"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(e *env) error {
	ctx := context.Background()
	state, err := loadDocument(c.Doc)
	if err != nil {
		return err
	}
	res, err := e.validator().Validate(ctx, state, c.selection())
	if err != nil {
		return err
	}
	if c.JSON {
		if err := writeJSON(e.out, res); err != nil {
			return err
		}
	} else {
		printResult(e.out, c.selection(), res)
	}
	if !res.Valid {
		return errSelectionInvalid
	}
	return nil
}

// TagAddCmd validates and commits a tag through the tag queue.
type TagAddCmd struct {
	Doc            string `arg:"" help:"TEI document" type:"existingfile"`
	SelectionFlags `embed:""`
	ID             string `name:"id" help:"Tag id (generated when empty)"`
	Out            string `name:"out" short:"o" help:"Write the updated TEI here (default: stdout)" type:"path"`
	Snapshot       string `name:"snapshot" help:"Also save a snapshot archive here" type:"path"`
}

// Run executes the tag add command.
func (c *TagAddCmd) Run(e *env) error {
	ctx := context.Background()
	doc, closeDoc, err := e.openDocument(ctx, c.Doc)
	if err != nil {
		return err
	}
	defer closeDoc()
	ctx = logging.WithDocumentID(ctx, doc.ID())

	q := queue.New(doc, e.validator(), queue.WithBuffer(e.cfg.QueueBuffer))
	out, err := q.Enqueue(ctx, queue.Request{
		PassageID:  c.Passage,
		Range:      document.TextRange{Start: c.Start, End: c.End},
		TagType:    c.TagType,
		Attributes: c.Attr,
		TagID:      c.ID,
	})
	q.Close()
	if err != nil {
		return err
	}

	if !out.Accepted {
		printRejection(e.out, out)
		return errSelectionInvalid
	}
	status := io.Writer(os.Stderr)
	if c.Out != "" {
		status = e.out
	}
	printAccepted(status, out)
	if c.Snapshot != "" {
		if err := store.SaveSnapshot(c.Snapshot, out.State); err != nil {
			return err
		}
	}
	return writeDocument(e.out, c.Out, out.State)
}

// TagRemoveCmd removes a tag by id.
type TagRemoveCmd struct {
	Doc     string `arg:"" help:"TEI document" type:"existingfile"`
	Passage string `name:"passage" short:"p" required:"" help:"Passage id"`
	ID      string `arg:"" help:"Tag id"`
	Out     string `name:"out" short:"o" help:"Write the updated TEI here (default: stdout)" type:"path"`
}

// Run executes the tag remove command.
func (c *TagRemoveCmd) Run(e *env) error {
	ctx := context.Background()
	doc, closeDoc, err := e.openDocument(ctx, c.Doc)
	if err != nil {
		return err
	}
	defer closeDoc()

	state, err := doc.RemoveTag(ctx, c.Passage, c.ID)
	if err != nil {
		return err
	}
	return writeDocument(e.out, c.Out, state)
}

// EntitiesCmd lists the characters, places and organizations of a document.
type EntitiesCmd struct {
	Doc  string `arg:"" help:"TEI document" type:"existingfile"`
	Type string `name:"type" help:"Only list one type: character, place or organization"`
}

// Run executes the entities command.
func (c *EntitiesCmd) Run(e *env) error {
	state, err := loadDocument(c.Doc)
	if err != nil {
		return err
	}
	types := []entity.Type{entity.Character, entity.Place, entity.Organization}
	if c.Type != "" {
		typ := entity.Type(c.Type)
		if !slices.Contains(types, typ) {
			return fmt.Errorf("unknown entity type %q", c.Type)
		}
		types = []entity.Type{typ}
	}
	for _, typ := range types {
		for _, ent := range entity.Entities(state, typ) {
			fmt.Fprintf(e.out, "%-13s %-12s %s\n", ent.Type, ent.ID, ent.Name)
		}
	}
	return nil
}

// EventsCmd lists journaled events for a document, or the documents in the
// journal when no id is given.
type EventsCmd struct {
	DocID string `arg:"" optional:"" help:"Document id"`
	JSON  bool   `name:"json" help:"Print events as JSON"`
}

// Run executes the events command.
func (c *EventsCmd) Run(e *env) error {
	ctx := context.Background()
	if e.cfg.JournalPath == "" {
		return errors.New("no journal configured (set journal_path or --journal)")
	}
	j, err := store.OpenJournalReadOnly(ctx, e.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	if c.DocID == "" {
		docs, err := j.Documents(ctx)
		if err != nil {
			return err
		}
		if c.JSON {
			return writeJSON(e.out, docs)
		}
		for _, d := range docs {
			fmt.Fprintf(e.out, "%s  events=%d revision=%d\n", d.DocID, d.Events, d.Revision)
		}
		return nil
	}

	events, err := j.Events(ctx, c.DocID)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(e.out, events)
	}
	for _, ev := range events {
		printEvent(e.out, ev)
	}
	return nil
}

// SnapshotSaveCmd writes a snapshot archive for a TEI document.
type SnapshotSaveCmd struct {
	Doc string `arg:"" help:"TEI document" type:"existingfile"`
	Out string `arg:"" help:"Snapshot file" type:"path"`
}

// Run executes the snapshot save command.
func (c *SnapshotSaveCmd) Run(e *env) error {
	state, err := loadDocument(c.Doc)
	if err != nil {
		return err
	}
	if err := store.SaveSnapshot(c.Out, state); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Saved %s (revision %d, %d passages) to %s\n", state.ID, state.Revision, len(state.Passages), c.Out)
	return nil
}

// SnapshotLoadCmd reads a snapshot and prints a summary or the TEI.
type SnapshotLoadCmd struct {
	Path   string `arg:"" help:"Snapshot file" type:"existingfile"`
	Export bool   `name:"export" help:"Print the document as TEI"`
}

// Run executes the snapshot load command.
func (c *SnapshotLoadCmd) Run(e *env) error {
	if err := validation.ExpectFileType(c.Path, validation.FileTypeXZ); err != nil {
		return err
	}
	state, err := store.LoadSnapshot(c.Path)
	if err != nil {
		return err
	}
	if c.Export {
		_, err := e.out.Write(state.Export())
		return err
	}
	printSummary(e.out, state)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

// Run executes the version command.
func (c *VersionCmd) Run(e *env) error {
	fmt.Fprintf(e.out, "juniper-tag version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Fprintf(e.out, "sqlite driver %s (%s) from %s\n", info.DriverName, info.DriverType, info.Package)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDocument(stdout io.Writer, path string, state *document.State) error {
	data := state.Export()
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// run parses args and executes the selected command.
func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("juniper-tag"),
		kong.Description("Juniper Tag - schema-aware TEI annotation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(out, os.Stderr),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	e, err := newEnv(&cli, out)
	if err != nil {
		return err
	}
	return ctx.Run(e)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errSelectionInvalid) {
			fmt.Fprintf(os.Stderr, "juniper-tag: %v\n", err)
		}
		os.Exit(1)
	}
}
