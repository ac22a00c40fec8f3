package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/FocuswithJustin/JuniperTag/core/document"
	"github.com/FocuswithJustin/JuniperTag/core/queue"
	"github.com/FocuswithJustin/JuniperTag/core/validate"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	fixColor   = color.New(color.FgCyan)
	labelColor = color.New(color.Faint)
)

func printResult(w io.Writer, sel validate.Selection, res validate.Result) {
	header := fmt.Sprintf("%s %s %s", sel.TagType, sel.PassageID, sel.Range)
	if res.Valid {
		okColor.Fprint(w, "VALID")
	} else {
		errColor.Fprint(w, "INVALID")
	}
	fmt.Fprintf(w, "  %s\n", header)

	for _, is := range res.Errors {
		errColor.Fprint(w, "  error  ")
		fmt.Fprintf(w, "%-28s %s\n", is.Code, is.Message)
	}
	for _, is := range res.Warnings {
		warnColor.Fprint(w, "  warn   ")
		fmt.Fprintf(w, "%-28s %s\n", is.Code, is.Message)
	}
	for _, fix := range res.Fixes {
		fixColor.Fprint(w, "  fix    ")
		fmt.Fprintln(w, describeFix(fix))
	}
}

func describeFix(f validate.Fix) string {
	var b strings.Builder
	b.WriteString(string(f.Type))
	if f.Attribute != "" {
		b.WriteString(" " + f.Attribute)
	}
	if f.EntityType != "" {
		fmt.Fprintf(&b, " (%s)", f.EntityType)
	}
	if len(f.SuggestedValues) > 0 {
		b.WriteString(": " + strings.Join(f.SuggestedValues, ", "))
	}
	if len(f.Preferred) > 0 {
		b.WriteString(" [preferred " + strings.Join(f.Preferred, ", ") + "]")
	}
	return b.String()
}

func printRejection(w io.Writer, out queue.Outcome) {
	r := out.Rejection
	errColor.Fprint(w, "REJECTED")
	fmt.Fprintf(w, "  %s %s: %s\n", r.Code, r.PassageID, r.Message)
	if r.ConflictID != "" {
		labelColor.Fprint(w, "  conflicts with ")
		fmt.Fprintln(w, r.ConflictID)
	}
	if out.Validation != nil {
		for _, fix := range out.Validation.Fixes {
			fixColor.Fprint(w, "  fix    ")
			fmt.Fprintln(w, describeFix(fix))
		}
	}
}

func printAccepted(w io.Writer, out queue.Outcome) {
	okColor.Fprint(w, "ACCEPTED")
	fmt.Fprintf(w, "  %s %s %s (revision %d)\n", out.Tag.Type, out.Tag.ID, out.Tag.Range, out.State.Revision)
}

func printEvent(w io.Writer, ev document.Event) {
	labelColor.Fprintf(w, "%4d r%-4d ", ev.Seq, ev.Revision)
	fmt.Fprintf(w, "%s %-20s", ev.Timestamp.Format(time.RFC3339), ev.Type)
	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%s", k, ev.Payload[k])
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, s *document.State) {
	fmt.Fprintf(w, "Document: %s\n", s.ID)
	fmt.Fprintf(w, "  Revision: %d\n", s.Revision)
	if s.Metadata.Title != "" {
		fmt.Fprintf(w, "  Title: %s\n", s.Metadata.Title)
	}
	if s.Metadata.Profile != "" {
		fmt.Fprintf(w, "  Profile: %s\n", s.Metadata.Profile)
	}
	fmt.Fprintf(w, "  Passages: %d\n", len(s.Passages))
	fmt.Fprintf(w, "  Tags: %d\n", s.TagCount())
	fmt.Fprintf(w, "  Characters: %d\n", len(s.Characters))
	fmt.Fprintf(w, "  Dialogue: %d\n", len(s.Dialogue))
}
