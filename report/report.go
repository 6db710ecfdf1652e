package report

// Human-readable output.  Nothing in here changes a save.

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"sh2edit/editor"
	"sh2edit/types"
)

var (
	Good   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warn   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Bad    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	Title  = lipgloss.NewStyle().Bold(true)
	border = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const RULE_WIDTH = 70

func Ok(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, Good.Render("✓ "+fmt.Sprintf(format, args...)))
}

func Warning(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, Warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

func Failure(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, Bad.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Table renders every found value with its kind and payload offset.
func Table(readings []editor.Reading) string {
	rows := [][]string{}
	for _, r := range readings {
		if !r.Found {
			continue
		}
		rows = append(rows, []string{r.Signature.Kind.String(), r.Signature.String(), r.Value.String(), fmt.Sprintf("0x%x", r.Offset)})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(border).
		Headers("Kind", "Name", "Value", "Offset").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}

// Info prints what --info shows: health, then every weapon and item found.
func Info(out io.Writer, filename string, readings []editor.Reading) {
	rule := strings.Repeat("=", RULE_WIDTH)
	fmt.Fprintln(out)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, Title.Render("SAVE FILE: "+filepath.Base(filename)))
	fmt.Fprintln(out, rule)

	by_kind := map[types.Kind][]editor.Reading{}
	for _, r := range readings {
		if r.Found {
			by_kind[r.Signature.Kind] = append(by_kind[r.Signature.Kind], r)
		}
	}

	if h := by_kind[types.KIND_HEALTH]; len(h) > 0 {
		fmt.Fprintf(out, "Health: %v\n", h[0].Value)
	}

	sections := []struct {
		kind  types.Kind
		title string
		empty string
	}{
		{types.KIND_WEAPON, "Weapon Ammo:", "(No weapons found)"},
		{types.KIND_ITEM, "Inventory Items:", "(No items found)"},
	}
	for _, s := range sections {
		fmt.Fprintln(out)
		fmt.Fprintln(out, s.title)
		if len(by_kind[s.kind]) == 0 {
			fmt.Fprintln(out, "  "+s.empty)
			continue
		}
		for _, r := range by_kind[s.kind] {
			fmt.Fprintf(out, "  %v: %v\n", r.Signature, r.Value)
		}
	}

	// The locator always takes the first match; say so when there was a choice.
	notes := false
	for _, r := range readings {
		if r.Err != nil {
			if !notes {
				fmt.Fprintln(out)
				notes = true
			}
			Warning(out, "%v: %v", r.Signature, r.Err)
		}
		if r.Found && r.Occurrences > 1 {
			if !notes {
				fmt.Fprintln(out)
				notes = true
			}
			Warning(out, "%v appears %v times; showing the first", r.Signature, r.Occurrences)
		}
	}
}

// Results prints the outcome of each edit, the size summary, and a warning
// listing whatever was not found.
func Results(out io.Writer, rep *editor.Report) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Applying modifications:")
	for _, res := range rep.Results {
		sig := res.Edit.Signature
		what := describe(sig)
		switch res.Status {
		case editor.APPLIED:
			Ok(out, "  Set %v to %v (was %v)", what, res.Edit.Value, res.Old)
			if res.Warning != "" {
				Warning(out, "  %v: %v", sig, res.Warning)
			}
		case editor.NOT_FOUND:
			Failure(out, "  Could not set %v: not in this save", what)
		}
	}

	fmt.Fprintln(out)
	Ok(out, "Saved to: %v", rep.Output)
	fmt.Fprintf(out, "  Original size: %v bytes\n", rep.Summary.OldUncompressed)
	fmt.Fprintf(out, "  New size: %v bytes\n", rep.Summary.NewUncompressed)
	fmt.Fprintf(out, "  Compressed: %v -> %v bytes\n", rep.Summary.OldCompressed, rep.Summary.NewCompressed)

	if missing := rep.Missing(); len(missing) > 0 {
		names := []string{}
		for _, m := range missing {
			names = append(names, m.Edit.Signature.String())
		}
		fmt.Fprintln(out)
		Warning(out, "Not found in this save: %v", strings.Join(names, ", "))
	}
}

func describe(sig types.Signature) string {
	switch sig.Kind {
	case types.KIND_HEALTH:
		return "health"
	case types.KIND_WEAPON:
		return sig.Name + " ammo"
	}
	return sig.Name + " quantity"
}
