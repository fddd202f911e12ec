// Package report renders a sync report as a plain-text table for the CLI.
package report

import (
	"strings"
	"time"

	"github.com/example/assetsync/internal/types"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang = language.English

// Render returns the summary table followed by one line per failed asset.
func Render(rep types.SyncReport) string {
	p := message.NewPrinter(lang)
	mode := "live"
	if rep.DryRun {
		mode = "dry run"
	}
	keys := []string{"Run ID", "Mode", "Duration", "Fetched", "Created", "Updated", "Unchanged", "Skipped", "Errors", "Error Rate", "Mean Latency", "P95 Latency"}
	vals := map[string]string{
		"Run ID":       rep.RunID,
		"Mode":         mode,
		"Duration":     rep.Duration().Round(time.Millisecond).String(),
		"Fetched":      p.Sprintf("%d", rep.Fetched),
		"Created":      p.Sprintf("%d", rep.Created),
		"Updated":      p.Sprintf("%d", rep.Updated),
		"Unchanged":    p.Sprintf("%d", rep.Unchanged),
		"Skipped":      p.Sprintf("%d", rep.Skipped),
		"Errors":       p.Sprintf("%d", rep.Errors),
		"Error Rate":   p.Sprintf("%.2f %%", 100*rep.ErrorRate),
		"Mean Latency": p.Sprintf("%.1f ms", rep.MeanLatencyMs),
		"P95 Latency":  p.Sprintf("%.1f ms", rep.P95LatencyMs),
	}
	out := table("NinjaOne -> Freshservice sync", keys, vals)
	if len(rep.ErrorEntries) == 0 {
		return out
	}
	var b strings.Builder
	b.WriteString(out)
	b.WriteString("errors:\n")
	for _, e := range rep.ErrorEntries {
		b.WriteString(p.Sprintf("  - %s: %s\n", e.Asset, e.Error))
	}
	return b.String()
}

func table(title string, keys []string, vals map[string]string) string {
	keyW, valW := 0, 0
	for _, k := range keys {
		keyW = max(keyW, runewidth.StringWidth(k))
		valW = max(valW, runewidth.StringWidth(vals[k]))
	}
	keyW += 2
	valW += 2
	if titleW := runewidth.StringWidth(title) + 2; titleW > keyW+valW+1 {
		valW = titleW - keyW - 1
	}

	inner := keyW + valW + 1
	titleW := runewidth.StringWidth(title)
	left := (inner - titleW) / 2
	right := inner - titleW - left

	var b strings.Builder
	b.WriteString("+" + strings.Repeat("-", inner) + "+\n")
	b.WriteString("|" + blank(left) + title + blank(right) + "|\n")
	divider := "+" + strings.Repeat("-", keyW) + "+" + strings.Repeat("-", valW) + "+\n"
	b.WriteString(divider)
	for _, k := range keys {
		v := vals[k]
		b.WriteString("| " + k + blank(keyW-2-runewidth.StringWidth(k)) + " | " + v + blank(valW-2-runewidth.StringWidth(v)) + " |\n")
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
