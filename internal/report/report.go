// Package report renders the outcome of a pass for humans and machines.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/zjrosen/idosync/internal/idos"
	"github.com/zjrosen/idosync/internal/migration"
)

// actionOrder fixes the order actions are listed in.
var actionOrder = []idos.Action{
	idos.ActionAssigned,
	idos.ActionNormalized,
	idos.ActionDeduplicated,
	idos.ActionRegenerated,
	idos.ActionPreserved,
	idos.ActionUnchanged,
}

// Status of a change after the pass.
const (
	StatusWritten = "written"
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// Change is one record whose idOS the pass changed or would change.
type Change struct {
	Owner    string      `json:"owner"`
	Key      string      `json:"key"`
	Previous string      `json:"previous,omitempty"`
	IDOS     string      `json:"idOS"`
	Action   idos.Action `json:"action"`
	Status   string      `json:"status"`
}

// Collector is a migration.Observer that keeps every change.
type Collector struct {
	Changes []Change
}

var _ migration.Observer = (*Collector)(nil)

// OnDecision records changed decisions. Changes not written are pending.
func (c *Collector) OnDecision(owner string, d idos.Decision, applied bool) {
	if !d.Changed {
		return
	}
	status := StatusPending
	if applied {
		status = StatusWritten
	}
	c.Changes = append(c.Changes, Change{
		Owner:    owner,
		Key:      d.Key,
		Previous: d.Previous,
		IDOS:     d.IDOS,
		Action:   d.Action,
		Status:   status,
	})
}

// OnFailure records failed writes as failed changes. Owner read failures
// carry no change and are reported through the summary.
func (c *Collector) OnFailure(err error) {
	var writeErr *migration.RecordWriteError
	if !errors.As(err, &writeErr) {
		return
	}
	c.Changes = append(c.Changes, Change{
		Owner:  writeErr.Owner,
		Key:    writeErr.Key,
		IDOS:   writeErr.IDOS,
		Status: StatusFailed,
	})
}

// Render writes a human-readable summary, followed by the change table when
// changes is non-empty.
func Render(w io.Writer, sum *migration.Summary, changes []Change) error {
	var b strings.Builder

	title := "Pass " + sum.RunID
	if sum.DryRun {
		title += " (dry run)"
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	line("Owners", fmt.Sprintf("%d processed, %d empty, %s (of %d)",
		sum.OwnersProcessed, sum.OwnersEmpty, failed(sum.OwnersFailed), sum.OwnersTotal))
	line("Tasks", fmt.Sprintf("%d scanned, %d changed, %s, %d unchanged, %d skipped, %s",
		sum.RecordsScanned, sum.RecordsChanged, updated(sum), sum.RecordsUnchanged, sum.RecordsSkipped, failed(sum.RecordsFailed)))
	if actions := formatActions(sum.Actions); actions != "" {
		line("Actions", actions)
	}
	line("Duration", sum.Duration.Round(time.Millisecond).String())

	switch {
	case sum.Interrupted:
		b.WriteString(warningStyle.Render("Interrupted; re-run to finish the remaining owners.") + "\n")
	case sum.DryRun && sum.Pending():
		b.WriteString(warningStyle.Render(fmt.Sprintf("%d change(s) pending; run without --dry-run to apply.", sum.RecordsChanged)) + "\n")
	case sum.FailureCount() > 0:
		b.WriteString(warningStyle.Render("Some writes failed; re-run to retry them.") + "\n")
	default:
		b.WriteString(successStyle.Render("Done.") + "\n")
	}

	for _, f := range sum.Failures {
		b.WriteString(errorStyle.Render("  ✗ ") + f.Message + "\n")
	}

	if len(changes) > 0 {
		b.WriteString("\n" + changeTable(changes) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func updated(sum *migration.Summary) string {
	if sum.DryRun {
		return mutedStyle.Render("0 updated")
	}
	s := fmt.Sprintf("%d updated", sum.RecordsUpdated)
	if sum.RecordsUpdated > 0 {
		return successStyle.Render(s)
	}
	return s
}

func failed(n int) string {
	s := fmt.Sprintf("%d failed", n)
	if n > 0 {
		return errorStyle.Render(s)
	}
	return s
}

func formatActions(actions map[idos.Action]int) string {
	var parts []string
	for _, a := range actionOrder {
		if n := actions[a]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", a, n))
		}
	}
	return strings.Join(parts, mutedStyle.Render(" · "))
}

func changeTable(changes []Change) string {
	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, []string{c.Owner, c.Key, c.Previous, c.IDOS, string(c.Action), c.Status})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers("OWNER", "KEY", "PREVIOUS", "IDOS", "ACTION", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			if col == 5 && row < len(rows) {
				switch rows[row][5] {
				case StatusFailed:
					return cellStyle.Foreground(statusErrorColor)
				case StatusPending:
					return cellStyle.Foreground(statusWarningColor)
				}
			}
			return cellStyle
		}).
		Render()
}

// jsonReport is the --json output document.
type jsonReport struct {
	Summary *migration.Summary `json:"summary"`
	Changes []Change           `json:"changes,omitempty"`
}

// WriteJSON writes the summary and changes as one indented JSON document.
func WriteJSON(w io.Writer, sum *migration.Summary, changes []Change) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Summary: sum, Changes: changes})
}
