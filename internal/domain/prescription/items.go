// Package prescription defines prescription rows, reusable templates, and
// the canonical snapshot text embedded in finalized consultations.
package prescription

import "strings"

// Item is one medicine row of a prescription. Medicine is the only field
// that decides whether a row counts; the rest are free text.
type Item struct {
	Medicine string `json:"medicine" validate:"required"`
	Dose     string `json:"dose"`
	Days     string `json:"days"`
	Notes    string `json:"notes"`
}

// Trimmed returns a copy with all fields whitespace-trimmed
func (i Item) Trimmed() Item {
	return Item{
		Medicine: strings.TrimSpace(i.Medicine),
		Dose:     strings.TrimSpace(i.Dose),
		Days:     strings.TrimSpace(i.Days),
		Notes:    strings.TrimSpace(i.Notes),
	}
}

// Blank reports whether the row has no medicine name after trimming.
// Blank rows stay in the editing grid but never reach a snapshot or the
// server.
func (i Item) Blank() bool {
	return strings.TrimSpace(i.Medicine) == ""
}

// NormalizeItems trims every field of every row and drops rows without a
// medicine name, preserving row order.
func NormalizeItems(rows []Item) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		if row.Blank() {
			continue
		}
		items = append(items, row.Trimmed())
	}
	return items
}

// SnapshotText renders the human-readable prescription snapshot, one line
// per item: "<medicine> | <dose> | <days> days", with a trailing
// " | <notes>" segment only when notes is non-empty. Pure function of its
// input; callers pass NormalizeItems output.
func SnapshotText(items []Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		var sb strings.Builder
		sb.WriteString(item.Medicine)
		sb.WriteString(" | ")
		sb.WriteString(item.Dose)
		sb.WriteString(" | ")
		sb.WriteString(item.Days)
		sb.WriteString(" days")
		if item.Notes != "" {
			sb.WriteString(" | ")
			sb.WriteString(item.Notes)
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}
