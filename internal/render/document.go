package render

import (
	"weekcal/internal/model"
	"weekcal/internal/schedule"
)

// SourceEntry is one legend/catalog row.
type SourceEntry struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	ColorIndex int      `json:"color_index"`
	Hex        string   `json:"hex"`
	RGBA       [4]uint8 `json:"rgba"`
	Included   bool     `json:"included"`
	Events     int      `json:"events"`
}

// Document is the JSON form of one layout pass.
type Document struct {
	Bars      []model.LayoutBar `json:"bars"`
	Catalog   []SourceEntry     `json:"catalog"`
	WeekStart string            `json:"week_start,omitempty"`
	WeekEnd   string            `json:"week_end,omitempty"`
	Empty     bool              `json:"empty"`
	Reason    string            `json:"reason,omitempty"`
}

// Catalog lists the sources of cat in color order. counts may be nil.
func Catalog(cat model.SourceCatalog, state model.FilterState, counts map[string]int, palette schedule.Palette) []SourceEntry {
	if palette.Len() == 0 {
		palette = schedule.Tab10
	}
	out := make([]SourceEntry, 0, cat.Len())
	for _, id := range cat.IDs() {
		idx, _ := cat.ColorIndex(id)
		c := palette.Color(idx, 1)
		out = append(out, SourceEntry{
			ID:         id,
			Label:      cat.Label(id),
			ColorIndex: idx,
			Hex:        palette.Hex(idx),
			RGBA:       [4]uint8{c.R, c.G, c.B, c.A},
			Included:   state.Includes(id),
			Events:     counts[id],
		})
	}
	return out
}

// NewDocument converts a pipeline result.
func NewDocument(res schedule.Result, catalog []SourceEntry) Document {
	doc := Document{
		Bars:    res.Bars,
		Catalog: catalog,
		Empty:   res.Empty(),
	}
	if doc.Bars == nil {
		doc.Bars = []model.LayoutBar{}
	}
	if !res.Week.IsZero() {
		doc.WeekStart = res.Week.First.Format(dateLayout)
		doc.WeekEnd = res.Week.Last.Format(dateLayout)
	}
	if res.Reason != nil {
		doc.Reason = res.Reason.Error()
	}
	return doc
}

const dateLayout = "2006-01-02"
