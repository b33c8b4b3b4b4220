package models

import "sort"

// InsightEntries groups the entries attributed to one insight.
type InsightEntries struct {
	Insight Insight `json:"insight"`
	Entries []Entry `json:"entries"`
	Total   float64 `json:"total"`
}

// PartitionEntries attributes every entry to exactly one insight of the same habit.
//
// An entry belongs to insight i when i.DateAdded <= entry.Date < next.DateAdded, the last
// insight being unbounded above. Entries dated before the first insight are attributed to
// the first insight so no entry is left out while at least one insight exists.
func PartitionEntries(insights []Insight, entries []Entry) []InsightEntries {
	if len(insights) == 0 {
		return nil
	}
	ordered := make([]Insight, len(insights))
	copy(ordered, insights)
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].DateAdded.Equal(ordered[b].DateAdded) {
			return ordered[a].ID < ordered[b].ID
		}
		return ordered[a].DateAdded.Before(ordered[b].DateAdded)
	})

	groups := make([]InsightEntries, len(ordered))
	for i := range ordered {
		groups[i] = InsightEntries{Insight: ordered[i], Entries: []Entry{}}
	}
	for _, e := range entries {
		idx := 0
		// last insight whose DateAdded <= e.Date
		for i := len(ordered) - 1; i >= 0; i-- {
			if !e.Date.Before(ordered[i].DateAdded) {
				idx = i
				break
			}
		}
		groups[idx].Entries = append(groups[idx].Entries, e)
		groups[idx].Total += e.Value
	}
	return groups
}

// TotalFor returns the attributed total of the given insight, or false if it is not in groups.
func TotalFor(groups []InsightEntries, insightID uint) (float64, bool) {
	for _, g := range groups {
		if g.Insight.ID == insightID {
			return g.Total, true
		}
	}
	return 0, false
}
