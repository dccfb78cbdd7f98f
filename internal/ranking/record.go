package ranking

import (
	"fmt"
)

// Layout selects how the affiliation of a player is emitted.
type Layout int

const (
	// LayoutWorldAndGroup emits the bracketed group as its own "Datacenter" column.
	LayoutWorldAndGroup Layout = iota
	// LayoutWorldOnly emits only the world and discards the bracket contents.
	LayoutWorldOnly
)

func (l Layout) String() string {
	switch l {
	case LayoutWorldAndGroup:
		return "world_and_group"
	case LayoutWorldOnly:
		return "world_only"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout is the inverse of Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "world_and_group":
		return LayoutWorldAndGroup, nil
	case "world_only":
		return LayoutWorldOnly, nil
	}
	return 0, fmt.Errorf("unknown affiliation layout '%s'", s)
}

// Header returns the output columns in order.
func (l Layout) Header() []string {
	if l == LayoutWorldOnly {
		return []string{
			"Rank", "Name", "World",
			"Credits", "Victories", "Credits Gained", "Victories Gained",
		}
	}
	return []string{
		"Rank", "Name", "World", "Datacenter",
		"Credits", "Victories", "Credits Gained", "Victories Gained",
	}
}

// Record is one decoded ranking entry. Every field is display text, numbers keep
// the locale formatting of the page.
type Record struct {
	Rank       string
	PlayerName string
	World      string
	// Group is only filled with LayoutWorldAndGroup.
	Group      string
	Score      string
	ScoreDelta string
	Wins       string
	WinsDelta  string
}

// Values returns the record in the column order of Layout.Header.
func (r Record) Values(layout Layout) []string {
	if layout == LayoutWorldOnly {
		return []string{
			r.Rank, r.PlayerName, r.World,
			r.Score, r.Wins, r.ScoreDelta, r.WinsDelta,
		}
	}
	return []string{
		r.Rank, r.PlayerName, r.World, r.Group,
		r.Score, r.Wins, r.ScoreDelta, r.WinsDelta,
	}
}

// Batch is every record of one run in row order. Records are never merged, the same
// player showing up twice produces two records.
type Batch struct {
	Layout  Layout
	Records []Record
}

func (b Batch) Len() int {
	return len(b.Records)
}

func (b Batch) Empty() bool {
	return len(b.Records) == 0
}

// Rows returns the header followed by one row per record.
func (b Batch) Rows() [][]string {
	rows := make([][]string, 0, len(b.Records)+1)
	rows = append(rows, b.Layout.Header())
	for _, r := range b.Records {
		rows = append(rows, r.Values(b.Layout))
	}
	return rows
}
