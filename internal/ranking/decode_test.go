package ranking

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func snapshot(order, name, points, wins string) Snapshot {
	return Snapshot{
		Texts: map[Field]string{
			FieldOrder:  order,
			FieldName:   name,
			FieldPoints: points,
			FieldWins:   wins,
		},
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		raw      Snapshot
		layout   Layout
		expected Record
	}{
		{
			name:   "full row",
			raw:    snapshot("12", "John Smith Mateus [Crystal]", "1500 +20", "40 +3"),
			layout: LayoutWorldAndGroup,
			expected: Record{
				Rank:       "12",
				PlayerName: "John Smith",
				World:      "Mateus",
				Group:      "Crystal",
				Score:      "1500",
				ScoreDelta: "20",
				Wins:       "40",
				WinsDelta:  "3",
			},
		},
		{
			name:   "world only drops group",
			raw:    snapshot("12", "John Smith Mateus [Crystal]", "1500 +20", "40 +3"),
			layout: LayoutWorldOnly,
			expected: Record{
				Rank:       "12",
				PlayerName: "John Smith",
				World:      "Mateus",
				Score:      "1500",
				ScoreDelta: "20",
				Wins:       "40",
				WinsDelta:  "3",
			},
		},
		{
			name:   "line breaks inside cells",
			raw:    snapshot(" 3\n", "Aaa\n  Bbb\nGilgamesh\n[Aether]", "1,234\n+56", "\t7\n"),
			layout: LayoutWorldAndGroup,
			expected: Record{
				Rank:       "3",
				PlayerName: "Aaa Bbb",
				World:      "Gilgamesh",
				Group:      "Aether",
				Score:      "1,234",
				ScoreDelta: "56",
				Wins:       "7",
			},
		},
		{
			name:   "no brackets keeps the whole affiliation as world",
			raw:    snapshot("1", "Aaa Bbb Mateus", "10", "1"),
			layout: LayoutWorldAndGroup,
			expected: Record{
				Rank:       "1",
				PlayerName: "Aaa Bbb",
				World:      "Mateus",
				Score:      "10",
				Wins:       "1",
			},
		},
		{
			name:   "single token name",
			raw:    snapshot("2", "Mononym", "", ""),
			layout: LayoutWorldAndGroup,
			expected: Record{
				Rank:       "2",
				PlayerName: "Mononym",
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			record, err := Decode(test.raw, test.layout)
			require.NoError(t, err)
			diff := cmp.Diff(test.expected, record)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestDecodeFieldReadError(t *testing.T) {
	detached := errors.New("node is detached from document")
	raw := snapshot("5", "", "100 +1", "2 +0")
	raw.Errors = map[Field]error{FieldName: detached}

	_, err := Decode(raw, LayoutWorldAndGroup)
	require.Error(t, err)
	require.ErrorIs(t, err, detached)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	require.Equal(t, ReasonFieldRead, decodeErr.Reason)
	require.Equal(t, FieldName, decodeErr.Field)
}

func TestDecodeEmptyRank(t *testing.T) {
	record, err := Decode(snapshot("  \n", "Aaa Bbb Mateus [Crystal]", "1 +1", "1 +1"), LayoutWorldAndGroup)
	require.NoError(t, err)
	require.Equal(t, Record{
		PlayerName: "Aaa Bbb",
		World:      "Mateus",
		Group:      "Crystal",
		Score:      "1",
		ScoreDelta: "1",
		Wins:       "1",
		WinsDelta:  "1",
	}, record)
}

func TestBatchRows(t *testing.T) {
	record := Record{
		Rank:       "12",
		PlayerName: "John Smith",
		World:      "Mateus",
		Group:      "Crystal",
		Score:      "1500",
		ScoreDelta: "20",
		Wins:       "40",
		WinsDelta:  "3",
	}

	batch := Batch{Layout: LayoutWorldAndGroup, Records: []Record{record, record}}
	rows := batch.Rows()
	require.Len(t, rows, 3)
	require.Equal(t, []string{
		"Rank", "Name", "World", "Datacenter",
		"Credits", "Victories", "Credits Gained", "Victories Gained",
	}, rows[0])
	require.Equal(t, []string{"12", "John Smith", "Mateus", "Crystal", "1500", "40", "20", "3"}, rows[1])
	require.Equal(t, rows[1], rows[2], "duplicates are kept")

	worldOnly := Batch{Layout: LayoutWorldOnly, Records: []Record{record}}.Rows()
	require.Len(t, worldOnly[0], 7)
	require.Equal(t, []string{"12", "John Smith", "Mateus", "1500", "40", "20", "3"}, worldOnly[1])

	require.True(t, Batch{}.Empty())
}

func TestParseLayout(t *testing.T) {
	for _, layout := range []Layout{LayoutWorldAndGroup, LayoutWorldOnly} {
		parsed, err := ParseLayout(layout.String())
		require.NoError(t, err)
		require.Equal(t, layout, parsed)
	}
	_, err := ParseLayout("group_only")
	require.Error(t, err)
}
