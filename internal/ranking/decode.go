package ranking

import (
	"fmt"

	"ccranking/pkg/textutil"
)

// Field is the logical name of a cell in a ranking row.
type Field string

const (
	FieldOrder  Field = "order"
	FieldName   Field = "name"
	FieldPoints Field = "points"
	FieldWins   Field = "wins"
)

// Fields lists every field the decoder reads, in reading order.
var Fields = []Field{FieldOrder, FieldName, FieldPoints, FieldWins}

// RawRow is the unparsed text of one ranking row. It may be stale by the time it
// is read, an empty string is a valid value, an error means the field could not be read at all.
type RawRow interface {
	Text(field Field) (string, error)
}

// Snapshot is a RawRow captured in one go, fields missing from Texts read as "".
type Snapshot struct {
	Index  int
	Texts  map[Field]string
	Errors map[Field]error
}

func (s Snapshot) Text(field Field) (string, error) {
	if err := s.Errors[field]; err != nil {
		return "", err
	}
	return s.Texts[field], nil
}

const ReasonFieldRead = "field read error"

// DecodeError is returned when a row cannot become a Record, the row should be skipped.
type DecodeError struct {
	Reason string
	Field  Field
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode row: %s (%s): %v", e.Reason, e.Field, e.Cause)
	}
	return fmt.Sprintf("decode row: %s (%s)", e.Reason, e.Field)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Decode turns a RawRow into a Record. Nothing is partially emitted, any field that
// fails to read fails the whole row with a *DecodeError. Empty fields, the rank
// included, decode to empty strings.
func Decode(raw RawRow, layout Layout) (Record, error) {
	texts := make(map[Field]string, len(Fields))
	for _, field := range Fields {
		text, err := raw.Text(field)
		if err != nil {
			return Record{}, &DecodeError{Reason: ReasonFieldRead, Field: field, Cause: err}
		}
		texts[field] = textutil.Clean(text)
	}

	playerName, affiliation := textutil.SplitHeadTokens(texts[FieldName])
	world, group := textutil.SplitBracketed(affiliation)
	if layout == LayoutWorldOnly {
		group = ""
	}

	score, scoreDelta := textutil.SplitMetricPair(texts[FieldPoints])
	wins, winsDelta := textutil.SplitMetricPair(texts[FieldWins])

	return Record{
		Rank:       texts[FieldOrder],
		PlayerName: playerName,
		World:      world,
		Group:      group,
		Score:      score,
		ScoreDelta: textutil.StripSign(scoreDelta),
		Wins:       wins,
		WinsDelta:  textutil.StripSign(winsDelta),
	}, nil
}
