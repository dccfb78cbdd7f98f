package ranking

// Selectors locate the ranking table on a page, they are css selectors except for the
// button texts which are matched as substrings of the button label.
type Selectors struct {
	Table string
	Rows  string
	// Cells are evaluated relative to a row.
	Cells         map[Field]string
	ConsentText   string
	SecondaryText string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Table: ".cc-ranking__table",
		Rows:  ".cc-ranking__table > div",
		Cells: map[Field]string{
			FieldOrder:  ".order",
			FieldName:   ".name",
			FieldPoints: ".points",
			FieldWins:   ".wins",
		},
		ConsentText:   "Accept",
		SecondaryText: "Show More",
	}
}
