package importer

import "io"

// SimpleParser reads any CSV with a header naming at least the date,
// description and amount columns, in any order and casing. Optional
// columns are reference and memo. Dates are ISO (2006-01-02).
type SimpleParser struct{}

var simpleLayout = layout{
	name:        "simple",
	dateFormat:  "2006-01-02",
	date:        "date",
	description: "description",
	amount:      "amount",
	reference:   "reference",
	memo:        "memo",
}

// Format returns the parser name.
func (p *SimpleParser) Format() string { return "simple" }

// Parse reads the CSV and returns its statement lines.
func (p *SimpleParser) Parse(r io.Reader) ([]StatementLine, error) {
	return simpleLayout.parse(r)
}
