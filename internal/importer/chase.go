package importer

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ChaseParser parses Chase bank checking CSV exports:
//
//	Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
type ChaseParser struct{}

var chaseLayout = layout{
	name:        "chase",
	dateFormat:  "01/02/2006",
	date:        "Posting Date",
	description: "Description",
	amount:      "Amount",
	kind:        "Type",
	memo:        "Details",
	ref:         chaseReference,
}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns its statement lines.
func (p *ChaseParser) Parse(r io.Reader) ([]StatementLine, error) {
	return chaseLayout.parse(r)
}

// chaseReference keys checks by number and other lines by day and the first
// ten letters or digits of the description, e.g. chase_20250103_GITHUBPROS.
func chaseReference(line StatementLine, rec record) string {
	if check := rec.get("Check or Slip #"); check != "" {
		return "chase_check_" + check
	}
	var key strings.Builder
	for _, r := range line.Description {
		if key.Len() == 10 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			key.WriteRune(r)
		}
	}
	return fmt.Sprintf("chase_%s_%s", line.Date.Format("20060102"), key.String())
}
