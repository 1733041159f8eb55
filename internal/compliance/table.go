package compliance

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultScanLimit bounds the number of lines read after the table header
const DefaultScanLimit = 40

// ErrNoTable is returned when the text has no recognisable line-item header
var ErrNoTable = errors.New("no line-item table found")

var (
	// A header names a description-like column followed by a price-like column
	tableHeaderPattern = regexp.MustCompile(`(?i)(description|quantity|qty).*?(unit|price|amount|vat)`)
	// The item block ends at the first subtotal line
	subtotalPattern = regexp.MustCompile(`(?i)\bsub[\s-]?total\b|\btotal\s+net\b|\bnet\s+total\b`)
)

// SplitLines normalises line endings and returns trimmed, non-empty lines
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// LocateTable finds the line-item table in raw invoice text and returns the
// lines between its header and the first subtotal line, at most scanLimit of
// them. It returns ErrNoTable when no header line exists.
func LocateTable(text string, scanLimit int) ([]string, error) {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}

	lines := SplitLines(text)
	headerIndex := -1
	for i, l := range lines {
		if isTableHeader(l) {
			headerIndex = i
			break
		}
	}
	if headerIndex == -1 {
		return nil, ErrNoTable
	}

	rows := []string{}
	for _, l := range lines[headerIndex+1:] {
		if subtotalPattern.MatchString(l) || len(rows) >= scanLimit {
			break
		}
		rows = append(rows, l)
	}
	return rows, nil
}

func isTableHeader(line string) bool {
	return tableHeaderPattern.MatchString(line)
}
