package census

import (
	"strconv"
	"strings"
)

// parseCountOr parses a tabulation cell as a non-negative count. Empty
// cells, letter suppression flags, and the API's negative jam values
// (-666666666 and friends) all collapse to def.
func parseCountOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "N" || s == "S" || s == "D" || s == "G" || s == "H" || s == "J" || s == "K" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// parseFloatOr parses a cell as a float64, returning def when the cell is
// empty, flagged, or negative-jammed.
func parseFloatOr(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "*" || s == "**" || s == "#" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// trimQuotes removes surrounding double quotes from a CSV field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// mapColumns builds a column name → index map from an API or file header.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.TrimSpace(col)] = i
	}
	return m
}

// getCol gets a column value by name, empty when absent.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}
