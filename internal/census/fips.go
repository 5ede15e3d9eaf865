package census

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/model"
)

// NormalizeStateFIPS normalizes a state FIPS code to 2 digits with zero-padding.
func NormalizeStateFIPS(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if len(code) == 1 {
		return "0" + code
	}
	return code
}

// NormalizeCountyFIPS normalizes a county FIPS code to 3 digits with zero-padding.
func NormalizeCountyFIPS(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for len(code) < 3 {
		code = "0" + code
	}
	return code
}

// CombineFIPS combines state and county FIPS codes into a 5-digit code.
func CombineFIPS(state, county string) string {
	s := NormalizeStateFIPS(state)
	c := NormalizeCountyFIPS(county)
	if s == "" || c == "" {
		return ""
	}
	return s + c
}

// SplitCountyFIPS splits a 5-digit county FIPS into its state and county
// parts, as the API's in= geography clause wants them.
func SplitCountyFIPS(countyFIPS string) (state, county string, err error) {
	countyFIPS = strings.TrimSpace(countyFIPS)
	if len(countyFIPS) != model.CountyFIPSLen {
		return "", "", eris.Errorf("census: county fips %q is %d chars, want %d", countyFIPS, len(countyFIPS), model.CountyFIPSLen)
	}
	return countyFIPS[:2], countyFIPS[2:], nil
}

// FormatFIPS formats a numeric FIPS code with proper zero-padding.
func FormatFIPS(code int, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}
