package mysql

import "strings"

// stringOrDash returns "-" when the input is empty/whitespace, so
// non-nullable identity columns never receive an empty string.
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
