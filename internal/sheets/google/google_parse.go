package google

import (
	"fmt"
	"strings"
)

// findRow returns the 1-based sheet row holding number in column A, or 0.
// The header row is never matched.
func findRow(values [][]interface{}, number string) int {
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if strings.TrimSpace(safeGet(row, 0)) == number {
			return i + 1
		}
	}
	return 0
}

// hasHeader reports whether the first row already carries the ledger header.
func hasHeader(values [][]interface{}, header []string) bool {
	if len(values) == 0 {
		return false
	}
	return indexOf(toStrings(values[0]), header[0]) == 0
}

func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
