// Package utils holds tiny helpers shared across layers, with no domain
// knowledge of their own.
package utils

import "strconv"

// AtoiDefault parses s as an int and returns def when s is empty or not a
// valid integer. The order listing uses it to fold absent or junk
// page / page_size query values into their defaults rather than erroring.
//
// Example:
//
//	page := utils.AtoiDefault(c.Query("page"), 1)       // "" -> 1
//	size := utils.AtoiDefault(c.Query("page_size"), 20) // "abc" -> 20
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
