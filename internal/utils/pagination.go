// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead. The scan-log read API
// uses it for its page and event-filter query parameters.
//
// Example:
//
//	n := utils.AtoiDefault("2", 1)        // returns 2
//	n = utils.AtoiDefault("", 20)         // returns 20 (default page size)
//	n = utils.AtoiDefault("garbage", 20)  // returns 20
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
