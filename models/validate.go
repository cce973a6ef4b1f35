package models

import (
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Truncate returns at most max characters of s, cutting on rune boundaries.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
