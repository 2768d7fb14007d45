package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var vietD = strings.NewReplacer("đ", "d", "Đ", "d")

// Fold lowercases s, strips diacritics and collapses whitespace so "Xe  Thứ 2" and
// "xe thu 2" compare equal. Names typed by customers are matched in this form.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, vietD.Replace(s))
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
