package selection

import (
	"regexp"
	"strconv"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// lastOrdinal stands for "the last one".
const lastOrdinal = -1

// Patterns run on folded text.
var (
	markedNumber = regexp.MustCompile(`(?:^|\b)(?:thu|so|no\.?|number|option|lua chon)\s*(\d{1,2})\b|#\s*(\d{1,2})\b`)
	suffixNumber = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)\b`)
	bareNumber   = regexp.MustCompile(`^(\d{1,2})$`)
	vietWord     = regexp.MustCompile(`\bthu (nhat|hai|ba|tu|bon|nam|sau|bay|tam|chin|muoi)\b`)
	englishWord  = regexp.MustCompile(`(?:^|\bthe )(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\b`)
	lastWord     = regexp.MustCompile(`\b(?:cuoi cung|cuoi|last)\b`)
)

var ordinalWords = map[string]int{
	"nhat": 1, "first": 1,
	"hai": 2, "second": 2,
	"ba": 3, "third": 3,
	"tu": 4, "bon": 4, "fourth": 4,
	"nam": 5, "fifth": 5,
	"sau": 6, "sixth": 6,
	"bay": 7, "seventh": 7,
	"tam": 8, "eighth": 8,
	"chin": 9, "ninth": 9,
	"muoi": 10, "tenth": 10,
}

// parseOrdinal finds a 1-based position such as "xe thứ 2", "the 2nd one", "#3",
// "thứ hai" or "cái cuối". It returns lastOrdinal for "last".
func parseOrdinal(text string) (int, bool) {
	text = model.Fold(text)
	if text == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{markedNumber, suffixNumber, bareNumber} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if n, err := strconv.Atoi(g); err == nil {
				return n, true
			}
		}
	}
	for _, re := range []*regexp.Regexp{vietWord, englishWord} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, ok := ordinalWords[m[1]]; ok {
				return n, true
			}
		}
	}
	if lastWord.MatchString(text) {
		return lastOrdinal, true
	}
	return 0, false
}
