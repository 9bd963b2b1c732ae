package extract

import (
	"regexp"
	"strings"

	"github.com/ziadkadry99/docchat/internal/store"
)

// maxEntities bounds the entity list for a document.
const maxEntities = 100

// entityPatterns classify spans of text. Order matters: earlier kinds win
// when spans overlap, so an email is never reported as a name.
var entityPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{"url", regexp.MustCompile(`https?://[^\s<>"')]+`)},
	{"date", regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? \d{1,2},? \d{4}\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	{"money", regexp.MustCompile(`[$€£]\s?\d+(?:,\d{3})*(?:\.\d+)?(?:\s?(?:million|billion|[KkMmBb]))?`)},
	{"percent", regexp.MustCompile(`\b\d+(?:\.\d+)?\s?%`)},
	{"name", regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)},
}

// nameStopwords are sentence openers that make a capitalized run read like
// prose rather than a proper name.
var nameStopwords = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"A": true, "An": true, "And": true, "But": true, "Or": true, "If": true,
	"In": true, "On": true, "At": true, "By": true, "For": true, "To": true,
	"As": true, "Our": true, "Your": true, "Their": true, "His": true,
	"Her": true, "Its": true, "My": true, "It": true, "We": true,
	"They": true, "When": true, "Where": true, "While": true, "After": true,
	"Before": true, "Please": true, "See": true, "Note": true,
}

// Entities scans text for named entities: emails, URLs, dates, money
// amounts, percentages, and capitalized name runs. Each distinct entity is
// reported once with its occurrence count, in first-seen order.
func Entities(text string) []store.Entity {
	claimed := make([]bool, len(text))
	index := make(map[string]int)
	var entities []store.Entity

	for _, p := range entityPatterns {
		for _, span := range p.re.FindAllStringIndex(text, -1) {
			if overlaps(claimed, span[0], span[1]) {
				continue
			}
			match := strings.TrimSpace(text[span[0]:span[1]])
			if p.kind == "name" && nameStopwords[firstWord(match)] {
				continue
			}
			claim(claimed, span[0], span[1])

			key := p.kind + "\x00" + match
			if i, ok := index[key]; ok {
				entities[i].Count++
				continue
			}
			if len(entities) >= maxEntities {
				continue
			}
			index[key] = len(entities)
			entities = append(entities, store.Entity{Text: match, Kind: p.kind, Count: 1})
		}
	}
	return entities
}

func overlaps(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

func claim(claimed []bool, start, end int) {
	for i := start; i < end; i++ {
		claimed[i] = true
	}
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
