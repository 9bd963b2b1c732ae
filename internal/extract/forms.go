package extract

import (
	"regexp"
	"strings"

	"github.com/ziadkadry99/docchat/internal/store"
)

// formFieldPattern matches a short label followed by a colon and a value,
// the shape printed forms and cover sheets use.
var formFieldPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 /_.-]{0,40}?):\s+(\S.*)$`)

// FormFields scans text for label/value lines. Lines whose value reads
// like prose (long, sentence-ending) are skipped.
func FormFields(text string) []store.FormField {
	var fields []store.FormField
	for _, line := range strings.Split(text, "\n") {
		m := formFieldPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[2])
		if len(value) > 80 || strings.HasSuffix(value, ".") {
			continue
		}
		fields = append(fields, store.FormField{
			Label: strings.TrimSpace(m[1]),
			Value: value,
		})
	}
	return fields
}
