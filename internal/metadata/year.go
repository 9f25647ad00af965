// File: internal/metadata/year.go
package metadata

import (
	"strconv"
	"time"
	"unicode"
)

// yearFields are the metadata keys consulted for a creation year, in
// priority order. EXIF date tags first, then the container-level fields
// various probers emit.
var yearFields = []string{
	"DateTimeOriginal",
	"DateTimeDigitized",
	"DateTime",
	"Creation Time",
	"creation time",
	"Date",
	"date",
	"creation_time",
}

// InferYear picks the most trustworthy creation year out of the flattened
// field map. A candidate is accepted only when it falls in (1900, current
// year]; anything else is treated as junk and the next field is tried.
// Returns 0 when no field yields a plausible year.
func InferYear(fields map[string]string) int {
	maxYear := time.Now().Year()
	for _, key := range yearFields {
		val, ok := fields[key]
		if !ok {
			continue
		}
		y := leadingYear(val)
		if y > 1900 && y <= maxYear {
			return y
		}
	}
	return 0
}

// leadingYear extracts the first run of exactly four digits from a date
// string. Handles EXIF's "2023:12:14 10:30:45" as well as ISO-style
// "2023-12-14T10:30:45Z" timestamps.
func leadingYear(s string) int {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start == 4 {
				y, _ := strconv.Atoi(s[start:i])
				return y
			}
			start = -1
		}
	}
	if start >= 0 && len(s)-start == 4 {
		y, _ := strconv.Atoi(s[start:])
		return y
	}
	return 0
}
