package importer

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewCSVReader wraps r for import: a leading byte order mark is removed
// (UTF-16 files are decoded to UTF-8) and invalid UTF-8 is replaced with
// U+FFFD. Records may have a varying number of fields.
func NewCSVReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}
