package fat

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
)

var shortNameLower = cases.Lower(language.Und)

// decodeOEM decodes raw CP437-encoded short-name bytes (DOS 8.3 names are
// OEM-encoded; bytes >= 0x80 are not ASCII) into UTF-8. Decode errors fall
// back to a byte-for-byte passthrough rather than failing the scan: a
// cosmetic mis-decode of an exotic byte is not grounds for losing the
// listing entirely.
func decodeOEM(raw []byte) string {
	out, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// synthesizeShortName builds the lowercased "name.ext" display form from
// the 11-byte short-name field (spec §4.3 step 6): lowercase bytes 0..7
// until NUL or whitespace, append '.', lowercase bytes 8..10 until NUL or
// whitespace; if no extension chars were emitted, drop the trailing dot.
func synthesizeShortName(sfn [11]byte) string {
	body := trimNameField(sfn[0:8])
	ext := trimNameField(sfn[8:11])

	name := shortNameLower.String(decodeOEM(body))
	if len(ext) == 0 {
		return name
	}
	return name + "." + shortNameLower.String(decodeOEM(ext))
}

// trimNameField returns the prefix of b up to (not including) the first
// NUL or ASCII whitespace byte.
func trimNameField(b []byte) []byte {
	for i, c := range b {
		if c == 0 || c == ' ' || (c >= '\t' && c <= '\r') {
			return b[:i]
		}
	}
	return b
}
