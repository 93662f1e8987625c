package report

import (
	"mime"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Filename builds a report file name from disc metadata.
// This is a pure function: (performer, album, upc, discID) → filename
//
// Format: Performer-Album-UPC.json, dropping empty parts. With no performer
// or album the disc ID stands in; with nothing at all the result is
// "ddp-report.json".
//
// Character handling:
// - Non-ASCII → normalized to ASCII equivalents (ō→o, é→e)
// - Spaces, path separators and shell metacharacters → underscores
// - Quotes (' " `) → removed
// - Runs of underscores collapsed, leading/trailing underscores trimmed
func Filename(performer, album, upc, discID string) string {
	var parts []string
	for _, p := range []string{performer, album} {
		if s := sanitize(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if s := sanitize(discID); s != "" {
			parts = append(parts, s)
		}
	}
	if s := sanitize(upc); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "ddp-report.json"
	}
	return strings.Join(parts, "-") + ".json"
}

// CoverFilename derives the cover image name from a report file name and
// the image MIME type.
func CoverFilename(reportName, mimeType string) string {
	base := strings.TrimSuffix(reportName, ".json")
	ext := ".jpg"
	switch mimeType {
	case "image/png":
		ext = ".png"
	case "image/jpeg", "":
	default:
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return base + "-cover" + ext
}

// sanitize prepares a string for use in a filename.
func sanitize(s string) string {
	s = normalizeToASCII(s)

	var b strings.Builder
	b.Grow(len(s))

	lastWasUnderscore := false
	for _, r := range s {
		switch r {
		case '\'', '"', '`':
		case ' ', '\t', '/', '\\', ':',
			'$', '!', '*', '?', '[', ']', '(', ')', '{', '}',
			'<', '>', '|', '&', ';', '#', '~':
			if !lastWasUnderscore {
				b.WriteByte('_')
				lastWasUnderscore = true
			}
		default:
			if r < 0x20 || r == 0x7f {
				continue
			}
			b.WriteRune(r)
			lastWasUnderscore = r == '_'
		}
	}

	return strings.Trim(b.String(), "_")
}

// normalizeToASCII decomposes with NFKD, drops combining marks and strips
// whatever is still outside ASCII.
func normalizeToASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, _ := transform.String(t, s)

	var b strings.Builder
	for _, r := range result {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
