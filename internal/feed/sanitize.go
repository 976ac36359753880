package feed

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	xmlDeclPattern = regexp.MustCompile(`(?i)<\?xml[^>]*\?>`)
	utf8Bom        = []byte{0xEF, 0xBB, 0xBF}
)

// Entities that show up double-encoded in broken feeds.
var doubleEncoded = [][2]string{
	{"&amp;amp;", "&amp;"},
	{"&amp;lt;", "&lt;"},
	{"&amp;gt;", "&gt;"},
	{"&amp;quot;", "&quot;"},
	{"&amp;#", "&#"},
}

// sanitizeXML repairs the common defects of real-world feed documents: BOM,
// stray control characters, double-encoded entities, unterminated CDATA and
// lying encoding declarations.
func sanitizeXML(raw []byte) []byte {
	raw = bytes.TrimPrefix(raw, utf8Bom)

	s := stripControlBytes(string(raw))

	for _, pair := range doubleEncoded {
		for strings.Contains(s, pair[0]) {
			s = strings.ReplaceAll(s, pair[0], pair[1])
		}
	}

	if open, closed := strings.Count(s, "<![CDATA["), strings.Count(s, "]]>"); open > closed {
		s += strings.Repeat("]]>", open-closed)
	}

	decl := `<?xml version="1.0" encoding="UTF-8"?>`
	if xmlDeclPattern.MatchString(s) {
		s = xmlDeclPattern.ReplaceAllString(s, decl)
	} else {
		s = decl + "\n" + s
	}

	return []byte(s)
}

// stripControlBytes removes control characters that are illegal in XML,
// keeping tab, newline and carriage return.
func stripControlBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if r == 0xFFFD {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
