package assemble

import (
	"strings"
	"unicode"
)

// decodeAttributedBody pulls the visible text out of a typedstream
// attributedBody blob. Newer schema generations leave message.text NULL
// and store the content here. This is not a full typedstream decoder; it
// extracts the embedded NSString payload between the ASCII class markers,
// which covers the common case.
func decodeAttributedBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	s := string(body)

	idx := strings.Index(s, "NSNumber")
	if idx < 0 {
		return ""
	}
	s = s[:idx]

	parts := strings.SplitN(s, "NSString", 2)
	if len(parts) != 2 {
		return ""
	}
	s = parts[1]

	parts = strings.SplitN(s, "NSDictionary", 2)
	if len(parts) != 2 {
		return ""
	}
	s = parts[0]

	// Strip the length/type prefix and trailing archiver bytes.
	runes := []rune(s)
	if len(runes) < 6+12 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(runes[6 : len(runes)-12]))
}

// cleanMessageText drops non-printable and replacement characters that
// show up in extracted message content.
func cleanMessageText(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '￼', '�', '\x01', '\x00':
			continue
		}
		if unicode.IsPrint(r) || r == ' ' || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
