/*
Package markup handles the HTML-ish message markup carried by both
sub-protocols.

It converts between raw formatted payloads and plain text, wraps outgoing
private messages in paragraph tags, escapes badword filter entries into
regular expressions, and encodes the font prefix registered users send in
front of room messages.
*/
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	anonSeedPattern  = regexp.MustCompile(`^<n(\d+)/>`)
	paragraphPattern = regexp.MustCompile(`</P><P>`)
)

// badwordSpecials is the punctuation set escaped when a badword entry is
// turned into a pattern.
const badwordSpecials = `\.^$*+?{}[]|()`

// StripTags removes every markup tag from a raw payload.
func StripTags(raw string) string {
	return tagPattern.ReplaceAllString(raw, "")
}

// PlainText converts a raw formatted payload to display text: tags are
// stripped and HTML entities (named and numeric) are unescaped.
func PlainText(raw string) string {
	return html.UnescapeString(StripTags(raw))
}

// ParagraphsToLines converts an incoming private-message payload to plain
// text: paragraph boundaries become newlines, then all tags are stripped.
func ParagraphsToLines(raw string) string {
	return StripTags(paragraphPattern.ReplaceAllString(raw, "\n"))
}

// WrapParagraphs prepares outgoing private-message text: each line is
// wrapped in a paragraph tag and tabs are replaced with the spacer sequence
// the PM server expects.
func WrapParagraphs(text string) string {
	lines := strings.Split(text, "\n")
	wrapped := "<P>" + strings.Join(lines, "</P><P>") + "</P>"
	return strings.ReplaceAll(wrapped, "\t", " \x01 \x01 \x01 \x01")
}

// AnonSeed extracts the timestamp hint from a leading name-color tag
// (<n1234/>), or returns the empty string.
func AnonSeed(raw string) string {
	m := anonSeedPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

// EscapeBadword escapes regex metacharacters in one badword list entry.
func EscapeBadword(word string) string {
	var b strings.Builder
	for _, r := range word {
		if strings.ContainsRune(badwordSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CompileBadwords turns the decoded badword list into case-insensitive
// patterns, preserving list order. Entries that still fail to compile after
// escaping are skipped.
func CompileBadwords(words []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + EscapeBadword(word))
		if err != nil {
			continue
		}
		patterns = append(patterns, re)
	}
	return patterns
}

// fontFamilyCodes maps family names to the wire codes embedded in the font
// markup prefix.
var fontFamilyCodes = map[string]string{
	"arial":       "0",
	"comic":       "1",
	"georgia":     "2",
	"handwriting": "3",
	"impact":      "4",
	"palatino":    "5",
	"papyrus":     "6",
	"times":       "7",
	"typewriter":  "8",
}

// Font describes the markup prefix registered users send with room
// messages. Zero values render as empty markup fields.
type Font struct {
	Size   int
	Family string
	Color  string
	Name   string
}

// Markup renders the font prefix in wire form.
func (f Font) Markup() string {
	size := ""
	if f.Size > 0 {
		size = fmt.Sprintf("%d", f.Size)
	}
	return fmt.Sprintf(`<n%s/><f x%s%s="%s">`, f.Name, size, f.Color, fontFamilyCodes[f.Family])
}
