package classifier

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	// timestampPrefix matches one or more leading "Day N, HH:MM:SS:" stamps.
	timestampPrefix = regexp.MustCompile(`^(?:Day[\s\p{Zs}]+\d+,[\s\p{Zs}]*\d{1,2}:\d{2}:\d{2}:[\s\p{Zs}]*)+`)

	// markupTag matches color markup and its closing "</>".
	markupTag = regexp.MustCompile(`(?i)<\s*RichColor[^<>]*>|<\s*/\s*(?:RichColor\s*)?>`)

	stripControl = runes.Remove(runes.Predicate(func(r rune) bool {
		return r < 0x20 || r == 0x7f
	}))
)

// metadataTokens are internal field names that appear as standalone lines
// in the string table and carry no log content.
var metadataTokens = map[string]bool{
	"TribeName":         true,
	"TribeID":           true,
	"OwnerPlayerDataID": true,
	"TargetingTeam":     true,
	"LogIndex":          true,
	"TribeLog":          true,
}

// Clean strips timestamps, color markup and control characters from text
// and drops whitespace-only or metadata lines. Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	kept := lines[:0]
	for _, line := range lines {
		line = cleanLine(line)
		if line == "" || isMetadata(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func cleanLine(line string) string {
	line, _, _ = transform.String(stripControl, line)
	for {
		next := markupTag.ReplaceAllString(line, "")
		if next == line {
			break
		}
		line = next
	}
	// Trimming can expose another stamp, so strip until neither changes.
	for {
		line = strings.TrimSpace(line)
		next := timestampPrefix.ReplaceAllString(line, "")
		if next == line {
			return line
		}
		line = next
	}
}

func isMetadata(line string) bool {
	head := line
	if i := strings.IndexAny(line, " :="); i >= 0 {
		head = line[:i]
	}
	return metadataTokens[head]
}
