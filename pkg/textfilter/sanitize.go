package textfilter

import (
	"regexp"
	"strings"
)

var (
	// Directive lines the model sometimes writes into the prose instead of the payload.
	directiveLine = regexp.MustCompile(`(?im)^[ \t]*(?:\[[ \t]*(?:SCENE|AVATAR|IMAGE|VISUAL)\b[^\]\n]*\]|(?:UPDATE_SCENE|UPDATE_AVATAR|VISUAL_PROMPT|SCENE_PROMPT|AVATAR_PROMPT)[ \t]*:)[^\n]*(?:\n|$)`)

	// Dice delimiter blocks, possibly spanning lines.
	diceBlock = regexp.MustCompile(`(?is)\[\[[ \t]*(?:ROLL|DICE)\b.*?\]\]|<<[ \t]*(?:ROLL|DICE)\b.*?>>`)

	// Partial separators left at the end of the prose, e.g. "---", "[JSON_DATA]", "--- [JSON".
	trailingFragment = regexp.MustCompile(`(?i)(?:\s*-{2,}[ \t]*(?:\[[ \t]*JSON(?:[_ ]?DATA)?[ \t]*\]?[ \t]*-*)?|\s*\[[ \t]*JSON(?:[_ ]?DATA)?[ \t]*\]?[ \t]*-*|\s*\bJSON_DATA\b[ \t]*-*)+\s*$`)

	blankRun = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// Sanitize strips protocol debris from narrative prose before display:
// leaked scene and avatar directive lines, dice delimiter blocks and
// dangling separator fragments at the end of the text. Runs of blank lines
// collapse to one and the result is trimmed. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	out := strings.ReplaceAll(text, "\r\n", "\n")
	// Removing one kind of debris can expose another, so repeat until stable.
	for {
		next := diceBlock.ReplaceAllString(out, "")
		next = directiveLine.ReplaceAllString(next, "")
		next = trailingFragment.ReplaceAllString(next, "")
		if next == out {
			break
		}
		out = next
	}
	out = blankRun.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
