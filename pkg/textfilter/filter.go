package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const censored = "[censored]"

// Ordered longest first so compound words win over their stems.
var replacements = []struct {
	word, with string
}{
	{"motherfucker", "mother-trucker"},
	{"jesus christ", "jeez"},
	{"douchebag", "jerk"},
	{"horseshit", "nonsense"},
	{"bullshit", "baloney"},
	{"shithead", "jerk"},
	{"dickhead", "jerk"},
	{"goddamn", "gosh-dang"},
	{"asshole", "jerk"},
	{"dumbass", "dummy"},
	{"jackass", "jerk"},
	{"smartass", "smarty"},
	{"dipshit", "dummy"},
	{"bastard", "jerk"},
	{"christ", "crikey"},
	{"douche", "jerk"},
	{"bitch", "jerk"},
	{"prick", "jerk"},
	{"whore", censored},
	{"pussy", censored},
	{"fuck", "fudge"},
	{"shit", "shoot"},
	{"damn", "dang"},
	{"hell", "heck"},
	{"crap", "crud"},
	{"piss", "ticked"},
	{"cock", censored},
	{"dick", "jerk"},
	{"slut", censored},
	{"tits", censored},
	{"ass", "butt"},
}

type rule struct {
	re   *regexp.Regexp
	with string
}

// ContentFilter rewrites displayed narrative for family-friendly content
// ratings. A nil *ContentFilter passes text through unchanged.
type ContentFilter struct {
	rules []rule
}

// NewContentFilter returns a filter for the given rating, or nil when the
// rating does not call for filtering.
func NewContentFilter(rating string) *ContentFilter {
	if !ShouldFilterContent(rating) {
		return nil
	}
	f := &ContentFilter{}
	for _, r := range replacements {
		// optional plural suffix, e.g. "bastards" -> "jerks"
		f.rules = append(f.rules, rule{
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(r.word) + `(e?s)?\b`),
			with: r.with,
		})
	}
	return f
}

// Apply returns text with every listed word replaced, keeping the case
// shape of the original.
func (f *ContentFilter) Apply(text string) string {
	if f == nil || text == "" {
		return text
	}
	for _, r := range f.rules {
		text = r.re.ReplaceAllStringFunc(text, func(match string) string {
			stem, plural := splitPlural(match, r.re)
			out := matchCase(stem, r.with)
			if plural != "" && r.with != censored {
				out += matchCase(plural, "s")
			}
			return out
		})
	}
	return text
}

// Contains reports whether text holds any listed word.
func (f *ContentFilter) Contains(text string) bool {
	if f == nil {
		return false
	}
	for _, r := range f.rules {
		if r.re.MatchString(text) {
			return true
		}
	}
	return false
}

func splitPlural(match string, re *regexp.Regexp) (string, string) {
	sub := re.FindStringSubmatchIndex(match)
	if sub == nil || sub[2] < 0 {
		return match, ""
	}
	return match[:sub[2]], match[sub[2]:]
}

func matchCase(original, replacement string) string {
	title := cases.Title(language.English)
	switch {
	case original == "":
		return replacement
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return strings.ToLower(replacement)
	case title.String(strings.ToLower(original)) == original:
		return title.String(replacement)
	}

	orig := []rune(original)
	out := []rune(replacement)
	for i, r := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(r)
		} else {
			out[i] = unicode.ToLower(r)
		}
	}
	return string(out)
}

// ShouldFilterContent reports whether a content rating calls for filtering.
func ShouldFilterContent(rating string) bool {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}
