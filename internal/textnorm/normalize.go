// Package textnorm cleans resume and job text and extracts skills from it.
//
// Output is deterministic: the same input always produces the same
// normalized string and the same sorted skill list.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	reHTMLTag  = regexp.MustCompile(`<[^>]*>`)
	reEntity   = regexp.MustCompile(`&[a-zA-Z]+;|&#[0-9]+;`)
	reURL      = regexp.MustCompile(`https?://\S+|www\.\S+`)
	reEmail    = regexp.MustCompile(`\S+@\S+\.\S+`)
	reSpaces   = regexp.MustCompile(`\s+`)
	maxNGram   = 3
	stopTitles = map[string]bool{
		"and": true, "the": true, "for": true, "with": true, "of": true,
		"a": true, "an": true, "to": true, "in": true, "at": true, "m": true, "f": true,
	}
)

// Result is the normalized form of one text.
type Result struct {
	Text   string
	Skills []string
}

// Normalizer matches text against a controlled skill vocabulary.
type Normalizer struct {
	// stemmed phrase -> canonical skill
	lookup map[string]string
}

// New builds a Normalizer from the built-in vocabulary plus extra skills
// (one phrase each; blank entries ignored).
func New(extra ...string) *Normalizer {
	n := &Normalizer{lookup: make(map[string]string)}
	for canonical, aliases := range builtinVocabulary {
		n.add(canonical, aliases...)
	}
	for _, s := range extra {
		if c := Clean(s); c != "" {
			if _, ok := n.lookup[stemPhrase(c)]; !ok {
				n.add(c)
			}
		}
	}
	return n
}

func (n *Normalizer) add(canonical string, aliases ...string) {
	canonical = Clean(canonical)
	if canonical == "" {
		return
	}
	n.lookup[stemPhrase(canonical)] = canonical
	for _, a := range aliases {
		if a = Clean(a); a != "" {
			n.lookup[stemPhrase(a)] = canonical
		}
	}
}

// Normalize lower-cases raw, strips markup and contact noise, tokenizes, and
// extracts vocabulary skills. Empty or whitespace-only input yields a zero
// Result.
func (n *Normalizer) Normalize(raw string) Result {
	text := Clean(raw)
	if text == "" {
		return Result{}
	}
	return Result{
		Text:   text,
		Skills: n.extract(strings.Split(text, " ")),
	}
}

// CanonicalSkill maps a free-form skill to its vocabulary name, or to its
// cleaned form when it is not in the vocabulary.
func (n *Normalizer) CanonicalSkill(skill string) string {
	c := Clean(skill)
	if c == "" {
		return ""
	}
	if canonical, ok := n.lookup[stemPhrase(c)]; ok {
		return canonical
	}
	return c
}

// CanonicalSkills canonicalizes, dedupes, and sorts skills.
func (n *Normalizer) CanonicalSkills(skills []string) []string {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if c := n.CanonicalSkill(s); c != "" {
			set[c] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func (n *Normalizer) extract(tokens []string) []string {
	found := make(map[string]struct{})
	stems := make([]string, len(tokens))
	for i, t := range tokens {
		stems[i] = stem(t)
	}
	for size := maxNGram; size >= 1; size-- {
		for i := 0; i+size <= len(stems); i++ {
			if canonical, ok := n.lookup[strings.Join(stems[i:i+size], " ")]; ok {
				found[canonical] = struct{}{}
			}
		}
	}
	return sortedKeys(found)
}

// Clean lower-cases s and reduces it to single-space separated tokens. Letters
// and digits are kept, as are '+' and '#' so that "c++" and "c#" survive; a
// '.' is kept only between two word characters ("node.js").
func Clean(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = reHTMLTag.ReplaceAllString(s, " ")
	s = reEntity.ReplaceAllString(s, " ")
	s = reURL.ReplaceAllString(s, " ")
	s = reEmail.ReplaceAllString(s, " ")
	s = strings.ToLower(s)

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#':
			b.WriteRune(r)
		case r == '.' && i > 0 && i+1 < len(runes) && isWord(runes[i-1]) && isWord(runes[i+1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(reSpaces.ReplaceAllString(b.String(), " "))
}

// ContainsPhrase reports whether phrase occurs in text as whole tokens.
// Both arguments are cleaned first.
func ContainsPhrase(text, phrase string) bool {
	p := Clean(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+Clean(text)+" ", " "+p+" ")
}

// ContainsAny reports whether any phrase occurs in text (see ContainsPhrase).
func ContainsAny(text string, phrases []string) bool {
	if len(phrases) == 0 {
		return false
	}
	cleaned := " " + Clean(text) + " "
	for _, p := range phrases {
		if p = Clean(p); p != "" && strings.Contains(cleaned, " "+p+" ") {
			return true
		}
	}
	return false
}

func isWord(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// stem strips common English inflections so that "databases" matches
// "database" and "microservices" matches "microservice". Short tokens and
// tokens with symbols are left alone.
func stem(t string) string {
	if len(t) <= 3 || strings.ContainsAny(t, "+#.") {
		return t
	}
	switch {
	case strings.HasSuffix(t, "ies") && len(t) > 4:
		return t[:len(t)-3] + "y"
	case strings.HasSuffix(t, "sses"):
		return t[:len(t)-2]
	case strings.HasSuffix(t, "ing") && len(t) > 5:
		return t[:len(t)-3]
	case strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss") && !strings.HasSuffix(t, "us"):
		return t[:len(t)-1]
	}
	return t
}

func stemPhrase(p string) string {
	parts := strings.Split(p, " ")
	for i := range parts {
		parts[i] = stem(parts[i])
	}
	return strings.Join(parts, " ")
}

// TitleKeywords takes the first non-empty line of raw (the title of a job
// posting or the headline of a resume) and returns its significant tokens,
// sorted.
func TitleKeywords(raw string) []string {
	for _, line := range strings.Split(raw, "\n") {
		cleaned := Clean(line)
		if cleaned == "" {
			continue
		}
		set := make(map[string]struct{})
		for _, t := range strings.Split(cleaned, " ") {
			if len(t) > 1 && !stopTitles[t] {
				set[t] = struct{}{}
			}
		}
		return sortedKeys(set)
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
