package intent

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Correction rewrites a common mis-transcription
type Correction struct {
	Pattern *regexp.Regexp
	Replace string
}

// DefaultWakeWord is the canonical wake word
const DefaultWakeWord = "piloto"

var defaultCorrections = []Correction{
	{regexp.MustCompile(`(?i)\b(?:g|ge|gê|gi|dji|jee)[\s-]?(?:mail|meil|meio|mel)\b`), "gmail"},
	{regexp.MustCompile(`(?i)\bout[\s-]?(?:look|luc|luk)\b`), "outlook"},
	{regexp.MustCompile(`(?i)\b(?:i|ai)[\s-]?(?:cloud|claud|clau)\b`), "icloud"},
	{regexp.MustCompile(`(?i)\b(?:e|i|ee)[\s-](mail|meil|meio)(s?)\b`), "email$2"},
	{regexp.MustCompile(`(?i)\b(?:imeio|imeil|emeio|imail)(s?)\b`), "email$1"},
	{regexp.MustCompile(`(?i)\bmensage\b`), "mensagem"},
}

// wake word near-misses, written against the folded form
var wakeWordVariants = map[string][]string{
	"piloto": {"pilotu", "piloti", "pi loto", "pi-loto", "biloto", "bilotu", "pilot", "pelotu", "peloto"},
}

var numberWords = map[string]string{
	"um": "1", "uma": "1", "primeiro": "1", "primeira": "1",
	"dois": "2", "duas": "2", "segundo": "2", "segunda": "2",
	"tres": "3", "terceiro": "3", "terceira": "3",
	"quatro": "4", "quarto": "4", "quarta": "4",
	"cinco": "5", "quinto": "5", "quinta": "5",
	"seis": "6", "sexto": "6", "sexta": "6",
	"sete": "7", "setimo": "7", "setima": "7",
	"oito": "8", "oitavo": "8", "oitava": "8",
	"nove": "9", "nono": "9", "nona": "9",
	"dez": "10", "decimo": "10", "decima": "10",
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
	"first": "1", "second": "2", "third": "3",
}

var numberAfterNoun = regexp.MustCompile(`\b(emails?|mensagem|mensagens|numero|message|mail)\s+(um|uma|dois|duas|tres|quatro|cinco|seis|sete|oito|nove|dez|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
var ordinalBeforeNoun = regexp.MustCompile(`\b(primeir[oa]|segund[oa]|terceir[oa]|quart[oa]|quint[oa]|sext[oa]|setim[oa]|oitav[oa]|non[oa]|decim[oa]|first|second|third)\s+(emails?|mensagem|message)\b`)

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	strayPunct   = regexp.MustCompile(`[.,;:!?¿¡"“”'()\[\]]+`)
	numberPrefix = regexp.MustCompile(`\b(?:n[ºo°]|#)\s*(\d+)`)
)

// Corrector applies the correction table in order
type Corrector struct {
	corrections []Correction
	wakeWord    string
}

// NewCorrector builds the default table plus the near-misses of wakeWord and
// any extra corrections, which run last.
func NewCorrector(wakeWord string, extra ...Correction) *Corrector {
	if wakeWord == "" {
		wakeWord = DefaultWakeWord
	}
	wakeWord = Fold(wakeWord)

	c := &Corrector{wakeWord: wakeWord}
	c.corrections = append(c.corrections, defaultCorrections...)
	if variants, ok := wakeWordVariants[wakeWord]; ok {
		for _, v := range variants {
			c.corrections = append(c.corrections, Correction{
				Pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(v) + `\b`),
				Replace: wakeWord,
			})
		}
	}
	c.corrections = append(c.corrections, extra...)
	return c
}

// WakeWord returns the canonical wake word in folded form
func (c *Corrector) WakeWord() string {
	return c.wakeWord
}

// Correct normalizes text and applies the correction table. The result is
// lower case and trimmed but keeps its accents.
func (c *Corrector) Correct(text string) string {
	out := Normalize(text)
	for _, corr := range c.corrections {
		out = corr.Pattern.ReplaceAllString(out, corr.Replace)
	}
	return spaceRun.ReplaceAllString(strings.TrimSpace(out), " ")
}

// Normalize trims, lower-cases, drops stray punctuation and collapses
// whitespace. Hyphens survive so that "e-mail" stays recognisable.
func Normalize(text string) string {
	out := strings.ToLower(strings.TrimSpace(text))
	out = numberPrefix.ReplaceAllString(out, " $1")
	out = strayPunct.ReplaceAllString(out, " ")
	return strings.TrimSpace(spaceRun.ReplaceAllString(out, " "))
}

// Fold removes diacritics ("não" → "nao") and lower-cases. Rules match
// against folded text.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return strings.ToLower(text)
	}
	return strings.ToLower(out)
}

// numerals rewrites spoken numbers that follow or precede a message noun
// ("email dois", "segundo email") to digits.
func numerals(folded string) string {
	folded = numberAfterNoun.ReplaceAllStringFunc(folded, func(m string) string {
		parts := numberAfterNoun.FindStringSubmatch(m)
		return parts[1] + " " + numberWords[parts[2]]
	})
	return ordinalBeforeNoun.ReplaceAllStringFunc(folded, func(m string) string {
		parts := ordinalBeforeNoun.FindStringSubmatch(m)
		return parts[2] + " " + numberWords[parts[1]]
	})
}
