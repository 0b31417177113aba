// Package text provides text normalization and sentence segmentation for
// the synthesis pipeline.
//
// Normalization expands digits, dates, acronyms, and abbreviations into
// pronounceable forms and produces the canonical string every later stage
// (segmentation, caching, verification) operates on.
package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/emovoice/synthesis-service/internal/core"
)

// Number system constants.
const (
	numberBaseTen      = 10
	numberBaseTwenty   = 20
	numberBaseHundred  = 100
	numberBaseThousand = 1000
)

// Regex patterns for normalization. Dates, times, and currency must be
// expanded before bare numbers so their digits are still intact.
const (
	isoDatePattern   = `\b(\d{4})-(\d{2})-(\d{2})\b`
	timePattern      = `\b(\d{1,2}):(\d{2})\s?(am|pm|AM|PM)?\b`
	currencyPattern  = `\$(\d+)(?:\.(\d{2}))?`
	ordinalPattern   = `\b(\d+)(st|nd|rd|th)\b`
	decimalPattern   = `\b(\d+)\.(\d+)\b`
	numberPattern    = `\d+`
	acronymPattern   = `\b[A-Z]{2,6}\b`
	spacePattern     = `[^\S\n]+`
	paragraphPattern = `\n[^\S\n]*\n[\s]*`
)

// Paragraph break marker preserved through normalization so segmentation
// can attach pause markers at hard breaks.
const ParagraphBreak = "\n\n"

// Punctuation normalization pairs.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsisChar = "…"
	ellipsis     = "..."
)

// Normalizer converts raw text into its canonical spoken-form equivalent.
// It is a pure function of its input plus a small editable pronunciation
// lexicon.
type Normalizer struct {
	maxLength int

	isoDateRe   *regexp.Regexp
	timeRe      *regexp.Regexp
	currencyRe  *regexp.Regexp
	ordinalRe   *regexp.Regexp
	decimalRe   *regexp.Regexp
	numberRe    *regexp.Regexp
	acronymRe   *regexp.Regexp
	spaceRe     *regexp.Regexp
	paragraphRe *regexp.Regexp

	abbreviationReplacer *strings.Replacer
	punctuationReplacer  *strings.Replacer

	lexicon map[string]string
}

// NewNormalizer creates a normalizer that rejects input longer than
// maxLength characters after trimming.
func NewNormalizer(maxLength int) *Normalizer {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Corp.", "Corporation",
		"Inc.", "Incorporated",
		"vs.", "versus",
		"etc.", "et cetera",
	}

	return &Normalizer{
		maxLength:   maxLength,
		isoDateRe:   regexp.MustCompile(isoDatePattern),
		timeRe:      regexp.MustCompile(timePattern),
		currencyRe:  regexp.MustCompile(currencyPattern),
		ordinalRe:   regexp.MustCompile(ordinalPattern),
		decimalRe:   regexp.MustCompile(decimalPattern),
		numberRe:    regexp.MustCompile(numberPattern),
		acronymRe:   regexp.MustCompile(acronymPattern),
		spaceRe:     regexp.MustCompile(spacePattern),
		paragraphRe: regexp.MustCompile(paragraphPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		punctuationReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
		lexicon: defaultLexicon(),
	}
}

// AddPronunciation teaches the lexicon how to speak a word or acronym.
// Lexicon entries win over the generic acronym spelling rule.
func (n *Normalizer) AddPronunciation(word, spoken string) {
	n.lexicon[word] = spoken
}

// Normalize validates and canonicalizes raw text. It fails with a
// validation error when the trimmed input is empty or over the configured
// maximum length.
func (n *Normalizer) Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", core.ErrEmptyText
	}

	if len(trimmed) > n.maxLength {
		return "", core.NewTextTooLongError(len(trimmed), n.maxLength)
	}

	normalized := norm.NFC.String(trimmed)
	normalized = n.punctuationReplacer.Replace(normalized)
	normalized = n.abbreviationReplacer.Replace(normalized)
	normalized = n.expandDates(normalized)
	normalized = n.expandTimes(normalized)
	normalized = n.expandCurrency(normalized)
	normalized = n.expandOrdinals(normalized)
	normalized = n.expandDecimals(normalized)
	normalized = n.applyLexicon(normalized)
	normalized = n.expandAcronyms(normalized)
	normalized = n.expandNumbers(normalized)
	normalized = n.normalizeWhitespace(normalized)
	normalized = ensureSentenceEnding(normalized)

	return normalized, nil
}

// MaxLength reports the configured input cap.
func (n *Normalizer) MaxLength() int {
	return n.maxLength
}

func defaultLexicon() map[string]string {
	return map[string]string{
		"TTS": "text to speech",
		"API": "A P I",
		"CPU": "C P U",
		"GPU": "G P U",
		"WAV": "wave",
		"FAQ": "F A Q",
	}
}

// applyLexicon replaces whole words that have explicit pronunciations.
func (n *Normalizer) applyLexicon(text string) string {
	fields := strings.Split(text, " ")

	for i, field := range fields {
		word := strings.TrimRight(field, `.,!?;:"'`)

		spoken, found := n.lexicon[word]
		if !found {
			continue
		}

		fields[i] = spoken + field[len(word):]
	}

	return strings.Join(fields, " ")
}

// expandAcronyms spells out runs of capitals letter by letter. Lexicon
// entries have already been substituted, so whatever remains is spoken as
// individual letters.
func (n *Normalizer) expandAcronyms(text string) string {
	return n.acronymRe.ReplaceAllStringFunc(text, func(match string) string {
		letters := make([]string, 0, len(match))
		for _, r := range match {
			letters = append(letters, string(r))
		}

		return strings.Join(letters, " ")
	})
}

func (n *Normalizer) expandDates(text string) string {
	return n.isoDateRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := n.isoDateRe.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}

		year, _ := strconv.Atoi(parts[1])
		month, _ := strconv.Atoi(parts[2])
		day, _ := strconv.Atoi(parts[3])

		if month < 1 || month > 12 || day < 1 || day > 31 {
			return match
		}

		return fmt.Sprintf("%s %s, %s",
			monthNames[month-1], ordinalWords(day), yearToWords(year))
	})
}

func (n *Normalizer) expandTimes(text string) string {
	return n.timeRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := n.timeRe.FindStringSubmatch(match)
		if len(parts) < 3 {
			return match
		}

		hour, _ := strconv.Atoi(parts[1])
		minute, _ := strconv.Atoi(parts[2])

		if hour > 23 || minute > 59 {
			return match
		}

		spoken := integerToWords(hour)

		switch {
		case minute == 0:
			spoken += " o'clock"
		case minute < numberBaseTen:
			spoken += " oh " + integerToWords(minute)
		default:
			spoken += " " + integerToWords(minute)
		}

		if len(parts) > 3 && parts[3] != "" {
			spoken += " " + strings.ToLower(parts[3])
		}

		return spoken
	})
}

func (n *Normalizer) expandCurrency(text string) string {
	return n.currencyRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := n.currencyRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		dollars, _ := strconv.Atoi(parts[1])
		spoken := integerToWords(dollars) + " " + pluralize("dollar", dollars)

		if len(parts) > 2 && parts[2] != "" {
			cents, _ := strconv.Atoi(parts[2])
			if cents > 0 {
				spoken += " and " + integerToWords(cents) + " " + pluralize("cent", cents)
			}
		}

		return spoken
	})
}

func (n *Normalizer) expandOrdinals(text string) string {
	return n.ordinalRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := n.ordinalRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value, err := strconv.Atoi(parts[1])
		if err != nil {
			return match
		}

		return ordinalWords(value)
	})
}

func (n *Normalizer) expandDecimals(text string) string {
	return n.decimalRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := n.decimalRe.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}

		whole, _ := strconv.Atoi(parts[1])
		spoken := integerToWords(whole) + " point"

		for _, digit := range parts[2] {
			spoken += " " + integerToWords(int(digit-'0'))
		}

		return spoken
	})
}

func (n *Normalizer) expandNumbers(text string) string {
	return n.numberRe.ReplaceAllStringFunc(text, func(match string) string {
		value, err := strconv.Atoi(match)
		if err != nil {
			// Longer than an int can hold; speak digit by digit.
			return digitsToWords(match)
		}

		return integerToWords(value)
	})
}

// normalizeWhitespace collapses runs of spaces and tabs while preserving
// hard paragraph breaks as a single ParagraphBreak marker.
func (n *Normalizer) normalizeWhitespace(text string) string {
	text = n.paragraphRe.ReplaceAllString(text, ParagraphBreak)
	text = n.spaceRe.ReplaceAllString(text, " ")

	paragraphs := strings.Split(text, ParagraphBreak)
	for i, paragraph := range paragraphs {
		paragraphs[i] = strings.TrimSpace(strings.ReplaceAll(paragraph, "\n", " "))
	}

	kept := paragraphs[:0]

	for _, paragraph := range paragraphs {
		if paragraph != "" {
			kept = append(kept, paragraph)
		}
	}

	return strings.Join(kept, ParagraphBreak)
}

// ensureSentenceEnding guarantees the text closes with terminal punctuation
// so segmentation and prosody see a complete final sentence.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return text
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		return text + "."
	}

	return text
}

func pluralize(unit string, count int) string {
	if count == 1 {
		return unit
	}

	return unit + "s"
}
