package text

import "strings"

// English word tables for number expansion.
var (
	onesWords = []string{
		"", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine",
	}

	teenWords = []string{
		"ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}

	tensWords = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}

	scaleWords = []string{"", "thousand", "million", "billion"}

	monthNames = []string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}

	ordinalExceptions = map[int]string{
		1: "first", 2: "second", 3: "third", 5: "fifth",
		8: "eighth", 9: "ninth", 12: "twelfth",
	}
)

// integerToWords converts a non-negative integer into its English word
// representation, grouping by thousands up to billions.
func integerToWords(number int) string {
	if number == 0 {
		return "zero"
	}

	if number < 0 {
		return "negative " + integerToWords(-number)
	}

	var parts []string

	scaleIndex := 0

	for number > 0 {
		chunk := number % numberBaseThousand
		if chunk > 0 {
			words := chunkToWords(chunk)
			if scaleIndex > 0 && scaleIndex < len(scaleWords) {
				words += " " + scaleWords[scaleIndex]
			}

			parts = append([]string{words}, parts...)
		}

		number /= numberBaseThousand
		scaleIndex++
	}

	return strings.Join(parts, " ")
}

// chunkToWords speaks a value in [1, 999].
func chunkToWords(number int) string {
	if number < numberBaseTen {
		return onesWords[number]
	}

	if number < numberBaseTwenty {
		return teenWords[number-numberBaseTen]
	}

	if number < numberBaseHundred {
		words := tensWords[number/numberBaseTen]
		if rest := number % numberBaseTen; rest > 0 {
			words += " " + onesWords[rest]
		}

		return words
	}

	words := onesWords[number/numberBaseHundred] + " hundred"
	if rest := number % numberBaseHundred; rest > 0 {
		words += " " + chunkToWords(rest)
	}

	return words
}

// digitsToWords speaks a digit string one digit at a time, used for values
// too large to convert as a whole number.
func digitsToWords(digits string) string {
	words := make([]string, 0, len(digits))

	for _, digit := range digits {
		if digit == '0' {
			words = append(words, "zero")

			continue
		}

		words = append(words, onesWords[digit-'0'])
	}

	return strings.Join(words, " ")
}

// ordinalWords converts a positive integer to its ordinal English form.
func ordinalWords(number int) string {
	if word, found := ordinalExceptions[number]; found {
		return word
	}

	if number > numberBaseTwenty && number < numberBaseHundred && number%numberBaseTen != 0 {
		return tensWords[number/numberBaseTen] + " " + ordinalWords(number%numberBaseTen)
	}

	cardinal := integerToWords(number)

	switch {
	case strings.HasSuffix(cardinal, "y"):
		return strings.TrimSuffix(cardinal, "y") + "ieth"
	case strings.HasSuffix(cardinal, "e"):
		return strings.TrimSuffix(cardinal, "e") + "th"
	default:
		return cardinal + "th"
	}
}

// yearToWords speaks a calendar year the way people say it: pairs of
// two-digit groups for 1000-9999 where that reads naturally, otherwise as
// a plain number.
func yearToWords(year int) string {
	if year < numberBaseThousand || year > 9999 {
		return integerToWords(year)
	}

	high := year / numberBaseHundred
	low := year % numberBaseHundred

	switch {
	case low == 0 && high%numberBaseTen == 0:
		// Round millennium, e.g. 2000.
		return integerToWords(year)
	case low == 0:
		return chunkToWords(high) + " hundred"
	case low < numberBaseTen:
		return chunkToWords(high) + " oh " + onesWords[low]
	default:
		return chunkToWords(high) + " " + chunkToWords(low)
	}
}
