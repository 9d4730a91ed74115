// Package validation contains input validation helpers.
package validation

import (
	"strconv"
	"strings"
	"unicode"
)

const dniLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

// IsValidTaxID reports whether the string is a well-formed Spanish tax
// identifier: a DNI or NIE with a correct check letter, or a CIF with a
// correct check character.
func IsValidTaxID(id string) bool {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) != 9 {
		return false
	}
	switch {
	case unicode.IsDigit(rune(id[0])):
		return isValidDNI(id)
	case id[0] == 'X' || id[0] == 'Y' || id[0] == 'Z':
		return isValidNIE(id)
	default:
		return isValidCIF(id)
	}
}

func isValidDNI(id string) bool {
	num, err := strconv.Atoi(id[:8])
	if err != nil {
		return false
	}
	return id[8] == dniLetters[num%23]
}

func isValidNIE(id string) bool {
	// The leading letter maps to a digit and the rest validates as a DNI.
	prefix := map[byte]string{'X': "0", 'Y': "1", 'Z': "2"}[id[0]]
	return isValidDNI(prefix + id[1:])
}

func isValidCIF(id string) bool {
	org := id[0]
	if !strings.ContainsRune("ABCDEFGHJNPQRSUVW", rune(org)) {
		return false
	}
	digits := id[1:8]
	sum := 0
	for i, ch := range digits {
		if !unicode.IsDigit(ch) {
			return false
		}
		d := int(ch - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	check := (10 - sum%10) % 10

	// Organization letters that always use a control letter; the rest accept
	// either the control digit or its letter.
	const controlLetters = "JABCDEFGHI"
	last := id[8]
	switch {
	case strings.ContainsRune("NPQRSW", rune(org)):
		return last == controlLetters[check]
	case strings.ContainsRune("ABEH", rune(org)):
		return last == byte('0'+check)
	default:
		return last == byte('0'+check) || last == controlLetters[check]
	}
}
