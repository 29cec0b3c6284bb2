package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maskRune = '*'

// MaskDocument hides every digit of an identifying number except the last
// two. Separators are kept so the shape of the document stays recognizable.
//
//	MaskDocument("123.456.789-09") // "***.***.***-09"
func MaskDocument(document string) string {
	return maskDigits(document, 2)
}

// MaskPhone hides every digit except the last four.
//
//	MaskPhone("+55 11 98765-4321") // "+** ** *****-4321"
func MaskPhone(phone string) string {
	return maskDigits(phone, 4)
}

func maskDigits(s string, keep int) string {
	total := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			total++
		}
	}

	var b strings.Builder
	b.Grow(len(s))

	seen := 0
	for _, r := range s {
		if !unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		seen++
		if total-seen < keep && total > keep {
			b.WriteRune(r)
		} else {
			b.WriteRune(maskRune)
		}
	}
	return b.String()
}

// MaskName reduces a full name to its initials.
//
//	MaskName("maria da silva") // "M. D. S."
func MaskName(name string) string {
	words := strings.Fields(name)
	initials := make([]string, 0, len(words))
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		initials = append(initials, string(unicode.ToUpper(r))+".")
	}
	return strings.Join(initials, " ")
}

// MaskEmail keeps the first character of the local part and the domain.
//
//	MaskEmail("maria@example.com") // "m***@example.com"
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.Repeat(string(maskRune), 3)
	}

	first, _ := utf8.DecodeRuneInString(email)
	return string(first) + strings.Repeat(string(maskRune), 3) + email[at:]
}
