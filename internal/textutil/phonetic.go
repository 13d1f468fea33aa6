package textutil

// phoneticDigit maps a letter to its consonant-class digit. Vowels and the
// semi-consonants H, W, Y map to '0', which is collapsed and then dropped so
// they never contribute to the code.
func phoneticDigit(r rune) byte {
	switch r {
	case 'b', 'f', 'p', 'v':
		return '1'
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return '2'
	case 'd', 't':
		return '3'
	case 'l':
		return '4'
	case 'm', 'n':
		return '5'
	case 'r':
		return '6'
	default:
		return '0'
	}
}

// PhoneticCode returns a 4-character Soundex-style code for text: the first
// normalized character followed by the consonant-class digits of the rest,
// with adjacent duplicate digits collapsed, zeros dropped, and the result
// zero-padded or truncated to exactly four characters. Empty or
// non-alphanumeric input yields the empty code, which never matches anything.
func PhoneticCode(text string) string {
	normalized := Normalize(text)
	if normalized == "" {
		return ""
	}
	code := make([]byte, 0, 4)
	var prev byte
	first := true
	for _, r := range normalized {
		if r == ' ' {
			continue
		}
		if first {
			code = append(code, byte(r))
			prev = phoneticDigit(r)
			first = false
			continue
		}
		digit := phoneticDigit(r)
		if digit == prev {
			continue
		}
		prev = digit
		if digit == '0' {
			continue
		}
		code = append(code, digit)
		if len(code) == 4 {
			break
		}
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}
