package sqlutil

// NormalizePlaceholders rewrites driver parameter markers into text the SQL
// grammar accepts. Every rewrite keeps the byte length of the input so that
// positions found in the result still line up with the host file.
//
//	?          -> 0
//	%s         -> 00
//	%(name)s   -> 000000000
//	$1         -> 01
//	:name      -> " name" (the "::" cast operator is left alone)
func NormalizePlaceholders(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '?':
			b[i] = '0'
		case '%':
			if i+1 < len(b) && b[i+1] == 's' {
				b[i], b[i+1] = '0', '0'
				i++
				continue
			}
			if end := namedPyformat(b, i); end > 0 {
				for j := i; j < end; j++ {
					b[j] = '0'
				}
				i = end - 1
			}
		case '$':
			j := i + 1
			for j < len(b) && b[j] >= '0' && b[j] <= '9' {
				j++
			}
			if j > i+1 {
				b[i] = '0'
				i = j - 1
			}
		case ':':
			if i+1 < len(b) && b[i+1] == ':' {
				i++
				continue
			}
			if i > 0 && b[i-1] == ':' {
				continue
			}
			if i+1 < len(b) && isIdentStart(b[i+1]) {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// namedPyformat returns the end offset of a %(name)s marker starting at i,
// or 0 if there is none.
func namedPyformat(b []byte, i int) int {
	if i+1 >= len(b) || b[i+1] != '(' {
		return 0
	}
	j := i + 2
	for j < len(b) && b[j] != ')' {
		if !isWordByte(b[j]) {
			return 0
		}
		j++
	}
	if j == i+2 || j+1 >= len(b) || b[j+1] != 's' {
		return 0
	}
	return j + 2
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}
