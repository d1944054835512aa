// Package glob implements the server's glob-style pattern matching used by
// KEYS, SCAN MATCH, PSUBSCRIBE and CONFIG GET.
//
// Supported syntax:
//
//	*       any sequence of bytes, including none
//	?       exactly one byte
//	[abc]   one byte from the set; [^abc] negates, [a-z] is a range
//	\x      the literal byte x
package glob

// Match reports whether s matches pattern
func Match(pattern, s string) bool {
	return match(pattern, s, false)
}

// MatchFold is Match with ASCII case folding
func MatchFold(pattern, s string) bool {
	return match(pattern, s, true)
}

// IsLiteral reports whether pattern contains no special characters
func IsLiteral(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?', '[', '\\':
			return false
		}
	}
	return true
}

func match(p, s string, fold bool) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 1 && p[1] == '*' {
				p = p[1:]
			}
			if len(p) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if match(p[1:], s[i:], fold) {
					return true
				}
			}
			return false

		case '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]
			p = p[1:]

		case '[':
			if len(s) == 0 {
				return false
			}
			rest, ok := matchClass(p[1:], s[0], fold)
			if !ok {
				return false
			}
			p = rest
			s = s[1:]

		case '\\':
			if len(p) >= 2 {
				p = p[1:]
			}
			fallthrough

		default:
			if len(s) == 0 || !equal(p[0], s[0], fold) {
				return false
			}
			s = s[1:]
			p = p[1:]
		}
	}
	return len(s) == 0
}

// matchClass consumes a [...] class body (without the opening bracket)
// and returns the remaining pattern and whether c matched
func matchClass(p string, c byte, fold bool) (string, bool) {
	not := false
	if len(p) > 0 && p[0] == '^' {
		not = true
		p = p[1:]
	}

	matched := false
	for {
		if len(p) == 0 {
			// unterminated class: treat end of pattern as closing bracket
			break
		}
		if p[0] == ']' {
			p = p[1:]
			break
		}
		if p[0] == '\\' && len(p) >= 2 {
			if equal(p[1], c, fold) {
				matched = true
			}
			p = p[2:]
			continue
		}
		if len(p) >= 3 && p[1] == '-' && p[2] != ']' {
			lo, hi := p[0], p[2]
			if lo > hi {
				lo, hi = hi, lo
			}
			cc := c
			if fold {
				lo, hi, cc = lower(lo), lower(hi), lower(c)
			}
			if cc >= lo && cc <= hi {
				matched = true
			}
			p = p[3:]
			continue
		}
		if equal(p[0], c, fold) {
			matched = true
		}
		p = p[1:]
	}

	if not {
		matched = !matched
	}
	return p, matched
}

func equal(a, b byte, fold bool) bool {
	if fold {
		return lower(a) == lower(b)
	}
	return a == b
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
