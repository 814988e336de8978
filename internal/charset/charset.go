// Package charset validates the fixed character sets accepted for
// usernames, passwords, and room names, per the wire protocol's external
// interface definition.
package charset

// ValidAccountField reports whether s consists only of the printable-ASCII
// subset allowed for usernames and passwords: 33-47, 48-57, 59-64, 65-90,
// 97-122, and 123-126. This excludes ':' (58, the users.txt field
// separator) and also 91-96 (`[\]^_``), which the wire spec's charset
// enumeration omits.
func ValidAccountField(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 33 && c <= 47:
		case c >= 48 && c <= 57:
		case c >= 59 && c <= 64:
		case c >= 65 && c <= 90:
		case c >= 97 && c <= 122:
		case c >= 123 && c <= 126:
		default:
			return false
		}
	}
	return true
}

// ValidRoomName reports whether s is alphanumeric ASCII only.
func ValidRoomName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		isDigit := c >= '0' && c <= '9'
		isUpper := c >= 'A' && c <= 'Z'
		isLower := c >= 'a' && c <= 'z'
		if !isDigit && !isUpper && !isLower {
			return false
		}
	}
	return true
}
