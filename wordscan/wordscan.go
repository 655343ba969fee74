// Package wordscan finds the first word boundary in a piece of text.
// Offsets are byte offsets, not rune offsets.
package wordscan

// FirstWord returns the byte offset of the first space in s.
// If s contains no space, the length of s is returned.
func FirstWord(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return i
		}
	}

	return len(s)
}

// FirstWordBytes is FirstWord for a byte slice. b is not modified.
func FirstWordBytes(b []byte) int {
	for i, item := range b {
		if item == ' ' {
			return i
		}
	}

	return len(b)
}

// Word returns the first word of s
func Word(s string) string {
	return s[:FirstWord(s)]
}
