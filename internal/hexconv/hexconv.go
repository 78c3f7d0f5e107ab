package hexconv

// Halfbyte maps an ASCII hexadecimal digit into its value. Non-hex characters are
// mapped into 0xFF, so a|b > 0x0F tells that any of two digits is invalid.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = 0xFF
	}

	for c := '0'; c <= '9'; c++ {
		table[c] = byte(c - '0')
	}

	for c := 'a'; c <= 'f'; c++ {
		table[c] = byte(c-'a') + 10
		table[c-'a'+'A'] = byte(c-'a') + 10
	}

	return table
}()

// Upper contains uppercase hexadecimal digits, indexed by their values.
const Upper = "0123456789ABCDEF"
