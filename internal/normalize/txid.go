package normalize

import "strings"

// TxID canonicalizes a cross-chain reference: lower case, no 0x prefix, no
// leading zeros. Input containing whitespace or control characters inside the
// value yields "", which never matches anything.
func TxID(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c <= ' ' || c >= 0x7f {
			return ""
		}
	}
	value = strings.TrimPrefix(value, "0x")
	return strings.TrimLeft(value, "0")
}

// SameTxID reports whether two references are equal after normalization.
// Empty references never match.
func SameTxID(a, b string) bool {
	na := TxID(a)
	if na == "" {
		return false
	}
	return na == TxID(b)
}
