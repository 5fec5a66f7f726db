package accesscode

// Compare reports whether digests a and b are equal. The length check is not
// constant time; digest length is fixed and public. Equal-length inputs are
// compared over every byte without short-circuiting. Comparison is
// case-sensitive, so callers lowercase first when that matters.
func Compare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var acc byte
	for i := 0; i < len(a); i++ {
		acc |= a[i] ^ b[i]
	}
	return acc == 0
}
