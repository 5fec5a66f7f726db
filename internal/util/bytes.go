package util

// CopyBytes returns a copy of src that does not alias it. A nil src stays
// nil so an unset key remains distinguishable from an empty one.
func CopyBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	return append(make([]byte, 0, len(src)), src...)
}

// WipeBytes zeroes b in place. It is safe to call on nil.
func WipeBytes(b []byte) {
	clear(b)
}
