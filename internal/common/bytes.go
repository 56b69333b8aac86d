package common

// WipeByteArray overwrites b with zeros. Call it on password buffers once
// they are no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
