package domain

// Zero overwrites a byte slice with zeros. Used to clear key material and
// decrypted field plaintext once they leave scope.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
