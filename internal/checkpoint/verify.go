package checkpoint

import "crypto/ed25519"

// ed25519VerifyRaw verifies a validator's raw signature over a tuple hash.
// Validators sign with plain Ed25519 (no domain separation wrapper): the
// tuple hash itself is already a canonical, unambiguous message.
func ed25519VerifyRaw(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
