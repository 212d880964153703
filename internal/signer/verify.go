package signer

import "crypto/ed25519"

// ed25519VerifyRaw verifies a signature produced by an external HSM module
// that backs its keys with Ed25519 (as hsmproto's stub and many real
// PKCS#11 modules do), without DelTran's own domain-separation wrapper --
// the HSM module applies its own scheme internally.
func ed25519VerifyRaw(pub, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
