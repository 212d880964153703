package signer

import "golang.org/x/crypto/sha3"

// canonDomainHash computes SHA3-256(domain || canonicalHash), the
// domain-separated message every variant actually signs, so a signature
// produced for one protocol domain can never verify against another.
func canonDomainHash(domain string, hash [32]byte) [32]byte {
	h := sha3.New256()
	h.Write([]byte(domain))
	h.Write(hash[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
