// Package canon implements DelTran's canonical byte encoding and hashing.
// It is the single source of truth for turning a logical record into the
// bitwise-identical byte sequence every other implementation of this
// protocol must also produce: fixed tag order, fixed-scale decimals,
// little-endian integers, length-prefixed strings, no maps. Every
// identifier that appears in a proof is computed through this package.
package canon

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/deltran/settlement-core/internal/decimal"
)

// RecordTag identifies the logical record type being encoded. It is written
// as a length prefix ahead of the encoded body before hashing, so that a
// PaymentInstruction and an Obligation can never collide even if their
// field encodings happened to coincide.
type RecordTag uint8

const (
	TagPaymentInstruction RecordTag = iota + 1
	TagObligation
	TagNetTransfer
	TagSettlementBatch
	TagCheckpointTuple
	TagEligibilityToken
)

// Encoder builds a canonical byte sequence field by field, in the order the
// caller writes them. Callers MUST write fields in the documented fixed tag
// order for the record being encoded; the Encoder itself does not enforce
// ordering, it only guarantees encoding is unambiguous.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 128)}
}

// Uint8 appends a single byte, used for enum-like fields and discriminators.
func (e *Encoder) Uint8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// Uint32 appends a little-endian uint32.
func (e *Encoder) Uint32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Uint64 appends a little-endian uint64.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Int64 appends a little-endian int64.
func (e *Encoder) Int64(v int64) *Encoder {
	return e.Uint64(uint64(v))
}

// Bytes appends a u32-length-prefixed opaque byte string.
func (e *Encoder) Bytes(v []byte) *Encoder {
	e.Uint32(uint32(len(v)))
	e.buf = append(e.buf, v...)
	return e
}

// String appends a u32-length-prefixed UTF-8 string.
func (e *Encoder) String(v string) *Encoder {
	return e.Bytes([]byte(v))
}

// Decimal appends (sign, unscaled_integer_bytes_big_endian, scale=18).
// Sign is a single byte: 0 negative, 1 zero, 2 positive, matching big.Int's
// three-way Sign() shifted to be unsigned-encodable.
func (e *Encoder) Decimal(v decimal.Decimal) *Encoder {
	sign, magnitude := v.UnscaledBytes()
	e.Uint8(uint8(sign + 1))
	e.Bytes(magnitude)
	e.Uint8(decimal.Scale)
	return e
}

// Optional writes the discriminator byte (1 if present, 0 if absent) and,
// if present, invokes writeField to encode the value.
func (e *Encoder) Optional(present bool, writeField func(*Encoder)) *Encoder {
	if present {
		e.Uint8(1)
		writeField(e)
	} else {
		e.Uint8(0)
	}
	return e
}

// KVSeq writes a sorted sequence of (k,v) pairs in place of a map. Callers
// MUST pass entries already sorted by key; this function does not sort,
// since the sort key's type varies by caller (string, BIC, etc).
func (e *Encoder) KVSeq(n int, writeEntry func(i int, e *Encoder)) *Encoder {
	e.Uint32(uint32(n))
	for i := 0; i < n; i++ {
		writeEntry(i, e)
	}
	return e
}

// Finish returns the accumulated canonical encoding.
func (e *Encoder) Finish() []byte {
	return e.buf
}

// Hash computes SHA3-256 over the record's canonical body, length-prefixed
// by the given record tag, per §4.1: "The hash is SHA3-256 over the encoded
// bytes, length-prefixed by record tag."
func Hash(tag RecordTag, body []byte) [32]byte {
	h := sha3.New256()
	var tagAndLen [5]byte
	tagAndLen[0] = byte(tag)
	binary.LittleEndian.PutUint32(tagAndLen[1:], uint32(len(body)))
	h.Write(tagAndLen[:])
	h.Write(body)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyHash is the documented constant root of an empty record set: the
// SHA3-256 hash of the empty string.
var EmptyHash = sha3.Sum256(nil)

// HashHex renders a hash as lowercase hex, for logging and proof payloads.
func HashHex(h [32]byte) string {
	return fmt.Sprintf("%x", h[:])
}
