// Package core defines DelTran's settlement-core data model — the record
// types shared across validation, netting, 2PC, checkpointing, and proof
// generation — and the canonical encoding for each record that feeds
// internal/canon's hasher.
package core

import (
	"sort"
	"time"

	"github.com/deltran/settlement-core/internal/canon"
	"github.com/deltran/settlement-core/internal/decimal"
)

// PaymentInstruction is a bank's request to move funds to another bank.
// Immutable once accepted; referenced by obligations and proofs forever.
type PaymentInstruction struct {
	PaymentID        string // UUIDv7
	SenderBIC        string
	ReceiverBIC      string
	SenderAccount    string
	ReceiverAccount  string
	Amount           decimal.Decimal
	Currency         string
	Reference        []byte // opaque, <=255 bytes
	Nonce            uint64 // monotonic per sender
	TimestampNS      int64
	TTLSeconds       uint32
	EligibilityToken string // token_id
	Signature        []byte
}

// CanonicalHash computes the canonical, tag-ordered hash of the payment
// instruction per §4.1. Field order here IS the documented fixed order;
// every implementation of this protocol must agree on it bit-for-bit.
func (p PaymentInstruction) CanonicalHash() [32]byte {
	e := canon.NewEncoder()
	e.String(p.PaymentID).
		String(p.SenderBIC).
		String(p.ReceiverBIC).
		String(p.SenderAccount).
		String(p.ReceiverAccount).
		Decimal(p.Amount).
		String(p.Currency).
		Bytes(p.Reference).
		Uint64(p.Nonce).
		Int64(p.TimestampNS).
		Uint32(p.TTLSeconds).
		String(p.EligibilityToken)
	return canon.Hash(canon.TagPaymentInstruction, e.Finish())
}

// EligibilityToken authorizes a sender to move up to MaxAmount of Currency.
// Consumed at most once per payment.
type EligibilityToken struct {
	TokenID          string
	SenderBIC        string
	MaxAmount        decimal.Decimal
	Currency         string
	ExpiresAt        time.Time
	IssuerSignature  []byte
}

// WindowStatus is a ClearingWindow's lifecycle state. Transitions are
// monotonic; no window leaves Sealed or Failed.
type WindowStatus int

const (
	WindowOpen WindowStatus = iota
	WindowClosing
	WindowNetted
	WindowFinalizing
	WindowSealed
	WindowFailed
)

func (s WindowStatus) String() string {
	switch s {
	case WindowOpen:
		return "Open"
	case WindowClosing:
		return "Closing"
	case WindowNetted:
		return "Netted"
	case WindowFinalizing:
		return "Finalizing"
	case WindowSealed:
		return "Sealed"
	case WindowFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Obligation is a payment's gross claim between two banks within one
// window. Immutable after accept.
type Obligation struct {
	ObligationID string
	PaymentID    string
	PayerBIC     string
	PayeeBIC     string
	Currency     string
	Amount       decimal.Decimal
	WindowID     string
}

// CanonicalHash computes the canonical hash of an obligation.
func (o Obligation) CanonicalHash() [32]byte {
	e := canon.NewEncoder()
	e.String(o.ObligationID).
		String(o.PaymentID).
		String(o.PayerBIC).
		String(o.PayeeBIC).
		String(o.Currency).
		Decimal(o.Amount).
		String(o.WindowID)
	return canon.Hash(canon.TagObligation, e.Finish())
}

// ClearingWindow is the bounded accumulation interval for obligations.
type ClearingWindow struct {
	WindowID         string
	OpenedAt         time.Time
	ScheduledCloseAt time.Time
	Obligations      []Obligation
	Status           WindowStatus
}

// NetTransfer is the residual payment after cycle and bilateral reduction;
// the output of netting and the input to 2PC.
type NetTransfer struct {
	NetTransferID    string
	Currency         string
	PayerBIC         string
	PayeeBIC         string
	Amount           decimal.Decimal
	ComponentID      string
	SourcePaymentIDs []string
}

// CanonicalHash computes the canonical hash of a net transfer. Source
// payment IDs are sorted first: "maps are forbidden — convert to sorted
// sequences" applies equally to any naturally unordered field.
func (n NetTransfer) CanonicalHash() [32]byte {
	ids := append([]string(nil), n.SourcePaymentIDs...)
	sort.Strings(ids)

	e := canon.NewEncoder()
	e.String(n.NetTransferID).
		String(n.Currency).
		String(n.PayerBIC).
		String(n.PayeeBIC).
		Decimal(n.Amount).
		String(n.ComponentID).
		KVSeq(len(ids), func(i int, e *canon.Encoder) { e.String(ids[i]) })
	return canon.Hash(canon.TagNetTransfer, e.Finish())
}

// BatchStats records netting statistics for a SettlementBatch or Checkpoint.
type BatchStats struct {
	Gross            decimal.Decimal
	Net              decimal.Decimal
	CycleEliminated  decimal.Decimal
	Efficiency       float64 // 1 - net/gross
}

// SettlementBatch is the sealed output of netting plus finalization for one
// window: net transfers, their Merkle root, and descriptive settlement
// metadata supplemented per SPEC_FULL.md §3A.
type SettlementBatch struct {
	BatchID           string
	WindowID          string
	NetTransfers      []NetTransfer
	MerkleRoot        [32]byte
	Stats             BatchStats
	SettlementBank    string
	SettlementAccount string
	ValueDate         string
	ConfirmationID    string
}

// BFTSignature is one validator's signature over a checkpoint tuple.
type BFTSignature struct {
	ValidatorID string
	Signature   []byte
	KeyEpoch    uint32
}

// Checkpoint is a sealed, chained record of a batch's canonical state.
type Checkpoint struct {
	CheckpointID     string
	Height           uint64
	PrevCheckpointID string
	AppHash          [32]byte
	MerkleRoot       [32]byte
	Stats            BatchStats
	BFTSignatures    []BFTSignature
	CoordinatorSeal  []byte
}

// TupleHash computes the canonical hash of the (height, prev_id,
// app_hash, merkle_root) tuple broadcast for BFT signing, per §4.9 step 3.
func (c Checkpoint) TupleHash() [32]byte {
	e := canon.NewEncoder()
	e.Uint64(c.Height).
		String(c.PrevCheckpointID).
		Bytes(c.AppHash[:]).
		Bytes(c.MerkleRoot[:])
	return canon.Hash(canon.TagCheckpointTuple, e.Finish())
}

// SettlementProof binds a payment to its sealed checkpoint's Merkle root
// and signature set.
type SettlementProof struct {
	PaymentID         string
	MerklePath        []MerklePathStep
	CheckpointRef     string // checkpoint_id
	AuthorizedParties []string
}

// MerklePathStep is one sibling step in a proof path, canon-encodable.
type MerklePathStep struct {
	Sibling [32]byte
	Right   bool
}
