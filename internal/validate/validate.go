package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/signer"
)

var bicPattern = regexp.MustCompile(`^[A-Z0-9]{8}([A-Z0-9]{3})?$`)

// TokenStore looks up and consumes eligibility tokens. Validate calls it
// once per payment; a real deployment backs this with persistent storage,
// out of scope here.
type TokenStore interface {
	Lookup(tokenID string) (core.EligibilityToken, bool)
	MarkConsumed(tokenID string) bool // false if already consumed
}

// SignatureVerifier checks a payment's submitter signature against its
// registered key. Backed by internal/signer.Signer.
type SignatureVerifier interface {
	Verify(ctx context.Context, canonicalHash [32]byte, sig signer.Signature) (bool, error)
}

// Validator runs §4.4's acceptance checks on an InstructPayment.
type Validator struct {
	replay   *ReplayCache
	tokens   TokenStore
	verifier SignatureVerifier
	now      func() time.Time
}

// New constructs a Validator.
func New(replay *ReplayCache, tokens TokenStore, verifier SignatureVerifier) *Validator {
	return &Validator{replay: replay, tokens: tokens, verifier: verifier, now: time.Now}
}

// ValidateBIC checks the 8-or-11 alphanumeric BIC shape.
func ValidateBIC(bic string) error {
	if !bicPattern.MatchString(bic) {
		return fmt.Errorf("%w: %q", core.ErrInvalidBic, bic)
	}
	return nil
}

// ValidateIBAN checks mod-97 validity when an IBAN is present. An empty
// string is treated as "not present" and passes, per §4.4 ("when present").
func ValidateIBAN(iban string) error {
	if iban == "" {
		return nil
	}
	if len(iban) < 4 {
		return fmt.Errorf("%w: %q", core.ErrInvalidIban, iban)
	}
	rearranged := iban[4:] + iban[:4]
	var numeric string
	for _, c := range rearranged {
		switch {
		case c >= '0' && c <= '9':
			numeric += string(c)
		case c >= 'A' && c <= 'Z':
			numeric += strconv.Itoa(int(c-'A') + 10)
		default:
			return fmt.Errorf("%w: %q", core.ErrInvalidIban, iban)
		}
	}
	if mod97(numeric) != 1 {
		return fmt.Errorf("%w: %q", core.ErrInvalidIban, iban)
	}
	return nil
}

// mod97 computes the IBAN mod-97 checksum over a numeric string too large
// for a native integer, processing it in chunks.
func mod97(numeric string) int {
	remainder := 0
	for i := 0; i < len(numeric); i += 7 {
		end := i + 7
		if end > len(numeric) {
			end = len(numeric)
		}
		chunk := strconv.Itoa(remainder) + numeric[i:end]
		v, _ := strconv.Atoi(chunk)
		remainder = v % 97
	}
	return remainder
}

// Validate runs every §4.4 check and returns the first failure, or nil if
// the payment is accepted into the replay cache and ready to become an
// Obligation.
func (v *Validator) Validate(ctx context.Context, p core.PaymentInstruction, sig signer.Signature) error {
	if !p.Amount.Positive() {
		return core.ErrInvalidAmount
	}
	if p.SenderBIC == p.ReceiverBIC {
		return core.ErrSelfTransfer
	}
	if err := ValidateBIC(p.SenderBIC); err != nil {
		return err
	}
	if err := ValidateBIC(p.ReceiverBIC); err != nil {
		return err
	}
	if err := ValidateIBAN(p.SenderAccount); err != nil {
		return err
	}
	if err := ValidateIBAN(p.ReceiverAccount); err != nil {
		return err
	}

	now := v.now()
	age := now.Sub(time.Unix(0, p.TimestampNS))
	ttl := time.Duration(p.TTLSeconds) * time.Second
	if age > ttl {
		return core.ErrTtlExpired
	}
	if time.Unix(0, p.TimestampNS).After(now.Add(5 * time.Second)) {
		return core.ErrTtlExpired
	}

	if v.replay.Seen(p.SenderBIC, p.Nonce) {
		return core.ErrReplayDetected
	}

	tok, ok := v.tokens.Lookup(p.EligibilityToken)
	if !ok {
		return core.ErrTokenInvalid
	}
	if tok.SenderBIC != p.SenderBIC || tok.Currency != p.Currency {
		return core.ErrTokenInvalid
	}
	if now.After(tok.ExpiresAt) {
		return core.ErrTokenExpired
	}
	if tok.MaxAmount.Cmp(p.Amount) < 0 {
		return core.ErrTokenAmountInsufficient
	}
	if !v.tokens.MarkConsumed(tok.TokenID) {
		return core.ErrTokenInvalid
	}

	ok2, err := v.verifier.Verify(ctx, p.CanonicalHash(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSignatureFailed, err)
	}
	if !ok2 {
		return core.ErrSignatureFailed
	}

	v.replay.Record(p.SenderBIC, p.Nonce, ttl)
	return nil
}

// NettingThresholds gates whether a window's netting run includes cycle
// elimination, per §4.4's configurable admission thresholds. MinEfficiency
// is carried but not checked: MeetsThresholds consults only MinGrossVolume
// and MinParticipants.
type NettingThresholds struct {
	MinGrossVolume   float64
	MinParticipants  int
	MinEfficiency    float64
}

// DefaultNettingThresholds matches the spec's constants table.
func DefaultNettingThresholds() NettingThresholds {
	return NettingThresholds{MinGrossVolume: 100000, MinParticipants: 2, MinEfficiency: 0.15}
}

// MeetsThresholds reports whether a window's gross volume and participant
// count clear cycle-elimination admission. A window below threshold is
// still finalized but bypasses cycle elimination (bilateral-only), per
// §4.4 -- the engine's netting step passes a false return to netting.Run as
// its skip flag; no error is raised.
func (t NettingThresholds) MeetsThresholds(grossVolume float64, participants int) bool {
	return grossVolume >= t.MinGrossVolume && participants >= t.MinParticipants
}
