// Package config holds DelTran's process-level configuration: the
// spec's constants as overridable defaults, plus a JSON-loaded topology
// file naming corridors, banks, and validator trust-set keys -- mirroring
// the teacher's NetworkConfig/LoadBICMapping JSON-config idiom
// (consumer/liquidity_client.go) generalized from a flat BIC->bankID map
// to the settlement core's richer static topology.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Constants are the spec's default values (§6). Callers may override
// fields of the struct Defaults returns; main.go uses the defaults as is and
// defines no flag for them.
type Constants struct {
	ProtocolVersion          int
	DefaultTTLSeconds        uint32
	CheckpointInterval       uint64
	BFTQuorum                int
	BFTValidatorCount        int
	MinNettingVolume         float64
	MinNettingEfficiency     float64
	MinNettingParticipants   int
	TwoPCTimeoutSeconds      int
	DLQMaxRetries            int
	CircuitFailureThreshold  int32
	CircuitTimeoutSeconds    int
	CircuitHalfOpenSuccesses int32
}

// Defaults returns the spec's constants table verbatim.
func Defaults() Constants {
	return Constants{
		ProtocolVersion:          1,
		DefaultTTLSeconds:        300,
		CheckpointInterval:       100,
		BFTQuorum:                5,
		BFTValidatorCount:        7,
		MinNettingVolume:         100000,
		MinNettingEfficiency:     0.15,
		MinNettingParticipants:   2,
		TwoPCTimeoutSeconds:      900,
		DLQMaxRetries:            3,
		CircuitFailureThreshold:  5,
		CircuitTimeoutSeconds:    60,
		CircuitHalfOpenSuccesses: 2,
	}
}

// TwoPCTimeout returns the 2PC prepare timeout as a time.Duration.
func (c Constants) TwoPCTimeout() time.Duration {
	return time.Duration(c.TwoPCTimeoutSeconds) * time.Second
}

// CircuitTimeout returns the circuit breaker's open-state timeout.
func (c Constants) CircuitTimeout() time.Duration {
	return time.Duration(c.CircuitTimeoutSeconds) * time.Second
}

// Bank is one participating bank's static topology record.
type Bank struct {
	BIC      string `json:"bic"`
	Name     string `json:"name"`
	Corridor string `json:"corridor"`
}

// Validator is one BFT validator's static identity.
type Validator struct {
	ValidatorID string `json:"validator_id"`
	PublicKey   string `json:"public_key_hex"`
	KeyEpoch    uint32 `json:"key_epoch"`
}

// Topology is the JSON-loaded static configuration: corridor/bank map and
// the 7-member validator trust set.
type Topology struct {
	Banks      []Bank      `json:"banks"`
	Validators []Validator `json:"validators"`
}

// LoadTopology reads and parses a topology JSON file, matching the
// teacher's LoadBICMapping(path) load-and-unmarshal pattern.
func LoadTopology(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, fmt.Errorf("config: read topology file: %w", err)
	}
	var top Topology
	if err := json.Unmarshal(data, &top); err != nil {
		return Topology{}, fmt.Errorf("config: parse topology file: %w", err)
	}
	return top, nil
}

// CorridorOf returns the configured corridor for a BIC, or the BIC itself
// if unmapped (matching the teacher's ExtractBankIDFromBIC fallback
// behavior).
func (t Topology) CorridorOf(bic string) string {
	for _, b := range t.Banks {
		if b.BIC == bic {
			return b.Corridor
		}
	}
	return bic
}
