package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsMatchSpecConstants(t *testing.T) {
	c := Defaults()
	if c.BFTQuorum != 5 || c.BFTValidatorCount != 7 {
		t.Errorf("BFT quorum/validators = %d/%d, want 5/7", c.BFTQuorum, c.BFTValidatorCount)
	}
	if c.TwoPCTimeout() != 900*time.Second {
		t.Errorf("TwoPCTimeout() = %v, want 900s", c.TwoPCTimeout())
	}
	if c.CircuitTimeout() != 60*time.Second {
		t.Errorf("CircuitTimeout() = %v, want 60s", c.CircuitTimeout())
	}
	if c.MinNettingEfficiency != 0.15 {
		t.Errorf("MinNettingEfficiency = %v, want 0.15", c.MinNettingEfficiency)
	}
}

func TestLoadTopology(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	contents := `{
		"banks": [
			{"bic": "AAAABBBB", "name": "Bank A", "corridor": "sg-my"},
			{"bic": "CCCCDDDD", "name": "Bank C", "corridor": "sg-th"}
		],
		"validators": [
			{"validator_id": "v1", "public_key_hex": "abcd", "key_epoch": 1}
		]
	}`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	top, err := LoadTopology(path)
	if err != nil {
		t.Fatalf("LoadTopology error = %v", err)
	}
	if len(top.Banks) != 2 || len(top.Validators) != 1 {
		t.Fatalf("unexpected topology shape: %+v", top)
	}
	if top.CorridorOf("AAAABBBB") != "sg-my" {
		t.Errorf("CorridorOf(AAAABBBB) = %s, want sg-my", top.CorridorOf("AAAABBBB"))
	}
	if top.CorridorOf("UNKNOWNBIC") != "UNKNOWNBIC" {
		t.Errorf("CorridorOf(unmapped) = %s, want the BIC itself", top.CorridorOf("UNKNOWNBIC"))
	}
}

func TestLoadTopologyMissingFile(t *testing.T) {
	_, err := LoadTopology("/nonexistent/topology.json")
	if err == nil {
		t.Fatal("expected an error for a missing topology file")
	}
}

func TestLoadTopologyInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("not json"), 0o600)
	_, err := LoadTopology(path)
	if err == nil {
		t.Fatal("expected a parse error for invalid JSON")
	}
}
