// Package config holds the ISA-level configuration for a simulated hart.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ISA describes which architectural features are configured for a hart.
// The privilege and trap logic queries this configuration but never
// mutates it.
type ISA struct {
	// XLEN is the native register width in bits. Must be 32 or 64.
	// Default: 64.
	XLEN int `json:"xlen"`

	// Supervisor enables the S privilege level and its CSRs.
	// When false, no trap may be delegated and all delegation masks
	// read as zero. Default: true.
	Supervisor bool `json:"supervisor"`

	// User enables the U privilege level. When false, MRET always
	// resets the previous-privilege field to Machine. Default: true.
	User bool `json:"user"`

	// Sstc enables the supervisor timer-compare extension
	// (stimecmp/stimecmph). Default: true.
	Sstc bool `json:"sstc"`

	// Zkr enables the entropy-source CSR (seed). Default: false.
	Zkr bool `json:"zkr"`

	// TraceTraps enables a trace line for every trap entry and trap
	// return. Trace output never affects processor state.
	// Default: false.
	TraceTraps bool `json:"trace_traps"`

	// TraceCSR enables a trace line for every CSR access attempt.
	// Default: false.
	TraceCSR bool `json:"trace_csr"`
}

// DefaultISA returns an ISA configuration for a full RV64 hart with
// machine, supervisor, and user modes.
func DefaultISA() *ISA {
	return &ISA{
		XLEN:       64,
		Supervisor: true,
		User:       true,
		Sstc:       true,
		Zkr:        false,
		TraceTraps: false,
		TraceCSR:   false,
	}
}

// MachineOnlyISA returns an ISA configuration for a machine-mode-only
// hart, the minimal configuration the privilege logic supports.
func MachineOnlyISA() *ISA {
	return &ISA{
		XLEN:       64,
		Supervisor: false,
		User:       false,
		Sstc:       false,
		Zkr:        false,
	}
}

// LoadISA loads an ISA configuration from a JSON file. Fields absent
// from the file keep their default values.
func LoadISA(path string) (*ISA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ISA config file: %w", err)
	}

	cfg := DefaultISA()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ISA config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the ISA configuration to a JSON file.
func (c *ISA) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize ISA config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ISA config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a legal hart.
func (c *ISA) Validate() error {
	if c.XLEN != 32 && c.XLEN != 64 {
		return fmt.Errorf("xlen must be 32 or 64, got %d", c.XLEN)
	}
	if c.Supervisor && !c.User {
		return fmt.Errorf("supervisor mode requires user mode")
	}
	return nil
}
