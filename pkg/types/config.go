package types

import (
	"errors"
	"strings"
)

// TokenConfig maps a token symbol used by stored donation counters to the
// token's canonical on-chain (foreign) address.
type TokenConfig struct {
	Symbol         string `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	ForeignAddress string `json:"foreign_address" yaml:"foreign_address" mapstructure:"foreign_address"`
}

// Config holds the inputs of a reconciliation run: where the record store
// lives, where the cached chain snapshot and event history are, and the
// token whitelist bridging stored symbols to on-chain addresses.
type Config struct {
	DataDir        string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	StateFile      string        `json:"state_file" yaml:"state_file" mapstructure:"state_file"`
	EventsFile     string        `json:"events_file" yaml:"events_file" mapstructure:"events_file"`
	TokenWhitelist []TokenConfig `json:"token_whitelist" yaml:"token_whitelist" mapstructure:"token_whitelist"`
}

// Config validation errors.
var (
	ErrStateFileEmpty    = errors.New("state file must not be empty")
	ErrEventsFileEmpty   = errors.New("events file must not be empty")
	ErrTokenSymbolEmpty  = errors.New("token symbol must not be empty")
	ErrTokenAddressEmpty = errors.New("token foreign address must not be empty")
)

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.StateFile == "" {
		return ErrStateFileEmpty
	}
	if c.EventsFile == "" {
		return ErrEventsFileEmpty
	}
	for _, t := range c.TokenWhitelist {
		if t.Symbol == "" {
			return ErrTokenSymbolEmpty
		}
		if t.ForeignAddress == "" {
			return ErrTokenAddressEmpty
		}
	}
	return nil
}

// TokenAddresses returns the symbol -> foreign address map with addresses
// lower-cased, the form aggregated chain balances are keyed by.
func (c Config) TokenAddresses() map[string]string {
	m := make(map[string]string, len(c.TokenWhitelist))
	for _, t := range c.TokenWhitelist {
		m[t.Symbol] = strings.ToLower(t.ForeignAddress)
	}
	return m
}
