package config

import (
	"errors"
	"fmt"
)

// NumSockets mirrors the slot count of the offload chip. config cannot
// import chip, which depends on it.
const NumSockets = 8

// ValidatableConfig is implemented by every command configuration.
type ValidatableConfig interface {
	Validate() []error
}

// Validate collects the problems of all cfgs, in order.
func Validate(cfgs ...ValidatableConfig) []error {
	var errs []error
	for _, cfg := range cfgs {
		errs = append(errs, cfg.Validate()...)
	}
	return errs
}

var (
	errPortRange   = errors.New("port out of range")
	errSocketRange = errors.New("socket out of range")
)

func validatePort(port int) error {
	if port > 0 && port <= 65535 {
		return nil
	}
	return fmt.Errorf("%w: %d, want 1-65535", errPortRange, port)
}

func validateSocket(s uint8) error {
	if s < NumSockets {
		return nil
	}
	return fmt.Errorf("%w: %d, want 0-%d", errSocketRange, s, NumSockets-1)
}
