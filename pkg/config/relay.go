package config

import (
	"fmt"
	"time"

	"ninjametal/ledticker/pkg/log"
)

// Relay configures the development chat relay server.
type Relay struct {
	Host  string
	Port  int
	Rooms []string

	SSL       bool
	CAOut     string   // where to write the generated CA certificate (PEM)
	CertHosts []string // names in the generated server certificate

	MaxConns      int
	Heartbeat     time.Duration
	ClientTimeout time.Duration

	Verbose bool
	Logger  *log.Logger
	Deps    *Dependencies
}

// DefaultRelay returns the relay defaults: one room "demo", pings every 5s,
// clients silent for 10s are dropped.
func DefaultRelay() *Relay {
	return &Relay{
		Port:          8663,
		Rooms:         []string{"demo"},
		CertHosts:     []string{"localhost"},
		MaxConns:      64,
		Heartbeat:     5 * time.Second,
		ClientTimeout: 10 * time.Second,
	}
}

// Validate checks the relay configuration.
func (r *Relay) Validate() []error {
	var errors []error

	if err := validatePort(r.Port); err != nil {
		errors = append(errors, fmt.Errorf("relay port: %s", err))
	}
	if len(r.Rooms) == 0 {
		errors = append(errors, fmt.Errorf("relay needs at least one room"))
	}
	if !r.SSL && r.CAOut != "" {
		errors = append(errors, fmt.Errorf("You must use '--ssl' to use '--ca-out'"))
	}
	if r.SSL && len(r.CertHosts) == 0 {
		errors = append(errors, fmt.Errorf("certificate needs at least one host name"))
	}
	if r.MaxConns < 1 {
		errors = append(errors, fmt.Errorf("max connections must be at least 1"))
	}
	if r.Heartbeat <= 0 || r.ClientTimeout <= r.Heartbeat {
		errors = append(errors, fmt.Errorf("client timeout (%s) must exceed a positive heartbeat (%s)", r.ClientTimeout, r.Heartbeat))
	}

	return errors
}
