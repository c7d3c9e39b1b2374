package config

import (
	"errors"
	"testing"
)

type staticErrs []error

func (s staticErrs) Validate() []error { return s }

func TestValidate(t *testing.T) {
	t.Parallel()

	bad := staticErrs{errors.New("first"), errors.New("second")}

	tests := []struct {
		name string
		cfgs []ValidatableConfig
		want int
	}{
		{"nothing", nil, 0},
		{"default client", []ValidatableConfig{DefaultClient()}, 0},
		{"default relay", []ValidatableConfig{DefaultRelay()}, 0},
		{"errors kept in order", []ValidatableConfig{bad, DefaultRelay()}, 2},
		{"zero relay", []ValidatableConfig{bad, DefaultRelay(), &Relay{}}, 6},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Validate(tc.cfgs...)
			if len(got) != tc.want {
				t.Fatalf("Validate() = %v, want %d errors", got, tc.want)
			}
			if tc.want > 0 && got[0].Error() != "first" {
				t.Errorf("first error = %v, want the first config's", got[0])
			}
		})
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	for _, port := range []int{1, 123, 443, 8663, 65535} {
		if err := validatePort(port); err != nil {
			t.Errorf("validatePort(%d) = %v", port, err)
		}
	}
	for _, port := range []int{-443, 0, 65536} {
		if err := validatePort(port); !errors.Is(err, errPortRange) {
			t.Errorf("validatePort(%d) = %v, want errPortRange", port, err)
		}
	}

	for s := uint8(0); s < NumSockets; s++ {
		if err := validateSocket(s); err != nil {
			t.Errorf("validateSocket(%d) = %v", s, err)
		}
	}
	if err := validateSocket(NumSockets); !errors.Is(err, errSocketRange) {
		t.Errorf("validateSocket(%d) = %v, want errSocketRange", NumSockets, err)
	}
}
