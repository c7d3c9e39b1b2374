// Package trust holds the trust anchors used to validate the server's
// certificate chain: a distinguished name and an RSA public key per anchor.
// Anchors are compiled in (Default) and may be extended from PEM files at
// start-up; a Store is read-only afterwards.
package trust

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrNoAnchors     = errors.New("trust: no trust anchors")
	ErrEmptyChain    = errors.New("trust: peer sent no certificates")
	ErrUntrusted     = errors.New("trust: certificate chain not trusted")
	ErrInvalidAnchor = errors.New("trust: invalid anchor")
)

// KeyType is the public key algorithm of an anchor.
type KeyType uint8

// KeyRSA is the only supported anchor key type.
const KeyRSA KeyType = 1

// Anchor is a trusted identity. DN is the DER encoded subject name, Modulus
// and Exponent are big-endian.
type Anchor struct {
	DN       []byte
	Modulus  []byte
	Exponent []byte
	KeyType  KeyType
	// CA anchors may sign other certificates. A non-CA anchor only matches
	// a leaf with exactly this name and key.
	CA bool
}

// PublicKey decodes the anchor's RSA key.
func (a Anchor) PublicKey() (*rsa.PublicKey, error) {
	if a.KeyType != KeyRSA {
		return nil, fmt.Errorf("%w: key type %d", ErrInvalidAnchor, a.KeyType)
	}
	if len(a.Modulus) == 0 || len(a.Exponent) == 0 || len(a.Exponent) > 4 {
		return nil, fmt.Errorf("%w: malformed RSA key", ErrInvalidAnchor)
	}

	e := 0
	for _, b := range a.Exponent {
		e = e<<8 | int(b)
	}
	if e < 3 {
		return nil, fmt.Errorf("%w: RSA exponent %d", ErrInvalidAnchor, e)
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(a.Modulus), E: e}, nil
}

// Name renders the DN for logging.
func (a Anchor) Name() string {
	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(a.DN, &rdn); err != nil {
		return fmt.Sprintf("<invalid DN: %s>", err)
	}
	var name pkix.Name
	name.FillFromRDNSequence(&rdn)
	return name.String()
}

func (a Anchor) validate() error {
	if len(a.DN) == 0 {
		return fmt.Errorf("%w: empty DN", ErrInvalidAnchor)
	}
	var rdn pkix.RDNSequence
	if rest, err := asn1.Unmarshal(a.DN, &rdn); err != nil || len(rest) > 0 {
		return fmt.Errorf("%w: DN is not a DER name", ErrInvalidAnchor)
	}
	_, err := a.PublicKey()
	return err
}

// certificate builds a stand-in CA certificate for path validation. Only the
// fields x509 chain building looks at are populated.
func (a Anchor) certificate() (*x509.Certificate, error) {
	key, err := a.PublicKey()
	if err != nil {
		return nil, err
	}

	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(a.DN, &rdn); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnchor, err)
	}
	var subject pkix.Name
	subject.FillFromRDNSequence(&rdn)

	return &x509.Certificate{
		// the pool deduplicates on Raw, so it has to differ per anchor
		Raw:                   append(append([]byte(nil), a.DN...), a.Modulus...),
		RawSubject:            a.DN,
		Subject:               subject,
		Version:               3,
		PublicKey:             key,
		PublicKeyAlgorithm:    x509.RSA,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            -1,
		KeyUsage:              x509.KeyUsageCertSign,
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
	}, nil
}

// Store is an immutable set of anchors.
type Store struct {
	anchors []Anchor
}

// NewStore validates the anchors and returns a store holding copies.
func NewStore(anchors ...Anchor) (*Store, error) {
	s := &Store{}
	for i, a := range anchors {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("anchor %d: %w", i, err)
		}
		s.anchors = append(s.anchors, Anchor{
			DN:       bytes.Clone(a.DN),
			Modulus:  bytes.Clone(a.Modulus),
			Exponent: bytes.Clone(a.Exponent),
			KeyType:  a.KeyType,
			CA:       a.CA,
		})
	}
	return s, nil
}

// Default returns the compiled-in anchors.
func Default() *Store {
	s, err := NewStore(dstRootCAX3)
	if err != nil {
		panic(fmt.Sprintf("compiled-in trust anchor: %s", err))
	}
	return s
}

// With returns a new store holding the anchors of s followed by more.
func (s *Store) With(more ...Anchor) (*Store, error) {
	return NewStore(append(s.Anchors(), more...)...)
}

// Len returns the number of anchors.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.anchors)
}

// Anchors returns a copy of the anchors.
func (s *Store) Anchors() []Anchor {
	if s == nil {
		return nil
	}
	return append([]Anchor(nil), s.anchors...)
}

// FromPEM converts every CERTIFICATE block in data into an anchor. Only RSA
// keys are accepted.
func FromPEM(data []byte) ([]Anchor, error) {
	var out []Anchor

	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("x509.ParseCertificate(): %w", err)
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %q has a %s key, only RSA is supported", ErrInvalidAnchor, cert.Subject, cert.PublicKeyAlgorithm)
		}

		out = append(out, Anchor{
			DN:       cert.RawSubject,
			Modulus:  key.N.Bytes(),
			Exponent: big.NewInt(int64(key.E)).Bytes(),
			KeyType:  KeyRSA,
			CA:       cert.IsCA,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no certificates in PEM data", ErrInvalidAnchor)
	}
	return out, nil
}

// VerifyChain validates a peer chain (leaf first, DER encoded) for
// serverName at time now.
func (s *Store) VerifyChain(rawCerts [][]byte, serverName string, now time.Time) error {
	if s.Len() == 0 {
		return ErrNoAnchors
	}
	if len(rawCerts) == 0 {
		return ErrEmptyChain
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for i, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("%w: certificate %d: %w", ErrUntrusted, i, err)
		}
		certs = append(certs, cert)
	}
	leaf := certs[0]

	if serverName != "" {
		if err := leaf.VerifyHostname(serverName); err != nil {
			return fmt.Errorf("%w: %w", ErrUntrusted, err)
		}
	}

	roots := x509.NewCertPool()
	cas := 0
	for _, a := range s.anchors {
		if !a.CA {
			if a.matches(leaf) {
				if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
					return fmt.Errorf("%w: %q not valid at %s", ErrUntrusted, leaf.Subject, now.UTC().Format(time.RFC3339))
				}
				return nil
			}
			continue
		}

		cert, err := a.certificate()
		if err != nil {
			return err
		}
		roots.AddCert(cert)
		cas++
	}
	if cas == 0 {
		return fmt.Errorf("%w: %q matches no anchor", ErrUntrusted, leaf.Subject)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUntrusted, err)
	}
	return nil
}

func (a Anchor) matches(leaf *x509.Certificate) bool {
	if !bytes.Equal(a.DN, leaf.RawSubject) {
		return false
	}
	key, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}
	want, err := a.PublicKey()
	return err == nil && want.Equal(key)
}
