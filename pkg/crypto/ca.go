package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// RSAKeyBits is the size of generated keys. Trust anchors only carry RSA
// keys, so the development CA and its certificates use RSA too.
const RSAKeyBits = 2048

// CA is a self-signed certificate authority for development servers.
type CA struct {
	Cert    *x509.Certificate
	Key     *rsa.PrivateKey
	CertPEM []byte
}

// GenerateCA creates a CA. The seed determines the random subject names; an
// empty seed picks random ones. Keys always come from crypto/rand.
func GenerateCA(seed string) (*CA, error) {
	if seed == "" {
		var err error
		seed, err = Token(32)
		if err != nil {
			return nil, fmt.Errorf("crypto.Token(32): %s", err)
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("rsa.GenerateKey(%d): %s", RSAKeyBits, err)
	}

	der, err := generateCACertificate(key, seed)
	if err != nil {
		return nil, fmt.Errorf("generateCACertificate(key): %s", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("x509.ParseCertificate(ca): %s", err)
	}

	return &CA{
		Cert:    cert,
		Key:     key,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}, nil
}

func generateCACertificate(key *rsa.PrivateKey, seed string) ([]byte, error) {
	names := seeded(seed)
	cn, err := token(8, names)
	if err != nil {
		return nil, err
	}
	org, err := token(8, names)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %s", err)
	}

	tml := x509.Certificate{
		NotBefore:    time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2063, 4, 5, 11, 0, 0, 0, time.UTC),
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "ledticker dev CA " + cn,
			Organization: []string{org},
		},
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	cert, err := x509.CreateCertificate(rand.Reader, &tml, &tml, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %s", err)
	}

	return cert, nil
}
