// Package crypto provides the randomness sources of the client and the
// certificate tooling of the development relay: a throwaway RSA CA and
// server certificates signed by it.
package crypto

import (
	"crypto/tls"
	"fmt"
	"time"
)

// ServerLifetime is the validity of generated server certificates.
const ServerLifetime = 90 * 24 * time.Hour

// GenerateCertificates creates a CA from seed and a server certificate for
// hosts. It returns the CA certificate as PEM, which clients load as a trust
// anchor.
func GenerateCertificates(seed string, hosts ...string) ([]byte, tls.Certificate, error) {
	var cert tls.Certificate

	ca, err := GenerateCA(seed)
	if err != nil {
		return nil, cert, fmt.Errorf("GenerateCA(): %s", err)
	}

	// backdated so devices with a slightly slow clock accept it
	cert, err = ca.IssueServer(hosts, time.Now().Add(-time.Hour), ServerLifetime)
	if err != nil {
		return nil, cert, fmt.Errorf("IssueServer(%v): %s", hosts, err)
	}

	return ca.CertPEM, cert, nil
}
