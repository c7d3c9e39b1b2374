package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// IssueServer creates a server certificate for hosts signed by the CA. Hosts
// may be DNS names or IP addresses. The certificate is valid from notBefore
// for the given lifetime.
func (ca *CA) IssueServer(hosts []string, notBefore time.Time, lifetime time.Duration) (tls.Certificate, error) {
	var out tls.Certificate

	if len(hosts) == 0 {
		return out, fmt.Errorf("no hosts given")
	}

	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return out, fmt.Errorf("failed to generate key pair: %v", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return out, fmt.Errorf("generating serial number: %v", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: hosts[0]},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(lifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return out, fmt.Errorf("failed to create server certificate: %v", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return out, fmt.Errorf("x509.ParseCertificate(server): %v", err)
	}

	out = tls.Certificate{
		Certificate: [][]byte{der, ca.Cert.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}

	return out, nil
}
