package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"
)

func TestGenerateCertificates(t *testing.T) {
	t.Parallel()

	caPEM, cert, err := GenerateCertificates("test-seed-123", "relay.test", "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateCertificates() error = %v, want nil", err)
	}
	if cert.PrivateKey == nil {
		t.Fatal("GenerateCertificates() returned certificate with nil PrivateKey")
	}
	if len(cert.Certificate) != 2 {
		t.Fatalf("GenerateCertificates() chain length = %d, want 2 (leaf and CA)", len(cert.Certificate))
	}

	block, _ := pem.Decode(caPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("CA PEM does not hold a certificate: %q", caPEM)
	}
	ca, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("x509.ParseCertificate(ca) error = %v", err)
	}
	if !ca.IsCA {
		t.Error("CA certificate is not a CA")
	}
	if _, ok := ca.PublicKey.(*rsa.PublicKey); !ok {
		t.Errorf("CA key is %T, want *rsa.PublicKey", ca.PublicKey)
	}
	if !strings.HasPrefix(ca.Subject.CommonName, "ledticker dev CA ") {
		t.Errorf("CA common name = %q", ca.Subject.CommonName)
	}

	roots := x509.NewCertPool()
	roots.AddCert(ca)
	for _, host := range []string{"relay.test", "127.0.0.1"} {
		_, err := cert.Leaf.Verify(x509.VerifyOptions{
			DNSName:   host,
			Roots:     roots,
			KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		if err != nil {
			t.Errorf("leaf does not verify for %s: %v", host, err)
		}
	}
}

func TestGenerateCertificates_SeedNamesCA(t *testing.T) {
	t.Parallel()

	ca1, err := GenerateCA("same")
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}
	ca2, err := GenerateCA("same")
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}
	ca3, err := GenerateCA("")
	if err != nil {
		t.Fatalf("GenerateCA(\"\") error = %v", err)
	}

	if ca1.Cert.Subject.CommonName != ca2.Cert.Subject.CommonName {
		t.Errorf("same seed gave names %q and %q", ca1.Cert.Subject.CommonName, ca2.Cert.Subject.CommonName)
	}
	if ca1.Cert.Subject.CommonName == ca3.Cert.Subject.CommonName {
		t.Errorf("random seed reused name %q", ca1.Cert.Subject.CommonName)
	}
}

func TestIssueServer(t *testing.T) {
	t.Parallel()

	ca, err := GenerateCA("issue")
	if err != nil {
		t.Fatalf("GenerateCA() error = %v", err)
	}

	if _, err := ca.IssueServer(nil, time.Now(), time.Hour); err == nil {
		t.Error("IssueServer() without hosts should fail")
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cert, err := ca.IssueServer([]string{"ticker.test"}, start, time.Hour)
	if err != nil {
		t.Fatalf("IssueServer() error = %v", err)
	}
	if !cert.Leaf.NotBefore.Equal(start) || !cert.Leaf.NotAfter.Equal(start.Add(time.Hour)) {
		t.Errorf("validity = %s..%s", cert.Leaf.NotBefore, cert.Leaf.NotAfter)
	}
	if cert.Leaf.Subject.CommonName != "ticker.test" {
		t.Errorf("common name = %q, want %q", cert.Leaf.Subject.CommonName, "ticker.test")
	}
}
