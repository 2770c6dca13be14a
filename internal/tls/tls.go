// Package tls prepares the certificate configuration for the HTTPS listener.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/samber/lo"
)

// Mode describes where the listener certificate came from.
type Mode string

const (
	// ModeOff means the listener serves plain HTTP.
	ModeOff Mode = "off"
	// ModeFile means the certificate was loaded from disk.
	ModeFile Mode = "file"
	// ModeSelfSigned means an in-memory certificate was generated.
	ModeSelfSigned Mode = "self-signed"
)

// certValidity is the lifetime of generated certificates.
const certValidity = 365 * 24 * time.Hour

// ServerConfig returns the listener TLS configuration. Certificate files win
// when both are set; otherwise, if enabled, a self-signed certificate for
// hosts is generated. A nil config with ModeOff means plain HTTP.
func ServerConfig(enabled bool, certFile, keyFile string, hosts ...string) (*tls.Config, Mode, error) {
	if certFile != "" && keyFile != "" {
		cfg, err := LoadOrGenerateTLS(certFile, keyFile)
		if err != nil {
			return nil, ModeOff, err
		}
		return cfg, ModeFile, nil
	}
	if !enabled {
		return nil, ModeOff, nil
	}

	cert, err := GenerateSelfSignedCert(hosts...)
	if err != nil {
		return nil, ModeOff, fmt.Errorf("failed to generate self-signed cert: %w", err)
	}
	return newConfig(*cert), ModeSelfSigned, nil
}

// GenerateSelfSignedCert generates an in-memory ECDSA P-256 self-signed
// certificate valid for one year. The first host becomes the common name;
// localhost and 127.0.0.1 are always included. No files are written to disk.
func GenerateSelfSignedCert(hosts ...string) (*tls.Certificate, error) {
	certPEM, keyPEM, err := generateSelfSignedPEM(hosts)
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to create X509 key pair: %w", err)
	}

	return &cert, nil
}

// LoadOrGenerateTLS loads the key pair from the given file paths, or
// generates a self-signed localhost certificate if the paths are empty.
func LoadOrGenerateTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		cert, err := GenerateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed cert: %w", err)
		}
		return newConfig(*cert), nil
	}

	if _, err := os.Stat(certFile); err != nil {
		return nil, fmt.Errorf("certificate file not found: %w", err)
	}
	if _, err := os.Stat(keyFile); err != nil {
		return nil, fmt.Errorf("key file not found: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return newConfig(cert), nil
}

func newConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}
}

func generateSelfSignedPEM(hosts []string) ([]byte, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	hosts = lo.Uniq(lo.Compact(append(hosts, "localhost", "127.0.0.1")))

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: hosts[0],
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(certValidity),

		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
