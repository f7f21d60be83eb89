package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"golang.org/x/crypto/acme/autocert"
)

// LoadCertificate loads a TLS configuration from PEM cert/key files.
func LoadCertificate(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ACMEManager obtains and renews certificates from Let's Encrypt.
type ACMEManager struct {
	manager *autocert.Manager
}

// NewACMEManager creates an ACME manager caching certificates in cacheDir.
func NewACMEManager(email string, domains []string, cacheDir string) *ACMEManager {
	return &ACMEManager{
		manager: &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Email:      email,
			HostPolicy: autocert.HostWhitelist(domains...),
			Cache:      autocert.DirCache(cacheDir),
		},
	}
}

// TLSConfig returns a TLS configuration backed by automatic certificates.
func (a *ACMEManager) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: a.manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// HTTPHandler returns the handler for the HTTP-01 ACME challenge. It must
// be served on port 80 for issuance to succeed.
func (a *ACMEManager) HTTPHandler(fallback http.Handler) http.Handler {
	return a.manager.HTTPHandler(fallback)
}
