package api

import (
	"crypto/tls"
	"fmt"
	"os"
)

// TLSConfig names the PEM certificate and key the server listens with.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

func (c *TLSConfig) complete() bool {
	return c != nil && c.CertFile != "" && c.KeyFile != ""
}

var serverTLS *TLSConfig

// InitTLS reads REEL_TLS_CERT and REEL_TLS_KEY. A half-configured pair leaves
// the server on plain HTTP.
func InitTLS() {
	serverTLS = &TLSConfig{
		CertFile: os.Getenv("REEL_TLS_CERT"),
		KeyFile:  os.Getenv("REEL_TLS_KEY"),
	}
	if !serverTLS.complete() {
		serverTLS = nil
	}
}

// IsTLSEnabled returns true if a certificate pair is configured.
func IsTLSEnabled() bool {
	return serverTLS.complete()
}

// LoadTLSConfig reads the configured key pair. It returns nil, nil on plain HTTP.
func LoadTLSConfig() (*tls.Config, error) {
	if !serverTLS.complete() {
		return nil, nil
	}
	pair, err := tls.LoadX509KeyPair(serverTLS.CertFile, serverTLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair %s: %w", serverTLS.CertFile, err)
	}
	return &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}, nil
}

// SetTLSConfigForTest replaces the loaded certificate paths.
func SetTLSConfigForTest(cfg *TLSConfig) {
	serverTLS = cfg
}
