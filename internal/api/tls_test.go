package api

import (
	"testing"
)

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name    string
		cert    string
		key     string
		enabled bool
	}{
		{name: "neither", enabled: false},
		{name: "only cert", cert: "/path/to/cert.pem", enabled: false},
		{name: "only key", key: "/path/to/key.pem", enabled: false},
		{name: "both", cert: "/path/to/cert.pem", key: "/path/to/key.pem", enabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REEL_TLS_CERT", tt.cert)
			t.Setenv("REEL_TLS_KEY", tt.key)
			SetTLSConfigForTest(nil)
			defer SetTLSConfigForTest(nil)

			InitTLS()
			if IsTLSEnabled() != tt.enabled {
				t.Errorf("expected enabled=%v", tt.enabled)
			}
		})
	}
}

func TestLoadTLSConfigDisabled(t *testing.T) {
	SetTLSConfigForTest(nil)
	cfg, err := LoadTLSConfig()
	if cfg != nil || err != nil {
		t.Errorf("expected nil config and error when TLS is disabled, got %v %v", cfg, err)
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	SetTLSConfigForTest(&TLSConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"})
	defer SetTLSConfigForTest(nil)

	if _, err := LoadTLSConfig(); err == nil {
		t.Error("expected error for missing certificate files")
	}
}
