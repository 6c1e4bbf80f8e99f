// Package tls builds server TLS configuration from either static PEM
// files or ACME-issued certificates.
package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"golang.org/x/crypto/acme/autocert"

	"github.com/nithindas-k/lazydraft/internal/config"
)

// Configure returns the server TLS configuration for cfg. When ACME is
// enabled it also returns the HTTP-01 challenge handler, which must be
// served on port 80; the handler is nil otherwise. A nil *tls.Config
// means TLS is disabled.
func Configure(cfg *config.TLSConfig) (*tls.Config, http.Handler, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	if cfg.ACME.Enabled {
		if len(cfg.ACME.Domains) == 0 {
			return nil, nil, fmt.Errorf("acme requires at least one domain")
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Email:      cfg.ACME.Email,
			HostPolicy: autocert.HostWhitelist(cfg.ACME.Domains...),
			Cache:      autocert.DirCache(cfg.ACME.CacheDir),
		}
		tlsCfg := &tls.Config{
			GetCertificate: m.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}
		return tlsCfg, m.HTTPHandler(nil), nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil, nil
}
