// Package credentials supplies the optional basic-auth pair used for every
// call against the index endpoint during a run.
package credentials

import (
	"fmt"

	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/domain"
)

// Credentials is a username/password pair. The zero value means anonymous access.
type Credentials struct {
	Username string
	Password string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Provider supplies credentials for a run.
type Provider interface {
	Credentials() (Credentials, error)
}

// Static returns the same credentials on every call.
type Static Credentials

// Credentials implements Provider.
func (s Static) Credentials() (Credentials, error) {
	return Credentials(s), nil
}

// FromConfig returns a provider backed by the index configuration, which
// already carries INDEX_USERNAME / INDEX_PASSWORD overrides.
func FromConfig(cfg config.IndexConfig) Provider {
	return &configProvider{cfg: cfg}
}

type configProvider struct {
	cfg config.IndexConfig
}

func (p *configProvider) Credentials() (Credentials, error) {
	if !p.cfg.CredentialsRequired {
		return Credentials{}, nil
	}
	if p.cfg.Username == "" || p.cfg.Password == "" {
		return Credentials{}, fmt.Errorf("%w: set index.username/index.password or INDEX_USERNAME/INDEX_PASSWORD", domain.ErrCredentialsRequired)
	}
	return Credentials{Username: p.cfg.Username, Password: p.cfg.Password}, nil
}
