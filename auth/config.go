package auth

import "fmt"

// Config selects which credentials are accepted.
type Config struct {
	// Enabled requires credentials on every call.
	Enabled bool

	// APIKeys are the accepted plain API keys.
	APIKeys []string

	// JWT enables bearer tokens when JWT.Secret is set.
	JWT JWTConfig
}

// New builds the authenticator for cfg. It returns nil when authentication
// is disabled.
func New(cfg Config) (Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var auths []Authenticator
	if keys := NewStaticAPIKeyStore(cfg.APIKeys...); keys.Len() > 0 {
		auths = append(auths, NewAPIKeyAuthenticator(keys))
	}
	if len(cfg.JWT.Secret) > 0 {
		auths = append(auths, NewJWTAuthenticator(cfg.JWT))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("%w: enabled without api keys or a jwt secret", ErrInvalidConfig)
	}
	if len(auths) == 1 {
		return auths[0], nil
	}
	return NewCompositeAuthenticator(auths...), nil
}
