package app

import (
	"strings"

	iauth "github.com/pawhaven/pawhaven/internal/auth"
)

// JWTServiceConfig converts the auth section into a JWT service config.
func (c AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: c.JWT.TTL,
	}
}
