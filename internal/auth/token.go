// Package auth validates upstream access tokens and selects the
// authorization scheme the upstream API expects for each token class.
package auth

import (
	"fmt"
	"regexp"
)

// Scheme is the Authorization header scheme for a validated token.
type Scheme string

const (
	// SchemeToken is the legacy scheme used by classic personal access tokens.
	SchemeToken Scheme = "token"
	// SchemeBearer is the scheme used by fine-grained personal access tokens.
	SchemeBearer Scheme = "Bearer"
)

// Exactly two token shapes are accepted. The upstream API distinguishes
// them by authorization scheme, so the mapping must be preserved verbatim:
// classic tokens use "token", fine-grained tokens use "Bearer".
var (
	classicPattern     = regexp.MustCompile(`^ghp_[A-Za-z0-9_]{36}$`)
	fineGrainedPattern = regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{84}$`)
)

// Credential is a validated upstream token plus its authorization scheme.
type Credential struct {
	token  string
	scheme Scheme
}

// ValidateToken checks raw against the two accepted token shapes.
// A rejection is not fatal to the caller: the proxy runs unauthenticated
// (reduced upstream rate limit) when no credential validates.
func ValidateToken(raw string) (*Credential, error) {
	switch {
	case raw == "":
		return nil, fmt.Errorf("empty token")
	case classicPattern.MatchString(raw):
		return &Credential{token: raw, scheme: SchemeToken}, nil
	case fineGrainedPattern.MatchString(raw):
		return &Credential{token: raw, scheme: SchemeBearer}, nil
	default:
		return nil, fmt.Errorf("token does not match ghp_ (40 chars) or github_pat_ (95 chars) format")
	}
}

// Scheme returns the authorization scheme for the credential.
func (c *Credential) Scheme() Scheme { return c.scheme }

// Header returns the full Authorization header value.
func (c *Credential) Header() string {
	return string(c.scheme) + " " + c.token
}
