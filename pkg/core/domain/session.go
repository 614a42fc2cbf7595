package domain

import "time"

// SessionState is the state of the session token lifecycle
type SessionState int

const (
	StateSignedOut SessionState = iota
	StateAuthenticated
	StateRefreshing
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateSignedOut:
		return "signed_out"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionToken is the access/refresh pair held by the token lifecycle
type SessionToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenGrant is what login and refresh return
type TokenGrant struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
	TokenType        string `json:"tokenType"`
}

// SessionToken converts the grant into an absolute-expiry token.
func (g TokenGrant) SessionToken(now time.Time) SessionToken {
	return SessionToken{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(g.ExpiresIn) * time.Second),
	}
}

// Operator is the signed-in user as described by the access token claims
type Operator struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
