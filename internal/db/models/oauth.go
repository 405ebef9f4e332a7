package models

import "time"

// OAuthClient is a registered third-party application. A nil
// ClientSecretHash marks a public client that relies on PKCE alone.
type OAuthClient struct {
	ID               string     `db:"id" json:"id"`
	ClientID         string     `db:"client_id" json:"clientId"`
	ClientSecretHash *string    `db:"client_secret_hash" json:"-"`
	UserID           string     `db:"user_id" json:"userId"`
	Name             string     `db:"name" json:"name"`
	RedirectURIs     StringList `db:"redirect_uris" json:"redirectUris"`
	Scopes           StringList `db:"scopes" json:"scopes"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// IsPublic reports whether the client has no secret.
func (c *OAuthClient) IsPublic() bool {
	return c.ClientSecretHash == nil || *c.ClientSecretHash == ""
}

// AllowsRedirect reports whether uri exactly matches a registered redirect URI.
func (c *OAuthClient) AllowsRedirect(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// OAuthCode is an issued authorization code, keyed by the SHA-256 of the code.
type OAuthCode struct {
	CodeHash            string     `db:"code_hash"`
	ClientID            string     `db:"client_id"`
	UserID              string     `db:"user_id"`
	RedirectURI         string     `db:"redirect_uri"`
	Scopes              StringList `db:"scopes"`
	CodeChallenge       string     `db:"code_challenge"`
	CodeChallengeMethod string     `db:"code_challenge_method"`
	ExpiresAt           time.Time  `db:"expires_at"`
	ConsumedAt          *time.Time `db:"consumed_at"`
	CreatedAt           time.Time  `db:"created_at"`
}

// OAuthRefreshToken is an opaque refresh token, keyed by its SHA-256.
type OAuthRefreshToken struct {
	TokenHash string     `db:"token_hash"`
	ClientID  string     `db:"client_id"`
	UserID    string     `db:"user_id"`
	Scopes    StringList `db:"scopes"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Usable reports whether the token is neither revoked nor expired.
func (t *OAuthRefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
