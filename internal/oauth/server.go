package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/launchpal/launchpal/internal/auth"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/db/repositories"
	"github.com/launchpal/launchpal/internal/telemetry"
)

// Grant types.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

const (
	codeBytes    = 32
	refreshBytes = 32
	clientIDLen  = 24
	secretLen    = 40
)

// Store persists clients, codes and refresh tokens.
type Store interface {
	CreateClient(ctx context.Context, c *models.OAuthClient) error
	GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error)
	ListClientsByUser(ctx context.Context, userID string) ([]*models.OAuthClient, error)
	CreateCode(ctx context.Context, code *models.OAuthCode) error
	ConsumeCode(ctx context.Context, codeHash string, now time.Time) (*models.OAuthCode, error)
	CreateRefreshToken(ctx context.Context, t *models.OAuthRefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*models.OAuthRefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (bool, error)
}

var _ Store = (*repositories.OAuthRepository)(nil)

// Accounts verifies resource owners and loads them by id.
type Accounts interface {
	VerifyPassword(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// Config holds token lifetimes and the issuer URL.
type Config struct {
	Issuer          string
	CodeTTL         time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AuthorizeRequest is the query of GET /oauth/authorize, echoed back in the
// consent form.
type AuthorizeRequest struct {
	ResponseType        string `form:"response_type"`
	ClientID            string `form:"client_id"`
	RedirectURI         string `form:"redirect_uri"`
	State               string `form:"state"`
	Scope               string `form:"scope"`
	CodeChallenge       string `form:"code_challenge"`
	CodeChallengeMethod string `form:"code_challenge_method"`
}

// TokenRequest is the form body of POST /oauth/token.
type TokenRequest struct {
	GrantType    string `form:"grant_type"`
	Code         string `form:"code"`
	RedirectURI  string `form:"redirect_uri"`
	ClientID     string `form:"client_id"`
	ClientSecret string `form:"client_secret"`
	CodeVerifier string `form:"code_verifier"`
	RefreshToken string `form:"refresh_token"`
}

// TokenResponse is the token endpoint's success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Metadata is the RFC 8414 authorization server metadata document.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}

// RegisteredClient is returned once on registration; Secret is never
// retrievable again.
type RegisteredClient struct {
	*models.OAuthClient
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Server is the authorization server.
type Server struct {
	store    Store
	accounts Accounts
	cfg      Config
	now      func() time.Time
}

// NewServer creates a new Server
func NewServer(store Store, accounts Accounts, cfg Config) *Server {
	cfg.Issuer = strings.TrimSuffix(cfg.Issuer, "/")
	return &Server{store: store, accounts: accounts, cfg: cfg, now: time.Now}
}

// Metadata returns the discovery document.
func (s *Server) Metadata() Metadata {
	return Metadata{
		Issuer:                            s.cfg.Issuer,
		AuthorizationEndpoint:             s.cfg.Issuer + "/oauth/authorize",
		TokenEndpoint:                     s.cfg.Issuer + "/oauth/token",
		RegistrationEndpoint:              s.cfg.Issuer + "/api/oauth/clients",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{GrantAuthorizationCode, GrantRefreshToken},
		CodeChallengeMethodsSupported:     []string{auth.PKCEMethodS256},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "none"},
		ScopesSupported:                   []string{string(auth.ScopeRead), string(auth.ScopeWrite)},
	}
}

// ValidateAuthorize checks an authorization request before the consent page
// is shown. Errors here must be shown to the user, never redirected, because
// the redirect URI itself may be untrusted.
func (s *Server) ValidateAuthorize(ctx context.Context, req AuthorizeRequest) (*models.OAuthClient, []string, error) {
	if req.ClientID == "" || req.RedirectURI == "" {
		return nil, nil, fmt.Errorf("%w: client_id and redirect_uri are required", ErrInvalidRequest)
	}
	client, err := s.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("load client: %w", err)
	}
	if client == nil {
		return nil, nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if !client.AllowsRedirect(req.RedirectURI) {
		return nil, nil, fmt.Errorf("%w: redirect_uri is not registered for this client", ErrInvalidRequest)
	}
	if req.ResponseType != "code" {
		return nil, nil, fmt.Errorf("%w: response_type must be code", ErrUnsupportedResponseType)
	}
	if req.CodeChallenge == "" {
		return nil, nil, fmt.Errorf("%w: code_challenge is required", ErrInvalidRequest)
	}
	if req.CodeChallengeMethod != auth.PKCEMethodS256 {
		return nil, nil, fmt.Errorf("%w: code_challenge_method must be S256", ErrInvalidRequest)
	}

	scopes, err := auth.ParseScopeParam(req.Scope)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	granted := auth.IntersectScopes(scopes, client.Scopes)
	if len(granted) == 0 {
		return nil, nil, fmt.Errorf("%w: none of the requested scopes are allowed for this client", ErrInvalidScope)
	}
	return client, granted, nil
}

// Approve handles the submitted consent form. On success it returns the
// client redirect carrying the code and state. A refused consent redirects
// with access_denied; bad credentials return ErrAccessDenied without a
// redirect so the form can be shown again.
func (s *Server) Approve(ctx context.Context, req AuthorizeRequest, email, password string, consent bool) (string, error) {
	_, scopes, err := s.ValidateAuthorize(ctx, req)
	if err != nil {
		return "", err
	}
	if !consent {
		return redirectWith(req.RedirectURI, url.Values{"error": {ErrAccessDenied.Error()}, "state": {req.State}})
	}

	user, err := s.accounts.VerifyPassword(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}

	code, err := auth.RandomToken(codeBytes)
	if err != nil {
		return "", err
	}
	now := s.now()
	err = s.store.CreateCode(ctx, &models.OAuthCode{
		CodeHash:            auth.HashToken(code),
		ClientID:            req.ClientID,
		UserID:              user.ID,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           now.Add(s.cfg.CodeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	slog.Info("oauth code issued", "client_id", req.ClientID, "user_id", user.ID)

	v := url.Values{"code": {code}}
	if req.State != "" {
		v.Set("state", req.State)
	}
	return redirectWith(req.RedirectURI, v)
}

func redirectWith(base string, v url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: malformed redirect_uri", ErrInvalidRequest)
	}
	q := u.Query()
	for k, vals := range v {
		for _, val := range vals {
			if val != "" {
				q.Add(k, val)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Token dispatches a token request by grant type.
func (s *Server) Token(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	var (
		resp *TokenResponse
		err  error
	)
	switch req.GrantType {
	case GrantAuthorizationCode:
		resp, err = s.exchangeCode(ctx, req)
	case GrantRefreshToken:
		resp, err = s.refresh(ctx, req)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedGrantType, req.GrantType)
	}

	outcome := "success"
	if err != nil {
		outcome = ErrorCode(err)
		slog.Info("oauth token request rejected", "grant_type", req.GrantType, "client_id", req.ClientID, "error", err)
	}
	telemetry.OAuthGrantsTotal.WithLabelValues(grantLabel(req.GrantType), outcome).Inc()
	return resp, err
}

func grantLabel(g string) string {
	if g == GrantAuthorizationCode || g == GrantRefreshToken {
		return g
	}
	return "other"
}

// authenticateClient loads the client and checks its secret. Public clients
// must not send one.
func (s *Server) authenticateClient(ctx context.Context, clientID, secret string) (*models.OAuthClient, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidClient)
	}
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: unknown client", ErrInvalidClient)
	}
	if client.IsPublic() {
		return client, nil
	}
	if secret == "" || !auth.CheckPassword(*client.ClientSecretHash, secret) {
		return nil, fmt.Errorf("%w: client authentication failed", ErrInvalidClient)
	}
	return client, nil
}

func (s *Server) exchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" || req.CodeVerifier == "" {
		return nil, fmt.Errorf("%w: code and code_verifier are required", ErrInvalidRequest)
	}
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	// The code is spent before the checks below, so a failed exchange (bad
	// verifier, wrong client) still invalidates it.
	now := s.now()
	code, err := s.store.ConsumeCode(ctx, auth.HashToken(req.Code), now)
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	switch {
	case code == nil:
		return nil, fmt.Errorf("%w: code is invalid or already used", ErrInvalidGrant)
	case !now.Before(code.ExpiresAt):
		return nil, fmt.Errorf("%w: code expired", ErrInvalidGrant)
	case code.ClientID != client.ClientID:
		return nil, fmt.Errorf("%w: code was issued to another client", ErrInvalidGrant)
	case req.RedirectURI != "" && req.RedirectURI != code.RedirectURI:
		return nil, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	case !auth.VerifyPKCE(code.CodeChallenge, code.CodeChallengeMethod, req.CodeVerifier):
		return nil, fmt.Errorf("%w: code_verifier does not match", ErrInvalidGrant)
	}

	return s.issueTokens(ctx, client.ClientID, code.UserID, code.Scopes, now)
}

// issueTokens signs an access token and stores a fresh refresh token.
func (s *Server) issueTokens(ctx context.Context, clientID, userID string, scopes []string, now time.Time) (*TokenResponse, error) {
	resp, err := s.issueAccessToken(ctx, clientID, userID, scopes)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.RandomToken(refreshBytes)
	if err != nil {
		return nil, err
	}
	err = s.store.CreateRefreshToken(ctx, &models.OAuthRefreshToken{
		TokenHash: auth.HashToken(refresh),
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	resp.RefreshToken = refresh
	return resp, nil
}

func (s *Server) refresh(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	hash := auth.HashToken(req.RefreshToken)
	now := s.now()
	rt, err := s.store.GetRefreshToken(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if rt == nil || !rt.Usable(now) {
		return nil, fmt.Errorf("%w: refresh token is invalid, expired or revoked", ErrInvalidGrant)
	}
	if rt.ClientID != client.ClientID {
		return nil, fmt.Errorf("%w: refresh token was issued to another client", ErrInvalidGrant)
	}

	// Refresh tokens rotate. Only the request that revokes the presented token
	// gets a new pair; a concurrent replay loses the race.
	revoked, err := s.store.RevokeRefreshToken(ctx, hash, now)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !revoked {
		return nil, fmt.Errorf("%w: refresh token is invalid, expired or revoked", ErrInvalidGrant)
	}
	return s.issueTokens(ctx, client.ClientID, rt.UserID, rt.Scopes, now)
}

func (s *Server) issueAccessToken(ctx context.Context, clientID, userID string, scopes []string) (*TokenResponse, error) {
	user, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: account no longer exists", ErrInvalidGrant)
	}
	token, err := auth.GenerateAccessToken(s.cfg.Issuer, user.ID, user.Email, clientID, scopes, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.AccessTokenTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// RegisterClient creates a client owned by userID. Confidential clients get a
// secret that is returned only here.
func (s *Server) RegisterClient(ctx context.Context, userID, name string, redirectURIs, scopes []string, confidential bool) (*RegisteredClient, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if len(redirectURIs) == 0 {
		return nil, fmt.Errorf("%w: at least one redirect uri is required", ErrInvalidRequest)
	}
	for _, r := range redirectURIs {
		u, err := url.Parse(r)
		if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" {
			return nil, fmt.Errorf("%w: invalid redirect uri %q", ErrInvalidRequest, r)
		}
	}
	if len(scopes) == 0 {
		scopes = auth.DefaultScopes()
	}
	for _, sc := range scopes {
		if sc != string(auth.ScopeRead) && sc != string(auth.ScopeWrite) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScope, sc)
		}
	}

	random, err := auth.RandomAlphanumeric(clientIDLen)
	if err != nil {
		return nil, err
	}
	client := &models.OAuthClient{
		ClientID:     "lpc_" + random,
		UserID:       userID,
		Name:         name,
		RedirectURIs: redirectURIs,
		Scopes:       scopes,
	}

	var secret string
	if confidential {
		secret, err = auth.RandomAlphanumeric(secretLen)
		if err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(secret)
		if err != nil {
			return nil, err
		}
		client.ClientSecretHash = &hash
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("store client: %w", err)
	}
	slog.Info("oauth client registered", "client_id", client.ClientID, "user_id", userID, "confidential", confidential)
	return &RegisteredClient{OAuthClient: client, ClientSecret: secret}, nil
}

// ListClients returns the clients userID registered.
func (s *Server) ListClients(ctx context.Context, userID string) ([]*models.OAuthClient, error) {
	return s.store.ListClientsByUser(ctx, userID)
}
