package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/claude/fitfam/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// expiryLeeway treats tokens this close to expiry as already expired.
const expiryLeeway = 10 * time.Second

// SignIn exchanges credentials for tokens with the password grant.
func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*oauth2.Token, error) {
	tok, err := c.oauth.PasswordCredentialsToken(c.oauthContext(ctx), email, password)
	if err != nil {
		return nil, oauthError("/auth/v1/token", err)
	}
	return tok, nil
}

// SignUp creates an account and returns the tokens of its first session.
func (c *HTTPClient) SignUp(ctx context.Context, req models.SignUpRequest) (*oauth2.Token, error) {
	var resp tokenResponse
	if err := c.do(ctx, nil, http.MethodPost, "/auth/v1/signup", req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &Error{Op: "/auth/v1/signup", Kind: KindInvalid, Message: "no session issued"}
	}
	return resp.token(), nil
}

// SignOut revokes the session behind tok. A nil token is a no-op.
func (c *HTTPClient) SignOut(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return nil
	}
	return c.do(ctx, tok, http.MethodPost, "/auth/v1/logout", nil, nil)
}

// GetSession reports whether tok still represents a live session. It returns
// the token to keep using, which differs from tok when a refresh happened,
// or nil when there is no session.
func (c *HTTPClient) GetSession(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, nil
	}

	if TokenExpired(tok, time.Now()) {
		if tok.RefreshToken == "" {
			return nil, nil
		}
		fresh, err := c.Refresh(ctx, tok.RefreshToken)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalid) {
				return nil, nil
			}
			return nil, err
		}
		tok = fresh
	}

	var resp struct {
		Active bool `json:"active"`
	}
	if err := c.do(ctx, tok, http.MethodGet, "/auth/v1/session", nil, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	if !resp.Active {
		return nil, nil
	}
	return tok, nil
}

// Refresh trades a refresh token for a new token pair.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, oauthError("/auth/v1/token", err)
	}
	return tok, nil
}

// GetCurrentUser returns the user behind tok, or nil when the backend has no
// profile for it.
func (c *HTTPClient) GetCurrentUser(ctx context.Context, tok *oauth2.Token) (*models.User, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, nil
	}
	var u *models.User
	if err := c.do(ctx, tok, http.MethodGet, "/auth/v1/user", nil, &u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if u != nil && u.ID == "" {
		return nil, nil
	}
	return u, nil
}

// TokenExpired reports whether tok is past its expiry at now. Tokens without
// an explicit expiry fall back to the JWT exp claim; opaque tokens with no
// expiry information are treated as live.
func TokenExpired(tok *oauth2.Token, now time.Time) bool {
	exp := TokenExpiry(tok)
	if exp.IsZero() {
		return false
	}
	return !now.Add(expiryLeeway).Before(exp)
}

// TokenExpiry returns when tok expires, or the zero time when unknown.
func TokenExpiry(tok *oauth2.Token) time.Time {
	if tok == nil {
		return time.Time{}
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (t tokenResponse) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// oauthError converts failures from the oauth2 package. A rejected grant is
// reported as unauthorized so callers can tell bad credentials from outages.
func oauthError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		kind := kindForStatus(re.Response.StatusCode)
		if re.Response.StatusCode == http.StatusBadRequest {
			kind = KindUnauthorized
		}
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		return &Error{Op: op, Status: re.Response.StatusCode, Kind: kind, Message: msg, Err: err}
	}
	return transportError(op, err)
}
