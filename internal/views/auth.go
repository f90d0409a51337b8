package views

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/models"
	"golang.org/x/oauth2"
)

// MinPasswordLength is enforced on sign-up.
const MinPasswordLength = 8

const invalidCredentialsMessage = "Invalid email or password"

// LoginForm signs a user in and records the result in the session store.
type LoginForm struct {
	deps Deps

	Email string
	Err   string
}

func NewLoginForm(d Deps) *LoginForm { return &LoginForm{deps: d} }

// Submit reports whether the session is now authenticated.
func (f *LoginForm) Submit(ctx context.Context, email, password string) bool {
	f.Email = strings.TrimSpace(email)
	if f.Email == "" || password == "" {
		f.Err = "Email and password are required."
		return false
	}

	tok, err := f.deps.Backend.SignIn(ctx, f.Email, password)
	if err != nil {
		f.deps.logger().Warn("sign in failed", "email", f.Email, "error", err)
		f.Err = signInMessage(err)
		return false
	}
	msg, ok := completeSignIn(ctx, f.deps, tok)
	f.Err = msg
	return ok
}

// SignupForm creates an account and signs the new user in.
type SignupForm struct {
	deps Deps

	Email       string
	DisplayName string
	Err         string
}

func NewSignupForm(d Deps) *SignupForm { return &SignupForm{deps: d} }

// ValidateSignUp normalizes req and checks the password confirmation.
func ValidateSignUp(req *models.SignUpRequest, confirm string) error {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" {
		return inputError("Email is required.")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return inputError("Enter a valid email address.")
	}
	if len(req.Password) < MinPasswordLength {
		return inputError(fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	}
	if req.Password != confirm {
		return inputError("Passwords do not match.")
	}
	return nil
}

// Submit reports whether the account was created and signed in.
func (f *SignupForm) Submit(ctx context.Context, req models.SignUpRequest, confirm string) bool {
	err := ValidateSignUp(&req, confirm)
	f.Email, f.DisplayName = req.Email, req.DisplayName
	if err != nil {
		f.Err = err.Error()
		return false
	}

	tok, err := f.deps.Backend.SignUp(ctx, req)
	if err != nil {
		f.deps.logger().Warn("sign up failed", "email", req.Email, "error", err)
		f.Err = signUpMessage(err)
		return false
	}
	msg, ok := completeSignIn(ctx, f.deps, tok)
	f.Err = msg
	return ok
}

// completeSignIn loads the user behind a fresh token and logs the session in.
func completeSignIn(ctx context.Context, d Deps, tok *oauth2.Token) (string, bool) {
	user, err := d.Backend.GetCurrentUser(ctx, tok)
	if err != nil {
		d.logger().Error("loading user after sign in", "error", err)
		return describe(err, "Failed to load your profile"), false
	}
	if user == nil {
		return "Failed to load your profile", false
	}
	if d.Session != nil {
		d.Session.Login(user, tok)
	}
	return "", true
}

func signInMessage(err error) string {
	if errors.Is(err, backend.ErrUnauthorized) || errors.Is(err, backend.ErrInvalid) {
		return invalidCredentialsMessage
	}
	return describe(err, invalidCredentialsMessage)
}

func signUpMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Kind == backend.KindInvalid && be.Message != "" {
		return be.Message
	}
	return describe(err, "Failed to create account")
}
