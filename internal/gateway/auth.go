package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MarcoPoloResearchLab/memoflix/internal/session"
	"go.uber.org/zap"
)

const (
	signUpPath        = "/auth/v1/signup"
	passwordGrantPath = "/auth/v1/token?grant_type=password"
	logoutPath        = "/auth/v1/logout"
	profilesPath      = "/rest/v1/user_profiles"
)

var (
	errMissingClient   = errors.New("gateway: client is required")
	errMissingSessions = errors.New("gateway: session store is required")
)

// AuthConfig describes the dependencies for the Auth service.
type AuthConfig struct {
	Client   *Client
	Sessions *session.Store
	Logger   *zap.Logger
}

// Auth drives the sign-up, sign-in and sign-out flows against the hosted
// backend and keeps the session store in step.
type Auth struct {
	client   *Client
	sessions *session.Store
	logger   *zap.Logger
}

// NewAuth constructs the auth service.
func NewAuth(cfg AuthConfig) (*Auth, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	if cfg.Sessions == nil {
		return nil, errMissingSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auth{client: cfg.Client, sessions: cfg.Sessions, logger: logger}, nil
}

// SignUp posts the registration. When the response embeds a session the
// store is updated as a side effect; the return reports whether that
// happened, since backends requiring email confirmation return none.
func (a *Auth) SignUp(ctx context.Context, name, email, password string) (bool, error) {
	payload, err := a.client.Do(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   signUpPath,
		Body: map[string]any{
			"email":    email,
			"password": password,
			"data":     map[string]any{"display_name": name},
		},
	})
	if err != nil {
		return false, err
	}

	var response struct {
		Session *session.Session `json:"session"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &response); err != nil {
			return false, fmt.Errorf("gateway: decode signup response: %w", err)
		}
	}
	if response.Session == nil {
		return false, nil
	}
	if err := a.sessions.Write(*response.Session); err != nil {
		return false, err
	}
	return true, nil
}

// SignIn posts the password grant and always constructs and persists a new
// session from the response fields.
func (a *Auth) SignIn(ctx context.Context, email, password string) (session.Session, error) {
	payload, err := a.client.Do(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   passwordGrantPath,
		Body:   map[string]any{"email": email, "password": password},
	})
	if err != nil {
		return session.Session{}, err
	}

	var sess session.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return session.Session{}, fmt.Errorf("gateway: decode token response: %w", err)
	}
	if err := a.sessions.Write(sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// SignOut attempts the remote revoke when a session exists and clears the
// local record unconditionally. A failed revoke is swallowed.
func (a *Auth) SignOut(ctx context.Context) error {
	if sess, ok := a.sessions.Read(); ok {
		_, err := a.client.Do(ctx, RequestOptions{
			Method:      http.MethodPost,
			Path:        logoutPath,
			BearerToken: sess.AccessToken,
		})
		if err != nil {
			a.logger.Debug("remote logout failed, clearing local session anyway", zap.Error(err))
		}
	}
	return a.sessions.Clear()
}

// UpsertProfile performs the idempotent profile write keyed by user id.
// A no-op without a valid session.
func (a *Auth) UpsertProfile(ctx context.Context) error {
	sess, ok := a.sessions.Read()
	if !ok {
		return nil
	}
	user, ok := a.sessions.CurrentUser()
	if !ok {
		return nil
	}

	_, err := a.client.Do(ctx, RequestOptions{
		Method:      http.MethodPost,
		Path:        profilesPath,
		BearerToken: sess.AccessToken,
		Headers:     map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
		Body: map[string]any{
			"user_id":      user.ID,
			"display_name": user.Name,
			"email":        user.Email,
		},
	})
	return err
}

// CountRows counts the rows in a collection matching one equality filter,
// used by the profile activity stats.
func (c *Client) CountRows(ctx context.Context, table, column, value, bearerToken string) (int, error) {
	path := fmt.Sprintf("/rest/v1/%s?select=id&%s=eq.%s", table, column, url.QueryEscape(value))
	payload, err := c.Do(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		BearerToken: bearerToken,
	})
	if err != nil {
		return 0, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return 0, fmt.Errorf("gateway: decode count response: %w", err)
	}
	return len(rows), nil
}
