package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/memoflix/internal/gateway"
	"github.com/MarcoPoloResearchLab/memoflix/internal/localstore"
	"github.com/MarcoPoloResearchLab/memoflix/internal/session"
	"go.uber.org/zap"
)

const (
	commentsPath = "/rest/v1/memorial_comments"
	likesPath    = "/rest/v1/memorial_likes"
)

var (
	// ErrLoginRequired marks operations that need an authenticated user.
	ErrLoginRequired = errors.New("social: login required")
	// ErrEmptyContent rejects blank comment submissions.
	ErrEmptyContent = errors.New("social: comment content is empty")
	// ErrMissingKey rejects operations without a memorial key.
	ErrMissingKey = errors.New("social: memorial key is empty")

	errMissingGateway  = errors.New("social: gateway is required")
	errMissingSessions = errors.New("social: session reader is required")
	errMissingFallback = errors.New("social: fallback store is required")
)

// Source tags where a result came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Comment is the rendered comment shape, newest-first within a result.
type Comment struct {
	Content   string    `json:"content"`
	UserName  string    `json:"user_name"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentsResult carries a memorial's comments plus the path that produced
// them.
type CommentsResult struct {
	Comments []Comment `json:"comments"`
	Source   Source    `json:"source"`
}

// LikeState is the button state, a pure function of (authenticated, liked).
type LikeState string

const (
	LikeStateLoginRequired LikeState = "login-required"
	LikeStateLike          LikeState = "like"
	LikeStateLiked         LikeState = "liked"
)

// Label returns the button caption for the state.
func (s LikeState) Label() string {
	switch s {
	case LikeStateLoginRequired:
		return "Like (Login)"
	case LikeStateLiked:
		return "Liked"
	default:
		return "Like"
	}
}

func likeStateFor(authenticated, hasLiked bool) LikeState {
	if !authenticated {
		return LikeStateLoginRequired
	}
	if hasLiked {
		return LikeStateLiked
	}
	return LikeStateLike
}

// RemoteGateway is the slice of the gateway client the service needs.
type RemoteGateway interface {
	Enabled() bool
	Do(ctx context.Context, opts gateway.RequestOptions) (json.RawMessage, error)
}

// SessionReader exposes the current identity and bearer token.
type SessionReader interface {
	CurrentUser() (session.CurrentUser, bool)
	AccessToken() string
}

// FallbackStore is the local persistence consulted when the cloud path is
// unavailable or fails.
type FallbackStore interface {
	CommentsFor(key string) []localstore.StoredComment
	AppendComment(key string, comment localstore.StoredComment) error
	ToggleLike(key, email string) (bool, error)
	HasLiked(key, email string) bool
}

// IDProvider issues identifiers for locally appended comments.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies for the social service.
type ServiceConfig struct {
	Gateway    RemoteGateway
	Sessions   SessionReader
	Fallback   FallbackStore
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service orchestrates comment listing/submission and like toggling,
// remote-first with local fallback on failure. Remote failures never surface;
// they degrade silently to the local path.
type Service struct {
	gateway    RemoteGateway
	sessions   SessionReader
	fallback   FallbackStore
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the social service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, errMissingGateway
	}
	if cfg.Sessions == nil {
		return nil, errMissingSessions
	}
	if cfg.Fallback == nil {
		return nil, errMissingFallback
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway:    cfg.Gateway,
		sessions:   cfg.Sessions,
		fallback:   cfg.Fallback,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// remoteAvailable reports whether the cloud path can be attempted at all.
func (s *Service) remoteAvailable() bool {
	return s.gateway.Enabled() && s.sessions.AccessToken() != ""
}

// FetchComments lists the key's comments newest-first. The remote path asks
// for descending creation order; the local sequence is append-ordered
// oldest-first and reversed here so both paths agree.
func (s *Service) FetchComments(ctx context.Context, key string) CommentsResult {
	if key == "" {
		return CommentsResult{Comments: []Comment{}, Source: SourceLocal}
	}

	if s.remoteAvailable() {
		comments, err := s.fetchRemoteComments(ctx, key)
		if err == nil {
			return CommentsResult{Comments: comments, Source: SourceRemote}
		}
		s.logger.Debug("remote comment fetch failed, using local fallback",
			zap.String("memorial_key", key), zap.Error(err))
	}

	stored := s.fallback.CommentsFor(key)
	comments := make([]Comment, 0, len(stored))
	for index := len(stored) - 1; index >= 0; index-- {
		comments = append(comments, Comment{
			Content:   stored[index].Content,
			UserName:  stored[index].UserName,
			CreatedAt: stored[index].CreatedAt,
		})
	}
	return CommentsResult{Comments: comments, Source: SourceLocal}
}

func (s *Service) fetchRemoteComments(ctx context.Context, key string) ([]Comment, error) {
	path := fmt.Sprintf(
		"%s?select=content,user_name,created_at,user_id&memorial_key=eq.%s&order=created_at.desc",
		commentsPath, url.QueryEscape(key))
	payload, err := s.gateway.Do(ctx, gateway.RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		BearerToken: s.sessions.AccessToken(),
	})
	if err != nil {
		return nil, err
	}
	var comments []Comment
	if err := json.Unmarshal(payload, &comments); err != nil {
		return nil, fmt.Errorf("social: decode comments: %w", err)
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

// SubmitComment posts the trimmed content for the key and returns the
// refreshed comment list. Blank content, a blank key and a missing user are
// rejected before any persistence or network call.
func (s *Service) SubmitComment(ctx context.Context, key, content string) (CommentsResult, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return CommentsResult{}, ErrEmptyContent
	}
	if key == "" {
		return CommentsResult{}, ErrMissingKey
	}
	user, ok := s.sessions.CurrentUser()
	if !ok {
		return CommentsResult{}, ErrLoginRequired
	}

	if s.remoteAvailable() {
		_, err := s.gateway.Do(ctx, gateway.RequestOptions{
			Method:      http.MethodPost,
			Path:        commentsPath,
			BearerToken: s.sessions.AccessToken(),
			Headers:     map[string]string{"Prefer": "return=representation"},
			Body: map[string]any{
				"memorial_key": key,
				"content":      trimmed,
				"user_id":      user.ID,
				"user_name":    user.Name,
			},
		})
		if err == nil {
			return s.FetchComments(ctx, key), nil
		}
		s.logger.Debug("remote comment submit failed, appending locally",
			zap.String("memorial_key", key), zap.Error(err))
	}

	stored := localstore.StoredComment{
		Content:   trimmed,
		UserName:  user.Name,
		UserEmail: user.Email,
		CreatedAt: s.clock().UTC(),
	}
	if s.idProvider != nil {
		id, err := s.idProvider.NewID()
		if err != nil {
			return CommentsResult{}, err
		}
		stored.ID = id
	}
	if err := s.fallback.AppendComment(key, stored); err != nil {
		return CommentsResult{}, err
	}
	return s.FetchComments(ctx, key), nil
}

// LikeState reports the button state for the key. Unauthenticated users see
// the login prompt regardless of stored membership.
func (s *Service) LikeState(ctx context.Context, key string) LikeState {
	user, ok := s.sessions.CurrentUser()
	if !ok || key == "" {
		return likeStateFor(false, false)
	}

	if s.remoteAvailable() && user.ID != "" {
		hasLiked, err := s.remoteHasLiked(ctx, key, user.ID)
		if err == nil {
			return likeStateFor(true, hasLiked)
		}
		s.logger.Debug("remote like lookup failed, using local fallback",
			zap.String("memorial_key", key), zap.Error(err))
	}

	return likeStateFor(true, s.fallback.HasLiked(key, user.Email))
}

func (s *Service) remoteHasLiked(ctx context.Context, key, userID string) (bool, error) {
	path := fmt.Sprintf("%s?select=id&memorial_key=eq.%s&user_id=eq.%s&limit=1",
		likesPath, url.QueryEscape(key), url.QueryEscape(userID))
	payload, err := s.gateway.Do(ctx, gateway.RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		BearerToken: s.sessions.AccessToken(),
	})
	if err != nil {
		return false, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return false, fmt.Errorf("social: decode likes: %w", err)
	}
	return len(rows) > 0, nil
}

// ToggleLike flips the user's like for the key and returns the recomputed
// button state. The remote existence-check-then-write is not atomic; rapid
// double invocation can race (a known limitation, matching the remote
// store's lack of transactional guarantees).
func (s *Service) ToggleLike(ctx context.Context, key string) (LikeState, error) {
	user, ok := s.sessions.CurrentUser()
	if !ok {
		return LikeStateLoginRequired, ErrLoginRequired
	}
	if key == "" {
		return likeStateFor(true, false), ErrMissingKey
	}

	if s.remoteAvailable() && user.ID != "" {
		err := s.toggleRemoteLike(ctx, key, user.ID)
		if err == nil {
			return s.LikeState(ctx, key), nil
		}
		s.logger.Debug("remote like toggle failed, toggling locally",
			zap.String("memorial_key", key), zap.Error(err))
	}

	if _, err := s.fallback.ToggleLike(key, user.Email); err != nil {
		return s.LikeState(ctx, key), err
	}
	return s.LikeState(ctx, key), nil
}

func (s *Service) toggleRemoteLike(ctx context.Context, key, userID string) error {
	hasLiked, err := s.remoteHasLiked(ctx, key, userID)
	if err != nil {
		return err
	}

	if hasLiked {
		path := fmt.Sprintf("%s?memorial_key=eq.%s&user_id=eq.%s",
			likesPath, url.QueryEscape(key), url.QueryEscape(userID))
		_, err := s.gateway.Do(ctx, gateway.RequestOptions{
			Method:      http.MethodDelete,
			Path:        path,
			BearerToken: s.sessions.AccessToken(),
		})
		return err
	}

	_, err = s.gateway.Do(ctx, gateway.RequestOptions{
		Method:      http.MethodPost,
		Path:        likesPath,
		BearerToken: s.sessions.AccessToken(),
		Headers:     map[string]string{"Prefer": "return=representation"},
		Body: map[string]any{
			"memorial_key": key,
			"user_id":      userID,
		},
	})
	return err
}
