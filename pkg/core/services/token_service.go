package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/logger"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

const (
	DefaultRefreshThreshold = 5 * time.Minute
	DefaultRefreshTimeout   = 15 * time.Second

	refreshFlightKey = "refresh"
)

// TokenLifecycle owns the session token pair. It refreshes lazily once the access token
// is within the refresh threshold of its expiry, shares a single in-flight refresh between
// all callers, and becomes Expired for good when a refresh fails.
type TokenLifecycle struct {
	auth           ports.AuthAPI
	threshold      time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *zap.Logger
	metrics        ports.Metrics

	mu       sync.Mutex
	state    domain.SessionState
	token    domain.SessionToken
	operator domain.Operator

	flights singleflight.Group
}

type TokenLifecycleOption func(*TokenLifecycle)

func WithRefreshThreshold(d time.Duration) TokenLifecycleOption {
	return func(l *TokenLifecycle) { l.threshold = d }
}

func WithRefreshTimeout(d time.Duration) TokenLifecycleOption {
	return func(l *TokenLifecycle) { l.refreshTimeout = d }
}

func WithClock(now func() time.Time) TokenLifecycleOption {
	return func(l *TokenLifecycle) { l.now = now }
}

func WithTokenLogger(lg *zap.Logger) TokenLifecycleOption {
	return func(l *TokenLifecycle) { l.logger = lg }
}

func WithTokenMetrics(m ports.Metrics) TokenLifecycleOption {
	return func(l *TokenLifecycle) { l.metrics = m }
}

func NewTokenLifecycle(auth ports.AuthAPI, opts ...TokenLifecycleOption) *TokenLifecycle {
	l := &TokenLifecycle{
		auth:           auth,
		threshold:      DefaultRefreshThreshold,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		metrics:        ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Login authenticates against the remote API and starts a fresh session.
// It is the only way out of the Expired state.
func (l *TokenLifecycle) Login(ctx context.Context, username, password string) (*domain.Operator, error) {
	grant, err := l.auth.Login(ctx, username, password)
	if err != nil {
		l.logger.Warn("login failed", zap.String("username", logger.MaskEmail(username)), zap.Error(err))
		return nil, err
	}
	if grant == nil || grant.AccessToken == "" {
		return nil, errors.New("login returned no access token")
	}

	operator, err := operatorFromToken(grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	l.mu.Lock()
	l.token = grant.SessionToken(l.now())
	l.state = domain.StateAuthenticated
	l.operator = operator
	l.mu.Unlock()

	l.logger.Info("login successful", zap.String("operator", logger.MaskEmail(operator.Email)))
	return &operator, nil
}

// AccessToken returns the current access token by value, refreshing first when it is
// about to expire. Callers arriving while a refresh runs wait for that refresh.
func (l *TokenLifecycle) AccessToken(ctx context.Context) (string, error) {
	l.mu.Lock()
	switch l.state {
	case domain.StateExpired:
		l.mu.Unlock()
		return "", domain.ErrAuthExpired
	case domain.StateSignedOut:
		l.mu.Unlock()
		return "", domain.ErrNotAuthenticated
	case domain.StateAuthenticated:
		if l.now().Before(l.token.ExpiresAt.Add(-l.threshold)) {
			token := l.token.AccessToken
			l.mu.Unlock()
			return token, nil
		}
		l.state = domain.StateRefreshing
	}
	l.mu.Unlock()

	ch := l.flights.DoChan(refreshFlightKey, func() (interface{}, error) {
		return l.refresh(ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *TokenLifecycle) refresh(ctx context.Context) (string, error) {
	l.mu.Lock()
	switch l.state {
	case domain.StateAuthenticated:
		// a refresh finished between the caller's state check and this flight
		token := l.token.AccessToken
		l.mu.Unlock()
		return token, nil
	case domain.StateExpired:
		l.mu.Unlock()
		return "", domain.ErrAuthExpired
	case domain.StateSignedOut:
		l.mu.Unlock()
		return "", domain.ErrNotAuthenticated
	}
	refreshToken := l.token.RefreshToken
	l.mu.Unlock()

	// The refresh outlives any single waiter's context.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.refreshTimeout)
	defer cancel()
	grant, err := l.auth.Refresh(rctx, refreshToken)
	if err == nil && (grant == nil || grant.AccessToken == "") {
		err = fmt.Errorf("%w: empty access token", domain.ErrRefreshRejected)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// a Login or Logout during the flight wins over its result
	switch l.state {
	case domain.StateAuthenticated:
		return l.token.AccessToken, nil
	case domain.StateExpired:
		return "", domain.ErrAuthExpired
	case domain.StateSignedOut:
		return "", domain.ErrNotAuthenticated
	}
	if err != nil {
		l.state = domain.StateExpired
		l.token = domain.SessionToken{}
		l.metrics.TokenRefreshed("failure")
		l.logger.Warn("token refresh failed, session expired", zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrAuthExpired, err)
	}

	l.token = grant.SessionToken(l.now())
	l.state = domain.StateAuthenticated
	l.metrics.TokenRefreshed("success")
	l.logger.Debug("token refreshed", zap.Time("expires_at", l.token.ExpiresAt))
	return l.token.AccessToken, nil
}

// Token implements oauth2.TokenSource.
func (l *TokenLifecycle) Token() (*oauth2.Token, error) {
	access, err := l.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	expiry := l.token.ExpiresAt
	l.mu.Unlock()

	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: expiry}, nil
}

// Logout drops the token pair. A refresh still in flight will not reinstate it.
func (l *TokenLifecycle) Logout() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = domain.StateSignedOut
	l.token = domain.SessionToken{}
	l.operator = domain.Operator{}
}

func (l *TokenLifecycle) State() domain.SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *TokenLifecycle) Operator() domain.Operator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.operator
}

func (l *TokenLifecycle) ExpiresAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token.ExpiresAt
}

// operatorFromToken reads the identity claims of an access token. The signature is not
// checked here; the token comes straight from the login response.
func operatorFromToken(accessToken string) (domain.Operator, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return domain.Operator{}, err
	}

	subject, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return domain.Operator{ID: subject, Email: email, Name: name}, nil
}

var (
	_ ports.TokenProvider = (*TokenLifecycle)(nil)
	_ oauth2.TokenSource  = (*TokenLifecycle)(nil)
)
