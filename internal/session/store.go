package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"roadsurvey/internal/survey"
)

const (
	DefaultCookieName  = "rds_session"
	DefaultTTL         = 2 * time.Hour
	DefaultMaxSessions = 10000

	tokenIssuer = "roadsurvey"
)

var ErrInvalidToken = errors.New("session: invalid token")

// Options configures a Store.
type Options struct {
	Secret       string
	TTL          time.Duration
	MaxSessions  int
	CookieName   string
	SecureCookie bool
}

// Store holds live sessions in an expirable LRU. The browser carries a
// signed token naming its session.
type Store struct {
	sessions *expirable.LRU[string, *Session]
	bank     *survey.Bank
	opts     Options
	logger   *slog.Logger

	// newRand seeds the draw of a new session.
	newRand func() *rand.Rand
	now     func() time.Time
}

// NewStore creates a Store drawing questions from bank.
func NewStore(bank *survey.Bank, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Secret == "" {
		return nil, errors.New("session: secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		bank:   bank,
		opts:   opts,
		logger: logger,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		now: time.Now,
	}
	s.sessions = expirable.NewLRU[string, *Session](opts.MaxSessions, func(id string, _ *Session) {
		logger.Debug("session evicted", "session", id)
	}, opts.TTL)
	return s, nil
}

// New starts a session with a fresh draw from the bank.
func (s *Store) New() *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Draw:      s.bank.Draw(s.newRand()),
	}
	s.sessions.Add(sess.ID, sess)
	s.logger.Info("session started", "session", sess.ID)
	return sess
}

// Get looks up a live session.
func (s *Store) Get(id string) (*Session, bool) {
	return s.sessions.Get(id)
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.sessions.Remove(id)
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

// Token signs a token naming the session.
func (s *Store) Token(sess *Session) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   sess.ID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.opts.Secret))
}

// ParseToken validates a token and returns the session ID it names.
func (s *Store) ParseToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.opts.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Load returns the request's session, starting a new one (and setting the
// cookie) when the cookie is missing, invalid or names an expired session.
func (s *Store) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		id, err := s.ParseToken(c.Value)
		if err == nil {
			if sess, ok := s.Get(id); ok {
				return sess, nil
			}
			s.logger.Debug("session expired", "session", id)
		} else {
			s.logger.Debug("rejected session cookie", "error", err)
		}
	}
	return s.start(w)
}

// Reset discards the request's session and starts a new one.
func (s *Store) Reset(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if sess := FromContext(r.Context()); sess != nil {
		s.Delete(sess.ID)
	}
	return s.start(w)
}

func (s *Store) start(w http.ResponseWriter) (*Session, error) {
	sess := s.New()
	token, err := s.Token(sess)
	if err != nil {
		s.Delete(sess.ID)
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Debug("session started", "session", sess.ID, "active", s.Len())
	return sess, nil
}

type contextKey string

const sessionContextKey contextKey = "session"

// Middleware loads the session and stores it in the request context.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Load(w, r)
		if err != nil {
			s.logger.Error("failed to load session", "error", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// WithSession returns ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// FromContext returns the session stored by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey).(*Session)
	return sess
}
