// Package authtest runs an in-process fake of the authentication service and
// a protected API behind it, for tests and local demos. It implements only
// the wire contract the client depends on.
package authtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Secret signs every token minted by this package.
var Secret = []byte("authtest-secret")

// Mint returns an HS256 token for subject expiring at exp.
func Mint(subject string, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        uuid.NewString(),
	}).SignedString(Secret)
	if err != nil {
		panic(err)
	}
	return tok
}

// Server is a fake auth service plus a protected API under /api.
type Server struct {
	*httptest.Server

	// TTL is the lifetime of minted tokens.
	TTL time.Duration
	// RenewGrace lets /auth/renew accept tokens that expired less than this ago.
	RenewGrace time.Duration
	// RenewDelay holds every renewal, to widen race windows in tests.
	RenewDelay time.Duration
	// RenewStatus, when non-zero, is returned by /auth/renew instead of a token.
	RenewStatus int
	// RejectAll makes every /api call answer 401 regardless of the token.
	RejectAll bool
	// Profile is returned with login and renewal responses.
	Profile map[string]any

	mu    sync.Mutex
	users map[string]string

	renewals  atomic.Int64
	logins    atomic.Int64
	apiCalls  atomic.Int64
	publicHit atomic.Int64
}

// New starts a server with a single user ada@example.org / "password".
func New() *Server {
	s := &Server{
		TTL:        time.Hour,
		RenewGrace: time.Minute,
		Profile:    map[string]any{"name": "Ada", "role": "admin"},
		users:      map[string]string{"ada@example.org": "password"},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/renew", s.renew)
		r.Post("/signup", s.public)
		r.Post("/forgot-password", s.public)
		r.Post("/reset-password", s.public)
	})
	r.HandleFunc("/api/*", s.api)
	return r
}

// Renewals is the number of /auth/renew requests received.
func (s *Server) Renewals() int64 { return s.renewals.Load() }

// Logins is the number of /auth/login requests received.
func (s *Server) Logins() int64 { return s.logins.Load() }

// APICalls is the number of /api requests received.
func (s *Server) APICalls() int64 { return s.apiCalls.Load() }

// PublicCalls is the number of signup/forgot/reset requests received.
func (s *Server) PublicCalls() int64 { return s.publicHit.Load() }

// AddUser registers credentials accepted by /auth/login.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string         `json:"token"`
	Profile map[string]any `json:"profile,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	pw, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || pw != req.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:   Mint(req.Email, time.Now().Add(s.TTL)),
		Profile: s.Profile,
	})
}

func (s *Server) renew(w http.ResponseWriter, r *http.Request) {
	s.renewals.Add(1)
	if s.RenewDelay > 0 {
		time.Sleep(s.RenewDelay)
	}
	if s.RenewStatus != 0 {
		http.Error(w, http.StatusText(s.RenewStatus), s.RenewStatus)
		return
	}

	claims, err := s.verify(r, s.RenewGrace)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:   Mint(claims.Subject, time.Now().Add(s.TTL)),
		Profile: s.Profile,
	})
}

func (s *Server) public(w http.ResponseWriter, r *http.Request) {
	s.publicHit.Add(1)
	if r.Header.Get("Authorization") != "" {
		http.Error(w, "unexpected credentials", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) api(w http.ResponseWriter, r *http.Request) {
	s.apiCalls.Add(1)
	if s.RejectAll {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := s.verify(r, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    r.URL.Path,
		"subject": claims.Subject,
		"method":  r.Method,
	})
}

var errMissingBearer = errors.New("missing bearer token")

func (s *Server) verify(r *http.Request, grace time.Duration) (*jwt.RegisteredClaims, error) {
	return VerifyBearer(r.Header.Get("Authorization"), grace)
}

// VerifyBearer checks a "Bearer <token>" value: signature and expiry,
// tolerating tokens that expired less than grace ago.
func VerifyBearer(header string, grace time.Duration) (*jwt.RegisteredClaims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errMissingBearer
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return Secret, nil
	}, jwt.WithLeeway(grace), jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
