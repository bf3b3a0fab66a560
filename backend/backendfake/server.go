// Package backendfake is an in-process stand-in for the Tuniway REST backend.
// It implements the handful of endpoints the session layer consumes and is
// used by tests and by `tuniway serve --fake-backend`.
package backendfake

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/users"
	fakeuserrepo "github.com/tuniway/tuniway-web/users/repofake"
)

const (
	tokenIssuer = "tuniway-backendfake"
	tokenTTL    = 24 * time.Hour
)

// Claims issued in fake backend tokens.
type Claims struct {
	jwtlib.RegisteredClaims
	UserID int64      `json:"uid"`
	Role   users.Role `json:"role"`
}

// Server serves the fake API under /api.
type Server struct {
	mux         *http.ServeMux
	repo        *fakeuserrepo.FakeUserRepo
	secret      []byte
	profileDown atomic.Bool
	now         func() time.Time
}

func New(secret string) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		repo:   fakeuserrepo.NewFakeUserRepo(),
		secret: []byte(secret),
		now:    time.Now,
	}
	s.mux.HandleFunc("POST /api"+backend.PathSignIn, s.signIn)
	s.mux.HandleFunc("POST /api"+backend.PathSignUp, s.signUp)
	s.mux.HandleFunc("GET /api"+backend.PathProfile+"{id}", s.profile)
	s.mux.HandleFunc("PUT /api"+backend.PathUsers+"{id}", s.updateProfile)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Seed stores an account with the given clear-text password.
func (s *Server) Seed(record users.Record, password string) (users.Record, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return users.Record{}, err
	}
	account := &users.Account{Record: record, PasswordHash: hash}
	if err := s.repo.Create(account); err != nil {
		return users.Record{}, err
	}
	return account.Record, nil
}

// SetProfileAvailable toggles the canonical profile endpoint. When down it
// answers 503, which exercises the handoff fallback path.
func (s *Server) SetProfileAvailable(up bool) {
	s.profileDown.Store(!up)
}

// IssueToken signs a token for record, as the OAuth2 success handler would.
func (s *Server) IssueToken(record users.Record) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   record.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(tokenTTL)),
		},
		UserID: record.ID,
		Role:   record.Role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var creds users.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		account *users.Account
		err     error
	)
	if strings.Contains(creds.Username, "@") {
		account, err = s.repo.GetByEmail(creds.Username)
	} else {
		account, err = s.repo.GetByUsername(creds.Username)
	}
	if err != nil || !users.CheckPasswordHash(creds.Password, account.PasswordHash) {
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	s.writeAuth(w, http.StatusOK, account.Record)
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var reg users.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	reg = reg.WithDefaults()

	switch {
	case strings.TrimSpace(reg.Username) == "":
		writeMessage(w, http.StatusBadRequest, "Error: Username is required")
		return
	case strings.TrimSpace(reg.Email) == "":
		writeMessage(w, http.StatusBadRequest, "Error: Email is required")
		return
	case users.ValidatePassword(reg.Password) != nil:
		writeMessage(w, http.StatusBadRequest, "Error: Password must be at least 6 characters")
		return
	}

	role, err := users.ParseRole(string(reg.Role))
	if err != nil {
		role = users.RoleClient
	}

	record, err := s.Seed(users.Record{Username: reg.Username, Email: reg.Email, Role: role}, reg.Password)
	switch {
	case errors.Is(err, fakeuserrepo.ErrEmailTaken):
		writeMessage(w, http.StatusConflict, "Error: Email is already in use!")
		return
	case errors.Is(err, fakeuserrepo.ErrUsernameTaken):
		writeMessage(w, http.StatusConflict, "Error: Username is already taken!")
		return
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeAuth(w, http.StatusOK, record)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	if s.profileDown.Load() {
		writeMessage(w, http.StatusServiceUnavailable, "profile service unavailable")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	account, err := s.repo.GetByID(id)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, account.Record)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if claims.UserID != id && claims.Role != users.RoleAdmin {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}

	var patch users.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := s.repo.GetByID(id)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	account.Record = account.Record.Merge(patch)
	if err := s.repo.Update(account); err != nil {
		writeMessage(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, account.Record)
}

func (s *Server) writeAuth(w http.ResponseWriter, status int, record users.Record) {
	token, err := s.IssueToken(record)
	if err != nil {
		log.Err(err).Msg("backendfake: failed to sign token")
		writeMessage(w, http.StatusInternalServerError, "token signing failed")
		return
	}
	writeJSON(w, status, backend.AuthResponse{
		ID:             record.ID,
		Username:       record.Username,
		Email:          record.Email,
		Role:           string(record.Role),
		ProfilePicture: record.ProfilePicture,
		Type:           "Bearer",
		Token:          token,
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("backendfake: failed to encode response")
	}
}
