package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/guard"
	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/session"
	"github.com/tuniway/tuniway-web/users"
)

// authResult is the JSON body answering a successful login or registration.
type authResult struct {
	User     users.Record `json:"user"`
	Redirect string       `json:"redirect"`
}

// LoginPageHandler describes the login view (GET /login).
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		writeJSON(w, http.StatusOK, map[string]any{
			"view":      "login",
			"returnUrl": safeReturnURL(q.Get(guard.ReturnURLParam)),
			"error":     q.Get("error"),
			"providers": s.providerLinks(),
		})
	}
}

// LoginSubmissionHandler processes POST /login as JSON or a form.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			creds     users.Credentials
			returnURL string
		)
		if isJSONRequest(r) {
			var body struct {
				users.Credentials
				ReturnURL string `json:"returnUrl"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			creds, returnURL = body.Credentials, body.ReturnURL
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form data", http.StatusBadRequest)
				return
			}
			creds = users.Credentials{
				Username: firstNonEmpty(r.PostForm.Get("username"), r.PostForm.Get("email")),
				Password: r.PostForm.Get("password"),
			}
			returnURL = r.PostForm.Get(guard.ReturnURLParam)
		}
		returnURL = safeReturnURL(firstNonEmpty(returnURL, r.URL.Query().Get(guard.ReturnURLParam)))

		if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
			s.authFailed(w, r, RouteLogin, http.StatusBadRequest, "Username and password are required", returnURL)
			return
		}

		record, err := s.manager.Login(r.Context(), creds)
		if err != nil {
			status, msg := authFailure(err)
			s.authFailed(w, r, RouteLogin, status, msg, returnURL)
			return
		}

		s.authSucceeded(w, r, record, returnURL)
	}
}

// RegisterPageHandler describes the registration view (GET /register).
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"view":              "register",
			"error":             r.URL.Query().Get("error"),
			"roles":             []users.Role{users.RoleClient, users.RoleGuide},
			"minPasswordLength": users.MinPasswordLength,
			"providers":         s.providerLinks(),
		})
	}
}

// RegisterSubmissionHandler processes POST /register as JSON or a form.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg users.Registration
		if isJSONRequest(r) {
			if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Invalid form data", http.StatusBadRequest)
				return
			}
			reg = users.Registration{
				Username: r.PostForm.Get("username"),
				Email:    r.PostForm.Get("email"),
				Password: r.PostForm.Get("password"),
				Role:     users.Role(r.PostForm.Get("role")),
			}
		}

		if reg.Role != "" {
			role, err := users.ParseRole(string(reg.Role))
			if err != nil {
				s.authFailed(w, r, RouteRegister, http.StatusBadRequest, "Error: Invalid role", "")
				return
			}
			reg.Role = role
		}
		if err := users.ValidatePassword(reg.Password); err != nil {
			s.authFailed(w, r, RouteRegister, http.StatusBadRequest, "Error: Password must be at least 6 characters", "")
			return
		}

		record, err := s.manager.Register(r.Context(), reg)
		if err != nil {
			status, msg := authFailure(err)
			s.authFailed(w, r, RouteRegister, status, msg, "")
			return
		}

		s.authSucceeded(w, r, record, "")
	}
}

// LogoutHandler clears the session (POST /logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.manager.Logout(); err != nil {
			log.Err(err).Msg("logout left stale state in the store")
		}
		if isJSONRequest(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		redirectSuccess(w, r, RouteLogin)
	}
}

func (s *Server) authSucceeded(w http.ResponseWriter, r *http.Request, record users.Record, returnURL string) {
	target := firstNonEmpty(returnURL, record.Role.LandingPath())
	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, authResult{User: record, Redirect: target})
		return
	}
	redirectSuccess(w, r, target)
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, path string, status int, msg, returnURL string) {
	if isJSONRequest(r) {
		writeJSONError(w, status, msg)
		return
	}
	redirectWithError(w, r, path, msg, url.Values{guard.ReturnURLParam: {returnURL}})
}

// authFailure maps a login or registration error to a response status and a
// message fit for display. Backend 4xx answers pass through; anything else is
// a gateway problem from the browser's point of view.
func authFailure(err error) (int, string) {
	var authErr *session.AuthenticationError
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError, "Could not save the session"
	}
	if authErr.Status >= 400 && authErr.Status < 500 {
		msg := authErr.Message
		if msg == "" {
			msg = http.StatusText(authErr.Status)
		}
		return authErr.Status, msg
	}
	return http.StatusBadGateway, "Authentication service unavailable"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
