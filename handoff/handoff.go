// Package handoff completes an external identity provider login. The backend
// finishes the provider flow and redirects the browser back with the session
// material in the query string; this package turns that into a session.
package handoff

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/guard"
	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/metrics"
	"github.com/tuniway/tuniway-web/users"
)

// Redirect query parameters sent by the backend.
const (
	ParamToken          = "token"
	ParamUsername       = "username"
	ParamEmail          = "email"
	ParamRole           = "role"
	ParamID             = "id"
	ParamProfilePicture = "profilePicture"
)

// Supported identity providers.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

const (
	authorizationPath = "/oauth2/authorization/"
	loginPath         = "/login"
)

// Outcome labels a Complete result. The values double as metrics labels.
type Outcome string

const (
	Skipped       Outcome = "skipped"
	MissingParams Outcome = "missing_params"
	Established   Outcome = "established"
	Fallback      Outcome = "fallback"
	Failed        Outcome = "failed"
)

// Result is what Complete did and where the user goes next.
type Result struct {
	Outcome  Outcome
	Redirect string // empty when Skipped
	Record   users.Record
	Err      error // cause for MissingParams, Fallback and Failed
}

// SessionSetter is the part of the session manager the handoff writes to.
type SessionSetter interface {
	SetToken(token string) error
	SetCurrent(record users.Record) error
	Logout() error
}

// ProfileFetcher loads the canonical profile. The call is expected to carry
// the token just stored.
type ProfileFetcher interface {
	Profile(ctx context.Context, id int64) (users.Record, error)
}

// Handler handles the provider redirect.
type Handler struct {
	session  SessionSetter
	profiles ProfileFetcher
	origin   string
	metrics  *metrics.Metrics
}

type Option func(*Handler)

// WithBackendOrigin sets the scheme and host the provider login URLs point
// at. The provider endpoints live outside the /api prefix.
func WithBackendOrigin(origin string) Option {
	return func(h *Handler) {
		h.origin = strings.TrimRight(origin, "/")
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(session SessionSetter, profiles ProfileFetcher, opts ...Option) *Handler {
	h := &Handler{session: session, profiles: profiles}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BackendOrigin strips the /api suffix from a backend base URL.
func BackendOrigin(baseURL string) string {
	return strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/api")
}

// Complete runs the handoff for the redirect query params.
func (h *Handler) Complete(ctx context.Context, env guard.Environment, params url.Values) Result {
	res := h.complete(ctx, env, params)
	if res.Outcome != Skipped {
		h.metrics.Handoff(string(res.Outcome))
	}
	return res
}

func (h *Handler) complete(ctx context.Context, env guard.Environment, params url.Values) Result {
	if env != guard.Browser {
		return Result{Outcome: Skipped}
	}

	token, fallback, err := parseParams(params)
	if err != nil {
		log.Warn().Err(err).Msg("handoff: incomplete redirect")
		return Result{Outcome: MissingParams, Redirect: loginPath, Err: err}
	}

	if err := h.session.SetToken(token); err != nil {
		log.Err(err).Msg("handoff: failed to store token")
		return Result{Outcome: Failed, Redirect: loginPath, Err: err}
	}

	canonical, err := h.profiles.Profile(ctx, fallback.ID)
	if err != nil {
		fetchErr := errors.Wrapf(errors.Join(errors.ErrProfileFetch, err), "[handoff] profile %d", fallback.ID)
		log.Warn().Err(err).Int64("user_id", fallback.ID).Msg("handoff: profile fetch failed, using redirect params")
		if err := h.session.SetCurrent(fallback); err != nil {
			log.Err(err).Int64("user_id", fallback.ID).Msg("handoff: failed to store fallback record")
			return h.fail(err)
		}
		return Result{Outcome: Fallback, Redirect: users.LandingProfile, Record: fallback, Err: fetchErr}
	}

	if err := h.session.SetCurrent(canonical); err != nil {
		log.Err(err).Int64("user_id", canonical.ID).Msg("handoff: failed to store profile")
		return h.fail(err)
	}
	log.Info().Int64("user_id", canonical.ID).Str("role", string(canonical.Role)).Msg("handoff: session established")
	return Result{Outcome: Established, Redirect: canonical.Role.LandingPath(), Record: canonical}
}

// fail drops the token stored earlier in the handoff so it is never left
// paired with another user's record.
func (h *Handler) fail(err error) Result {
	if clearErr := h.session.Logout(); clearErr != nil {
		log.Err(clearErr).Msg("handoff: failed to clear session after failed handoff")
		err = errors.Join(err, clearErr)
	}
	return Result{Outcome: Failed, Redirect: loginPath, Err: err}
}

// parseParams returns the token and the record built from the params. A
// missing field, a non-positive id or an unknown role all count as missing.
func parseParams(params url.Values) (string, users.Record, error) {
	var missing []string
	for _, name := range []string{ParamToken, ParamUsername, ParamEmail, ParamRole, ParamID} {
		if strings.TrimSpace(params.Get(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", users.Record{}, errors.Wrapf(errors.ErrMissingHandoffParams, "missing %s", strings.Join(missing, ", "))
	}

	id, err := strconv.ParseInt(params.Get(ParamID), 10, 64)
	if err != nil || id <= 0 {
		return "", users.Record{}, errors.Wrapf(errors.ErrMissingHandoffParams, "id %q", params.Get(ParamID))
	}
	role, err := users.ParseRole(strings.TrimPrefix(params.Get(ParamRole), "ROLE_"))
	if err != nil {
		return "", users.Record{}, errors.Wrapf(errors.Join(errors.ErrMissingHandoffParams, err), "role")
	}

	record := users.Record{
		ID:       id,
		Username: params.Get(ParamUsername),
		Email:    params.Get(ParamEmail),
		Role:     role,
	}
	if pic := params.Get(ParamProfilePicture); pic != "" {
		record.ProfilePicture = &pic
	}
	return params.Get(ParamToken), record, nil
}

// ServeHTTP handles GET /oauth2/redirect.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := h.Complete(r.Context(), guard.EnvironmentOf(r), r.URL.Query())
	if res.Outcome == Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

// ProviderLoginURL returns where the browser goes to start a provider login.
func (h *Handler) ProviderLoginURL(provider string) (string, error) {
	switch provider {
	case ProviderGoogle, ProviderGitHub:
		return h.origin + authorizationPath + provider, nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupportedProvider, "%q", provider)
	}
}

// LoginRedirect returns a handler sending the browser to the provider's login.
// provider extracts the provider name from the request.
func (h *Handler) LoginRedirect(provider func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.ProviderLoginURL(provider(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
