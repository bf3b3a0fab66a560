package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/guard"
	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/users"
)

type sessionView struct {
	LoggedIn bool          `json:"loggedIn"`
	User     *users.Record `json:"user,omitempty"`
	IsGuide  bool          `json:"isGuide"`
	IsAdmin  bool          `json:"isAdmin"`
	IsClient bool          `json:"isClient"`
}

func (s *Server) currentView() sessionView {
	record, ok := s.manager.Current()
	if !ok {
		return sessionView{}
	}
	return sessionView{
		LoggedIn: true,
		User:     &record,
		IsGuide:  record.IsGuide(),
		IsAdmin:  record.IsAdmin(),
		IsClient: record.IsClient(),
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": s.appName,
		})
	}
}

// HomeHandler is public and shows the navigation state.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"view":    "home",
			"session": s.currentView(),
		})
	}
}

// SessionHandler exposes what the session manager currently holds.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.currentView())
	}
}

// ProfileViewHandler renders a guarded profile view with the record the
// guard admitted.
func (s *Server) ProfileViewHandler(view string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, _ := guard.RecordFrom(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"view": view,
			"user": record,
		})
	}
}

// AdminIndexHandler sends /admin to its first section.
func (s *Server) AdminIndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteAdmin+"/overview", http.StatusSeeOther)
	}
}

func (s *Server) AdminSectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		section := chi.URLParam(r, "section")
		if _, ok := adminSections[section]; !ok {
			writeJSONError(w, http.StatusNotFound, "Page not found")
			return
		}
		record, _ := guard.RecordFrom(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"view":    "admin",
			"section": section,
			"user":    record,
		})
	}
}

// ProfileUpdateHandler saves a profile edit on the backend and merges the
// stored result into the session (PUT /profile).
func (s *Server) ProfileUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := guard.RecordFrom(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "No active session")
			return
		}

		var patch users.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if patch.Empty() {
			writeJSONError(w, http.StatusBadRequest, "Nothing to update")
			return
		}

		saved, err := s.profiles.UpdateProfile(r.Context(), record.ID, patch)
		if err != nil {
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
				writeJSONError(w, apiErr.Status, apiErr.Message)
				return
			}
			log.Warn().Err(err).Int64("user_id", record.ID).Msg("profile update failed")
			writeJSONError(w, http.StatusBadGateway, "Profile service unavailable")
			return
		}

		updated, ok, err := s.manager.UpdateCurrentFor(record.ID, users.PatchFrom(saved))
		if err != nil {
			log.Err(err).Int64("user_id", record.ID).Msg("profile saved but session not updated")
			writeJSONError(w, http.StatusInternalServerError, "Could not save the session")
			return
		}
		if !ok {
			// The session ended or changed hands while the backend call was in flight
			if s.manager.IsLoggedIn() {
				writeJSONError(w, http.StatusConflict, "Session changed during the update")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "No active session")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
