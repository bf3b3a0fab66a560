package backend

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/users"
)

var ErrMissingToken = errors.New("auth response carries no token")

// AuthResponse is the signin/signup response body. Older backend builds send
// the bearer under accessToken instead of token.
type AuthResponse struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	Message        string  `json:"message,omitempty"`
	Type           string  `json:"type,omitempty"`
	Token          string  `json:"token,omitempty"`
	AccessToken    string  `json:"accessToken,omitempty"`
}

// BearerToken returns whichever token field the backend populated.
func (a AuthResponse) BearerToken() string {
	if a.Token != "" {
		return a.Token
	}
	return a.AccessToken
}

// Record builds the session record carried by the response.
func (a AuthResponse) Record() (users.Record, error) {
	return profileResponse{
		ID:             a.ID,
		Username:       a.Username,
		Email:          a.Email,
		Role:           a.Role,
		ProfilePicture: a.ProfilePicture,
	}.record()
}

func (a AuthResponse) validate() error {
	if _, err := a.Record(); err != nil {
		return err
	}
	if strings.TrimSpace(a.BearerToken()) == "" {
		return ErrMissingToken
	}
	return nil
}

type profileResponse struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

func (p profileResponse) record() (users.Record, error) {
	// Spring authorities may come back prefixed
	role, err := users.ParseRole(strings.TrimPrefix(p.Role, "ROLE_"))
	if err != nil {
		return users.Record{}, fmt.Errorf("[backend] profile %d: %w", p.ID, err)
	}

	r := users.Record{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Role:     role,
	}
	if p.ProfilePicture != nil && *p.ProfilePicture != "" {
		pic := *p.ProfilePicture
		r.ProfilePicture = &pic
	}
	if err := r.Validate(); err != nil {
		return users.Record{}, apperrors.Wrapf(err, "[backend] profile %d", p.ID)
	}
	return r, nil
}
