package users

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/internal/utils"
)

// Role is the closed set of Tuniway account roles. It drives feature visibility
// and the landing view after login.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleGuide  Role = "GUIDE"
	RoleAdmin  Role = "ADMIN"
)

// Landing views per role.
const (
	LandingAdmin   = "/admin"
	LandingGuide   = "/guide/profile"
	LandingProfile = "/profile"
)

// ParseRole normalises a role string coming from the backend or a redirect.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleClient, RoleGuide, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, errors.ErrInvalidRecord)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// LandingPath returns the view a freshly established session is sent to.
func (r Role) LandingPath() string {
	switch r {
	case RoleAdmin:
		return LandingAdmin
	case RoleGuide:
		return LandingGuide
	default:
		return LandingProfile
	}
}

// Record is the client-held snapshot of the authenticated user. It is what gets
// persisted under the currentUser key.
type Record struct {
	ID             int64   `json:"id"`                       // Backend identifier, immutable once assigned
	Username       string  `json:"username"`                 // Display name
	Email          string  `json:"email"`                    // Contact address
	Role           Role    `json:"role"`                     // Read-only on the client
	ProfilePicture *string `json:"profilePicture,omitempty"` // URL or data URI, nil means no picture
}

// Validate checks the fields the rest of the client relies on.
func (r Record) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("record id %d: %w", r.ID, errors.ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("record username empty: %w", errors.ErrInvalidRecord)
	}
	if !r.Role.Valid() {
		return fmt.Errorf("record role %q: %w", r.Role, errors.ErrInvalidRecord)
	}
	return nil
}

func (r Record) IsGuide() bool  { return r.Role == RoleGuide }
func (r Record) IsAdmin() bool  { return r.Role == RoleAdmin }
func (r Record) IsClient() bool { return r.Role == RoleClient }

// Patch is a partial record applied on profile edits. Role and ID are not
// patchable from the client.
type Patch struct {
	Username       *string `json:"username,omitempty"`
	Email          *string `json:"email,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.ProfilePicture == nil
}

// Merge returns a copy of r with the non-nil fields of p applied.
func (r Record) Merge(p Patch) Record {
	out := r
	if p.Username != nil {
		out.Username = *p.Username
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.ProfilePicture != nil {
		if *p.ProfilePicture == "" {
			out.ProfilePicture = nil
		} else {
			out.ProfilePicture = utils.Ptr(*p.ProfilePicture)
		}
	}
	return out
}

// PatchFrom builds a patch carrying every mutable field of r. Used when the
// backend returns a full updated profile.
func PatchFrom(r Record) Patch {
	return Patch{
		Username:       utils.Ptr(r.Username),
		Email:          utils.Ptr(r.Email),
		ProfilePicture: utils.Ptr(utils.Value(r.ProfilePicture)),
	}
}

// Credentials is the signin payload. Username may also carry an email address.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the signup payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// WithDefaults fills in the role when the caller left it empty.
func (r Registration) WithDefaults() Registration {
	if r.Role == "" {
		r.Role = RoleClient
	}
	return r
}

// MinPasswordLength matches the backend signup rule.
const MinPasswordLength = 6

// ValidatePassword mirrors the backend signup check so the CLI can fail early.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
