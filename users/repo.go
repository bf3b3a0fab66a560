package users

// Account is the backend-side view of a user: the public record plus the
// password hash. Only the fake backend stores these.
type Account struct {
	Record
	PasswordHash string `json:"-"` // never serialize
}

type AccountRepo interface {
	Create(account *Account) error
	Update(account *Account) error
	GetByID(id int64) (*Account, error)
	GetByEmail(email string) (*Account, error)
	GetByUsername(username string) (*Account, error)
}
