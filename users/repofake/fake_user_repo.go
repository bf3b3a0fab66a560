package fakeuserrepo

import (
	"errors"
	"strings"
	"sync"

	"github.com/tuniway/tuniway-web/users"
)

var _ users.AccountRepo = (*FakeUserRepo)(nil)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already exists")
	ErrUsernameTaken = errors.New("username already exists")
)

type FakeUserRepo struct {
	accounts  map[int64]*users.Account
	emailIds  map[string]int64 // email to account id
	usernames map[string]int64 // username to account id
	nextID    int64
	lock      sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts:  make(map[int64]*users.Account),
		emailIds:  make(map[string]int64),
		usernames: make(map[string]int64),
		nextID:    1,
	}
}

// Create assigns the next id when the account has none.
func (ur *FakeUserRepo) Create(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[strings.ToLower(account.Email)]; ok {
		return ErrEmailTaken
	}
	if _, ok := ur.usernames[account.Username]; ok {
		return ErrUsernameTaken
	}

	if account.ID == 0 {
		account.ID = ur.nextID
	}
	if account.ID >= ur.nextID {
		ur.nextID = account.ID + 1
	}

	ur.store(account)
	return nil
}

func (ur *FakeUserRepo) Update(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.accounts[account.ID]
	if !ok {
		return ErrNotFound
	}
	if id, ok := ur.emailIds[strings.ToLower(account.Email)]; ok && id != account.ID {
		return ErrEmailTaken
	}
	if id, ok := ur.usernames[account.Username]; ok && id != account.ID {
		return ErrUsernameTaken
	}

	delete(ur.emailIds, strings.ToLower(existing.Email))
	delete(ur.usernames, existing.Username)
	ur.store(account)
	return nil
}

func (ur *FakeUserRepo) store(account *users.Account) {
	cp := *account
	ur.accounts[account.ID] = &cp
	ur.emailIds[strings.ToLower(account.Email)] = account.ID
	ur.usernames[account.Username] = account.ID
}

func (ur *FakeUserRepo) GetByID(id int64) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	account, ok := ur.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	id, ok := ur.emailIds[strings.ToLower(email)]
	ur.lock.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return ur.GetByID(id)
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.Account, error) {
	ur.lock.RLock()
	id, ok := ur.usernames[username]
	ur.lock.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return ur.GetByID(id)
}
