package domain

import "time"

type ID string

// Account is a registered identity. PasswordHash is an encoded hash and
// never plaintext.
type Account struct {
	ID           ID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
}

// Draft carries everything a store needs to persist a new account.
type Draft struct {
	ID           ID
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// Profile is the public view of an account.
type Profile struct {
	ID        ID
	Username  string
	Email     string
	CreatedAt time.Time
}

func (a Account) Profile() Profile {
	return Profile{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	}
}

func (d Draft) Account() Account {
	return Account{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.CreatedAt,
		IsActive:     d.IsActive,
	}
}
