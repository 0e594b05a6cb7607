package mapper

import (
	"time"

	"github.com/AlibekovAA/authcore/internal/account/domain"
)

type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func ProfileToDTO(profile domain.Profile) Profile {
	return Profile{
		ID:        string(profile.ID),
		Username:  profile.Username,
		Email:     profile.Email,
		CreatedAt: profile.CreatedAt,
	}
}
