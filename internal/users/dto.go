package users

import (
	"strings"

	"github.com/angelmondragon/orderengine/pkg/db/models"
)

// UserDTO is the transport shape of a directory entry.
type UserDTO struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	IsAdmin   bool
}

// ToModel converts the DTO into the GORM model, normalizing the email.
func (dto CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:     strings.ToLower(strings.TrimSpace(dto.Email)),
		FirstName: strings.TrimSpace(dto.FirstName),
		LastName:  strings.TrimSpace(dto.LastName),
		Phone:     strings.TrimSpace(dto.Phone),
		IsAdmin:   dto.IsAdmin,
	}
}

// FromModel maps a persisted user into its transport shape.
func FromModel(user *models.User) UserDTO {
	if user == nil {
		return UserDTO{}
	}
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		IsAdmin:   user.IsAdmin,
	}
}
