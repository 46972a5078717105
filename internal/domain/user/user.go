package user

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Login        string    `json:"login" gorm:"not null;index"`
	FirstName    string    `json:"firstName" gorm:"not null;default:''"`
	LastName     string    `json:"lastName" gorm:"not null;default:''"`
	GravatarHash string    `json:"gravatarHash" gorm:"not null;default:''"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName pins the GORM table name
func (User) TableName() string {
	return "users"
}

// CreateUserRequest represents the request to create a user
type CreateUserRequest struct {
	Login     string `json:"login" xml:"login" validate:"required,notblank,letterordigit"`
	FirstName string `json:"firstName" xml:"firstName" validate:"required,notblank"`
	LastName  string `json:"lastName" xml:"lastName" validate:"required,notblank"`
}

// UpdateUserRequest represents the full replacement of a user, also used as
// the base document for partial updates
type UpdateUserRequest struct {
	Login     string `json:"login" xml:"login" validate:"required,notblank,letterordigit"`
	FirstName string `json:"firstName" xml:"firstName" validate:"required,notblank"`
	LastName  string `json:"lastName" xml:"lastName" validate:"required,notblank"`
}

// UserView is the read-only projection returned to clients
type UserView struct {
	XMLName      xml.Name  `json:"-" xml:"user"`
	ID           uuid.UUID `json:"id" xml:"id"`
	Login        string    `json:"login" xml:"login"`
	FirstName    string    `json:"firstName" xml:"firstName"`
	LastName     string    `json:"lastName" xml:"lastName"`
	FullName     string    `json:"fullName" xml:"fullName"`
	RegisteredAt time.Time `json:"registeredAt" xml:"registeredAt"`
}

// NewUser creates an empty user carrying the given ID. A nil ID is
// replaced by the repository on insert.
func NewUser(id uuid.UUID) *User {
	return &User{ID: id}
}

// NewUserFromCreate maps a create request onto a fresh entity
func NewUserFromCreate(req *CreateUserRequest) *User {
	return &User{
		Login:     req.Login,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
}

// FullName returns "LastName FirstName"
func (u *User) FullName() string {
	return strings.TrimSpace(u.LastName + " " + u.FirstName)
}

// ApplyUpdate copies the request fields onto u. The ID is never touched.
func (u *User) ApplyUpdate(req *UpdateUserRequest) {
	u.Login = req.Login
	u.FirstName = req.FirstName
	u.LastName = req.LastName
}

// ToUpdateRequest projects u into the document patched by PATCH requests
func (u *User) ToUpdateRequest() *UpdateUserRequest {
	return &UpdateUserRequest{
		Login:     u.Login,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// ToView projects u for output
func (u *User) ToView() UserView {
	return UserView{
		ID:           u.ID,
		Login:        u.Login,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		FullName:     u.FullName(),
		RegisteredAt: u.CreatedAt,
	}
}

// ToViews projects a slice of users, never returning nil
func ToViews(users []*User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.ToView())
	}
	return views
}

// Clone returns a copy of u
func (u *User) Clone() *User {
	c := *u
	return &c
}
