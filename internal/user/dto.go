package user

import (
	errors "github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/core/common/validation"
)

// CreateUserDTO whitelists a new account. Roles default to viewer when
// omitted; role names are checked against the roles table by the service.
type CreateUserDTO struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (d CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email().MaxLength(255)
	v.Field("name", d.Name).MaxLength(255)
	return v.Validate()
}

// UpdateUserDTO mutates name, active flag, or role set. Nil fields are
// left untouched.
type UpdateUserDTO struct {
	Name     *string   `json:"name,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
	Roles    *[]string `json:"roles,omitempty"`
}

func (d UpdateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).MaxLength(255)
	}
	if d.Roles != nil {
		v.Field("roles", *d.Roles).Required()
	}
	return v.Validate()
}
