package auth

import (
	errors "github.com/frahmantamala/knowledge-gateway/internal"
	"github.com/frahmantamala/knowledge-gateway/internal/core/common/validation"
)

// LoginDTO is posted by the OAuth frontend after it has verified the
// user's Google identity. APIKey proves the request comes from the
// trusted frontend, not from an arbitrary caller who knows an email.
type LoginDTO struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	APIKey    string `json:"api_key"`
}

func (d LoginDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email().MaxLength(255)
	v.Field("name", d.Name).MaxLength(255)
	v.Field("api_key", d.APIKey).Required()
	return v.Validate()
}
