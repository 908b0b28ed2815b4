package token

import (
	"vigil/internal/platform/middleware"
)

// ToAdminClaims converts token claims to the middleware's view of them.
func ToAdminClaims(claims *Claims) *middleware.AdminClaims {
	return &middleware.AdminClaims{
		AdminID: claims.AdminID,
		Scopes:  claims.Scope,
	}
}

// ValidatorAdapter adapts Service to the middleware TokenValidator interface.
type ValidatorAdapter struct {
	service *Service
}

func NewValidatorAdapter(service *Service) *ValidatorAdapter {
	return &ValidatorAdapter{service: service}
}

func (a *ValidatorAdapter) Validate(tokenString string) (*middleware.AdminClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return ToAdminClaims(claims), nil
}
