package domain

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// Claim is the JWT payload the dashboard issues. cbs only consumes tokens;
// the user store and login flow live outside this service.
type Claim struct {
	UserID uuid.UUID `json:"user_id"`
	Admin  bool      `json:"admin"`
	jwt.StandardClaims
}
