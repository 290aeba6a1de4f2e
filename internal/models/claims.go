package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims carries the authenticated user identity inside a JWT.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
}
