package model

import "github.com/golang-jwt/jwt/v5"

// AdminClaims are the JWT claims of an operator token.
type AdminClaims struct {
	AdminID string `json:"adminId"`
	jwt.RegisteredClaims
}

// SubjectClaims are the JWT claims of a subject-scoped token, used by clients
// watching one subject's narrative stream.
type SubjectClaims struct {
	SubjectID string `json:"subjectId"`
	jwt.RegisteredClaims
}

// LoginRequest is the operator login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued operator token.
type LoginResponse struct {
	Token   string `json:"token"`
	AdminID string `json:"adminId"`
}
