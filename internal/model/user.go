package model

import "time"

// Credential is a row of the users table.
type Credential struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
	AllowLogin   bool   `json:"allow_login"`
}

// RefreshSession is a live refresh_tokens row joined with its owning credential.
type RefreshSession struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	User      Credential
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	IsAdmin      bool   `json:"is_admin"`
	AllowLogin   bool   `json:"allow_login"`
}

func PrincipalFromCredential(c Credential) Principal {
	return Principal{
		ID:           c.ID,
		EmailAddress: c.EmailAddress,
		IsAdmin:      c.IsAdmin,
		AllowLogin:   c.AllowLogin,
	}
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type AuthClaims struct {
	UserID    string    `json:"sub"`
	Type      string    `json:"typ"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Profile is the companion document stored in the Users document database.
type Profile struct {
	ID              string    `bson:"_id" json:"id"`
	EmailAddress    string    `bson:"email_address" json:"email_address"`
	FullName        string    `bson:"full_name" json:"full_name"`
	TelephoneNumber string    `bson:"telephone_number" json:"telephone_number"`
	FullAddress     string    `bson:"full_address" json:"full_address"`
	Gender          string    `bson:"gender" json:"gender"`
	EthnicGroup     string    `bson:"ethnic_group" json:"ethnic_group"`
	DateOfBirth     string    `bson:"date_of_birth" json:"date_of_birth"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

type UserDetails struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	FullName     string `json:"full_name"`
	IsAdmin      bool   `json:"is_admin"`
	AllowLogin   bool   `json:"allow_login"`
}

type RegisteredUser struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}
