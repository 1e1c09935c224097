package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Role constants for user authorization.
const (
	RoleUser      = "user"
	RolePublisher = "publisher"
	RoleAdmin     = "admin"
)

var ValidRoles = []string{RoleUser, RolePublisher, RoleAdmin}

// ResetTokenTTL is how long a forgot-password token stays usable.
const ResetTokenTTL = 10 * time.Minute

type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name                string             `bson:"name" json:"name"`
	Email               string             `bson:"email" json:"email"`
	Role                string             `bson:"role" json:"role"`
	Password            string             `bson:"password" json:"-"` // bcrypt hash
	ResetPasswordToken  string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpire *time.Time         `bson:"resetPasswordExpire,omitempty" json:"-"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserHiddenFields are never returned by list queries.
var UserHiddenFields = []string{"password", "resetPasswordToken", "resetPasswordExpire"}

// SetPassword replaces the stored hash. It is the only place the hash is computed.
func (u *User) SetPassword(plain string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// MatchPassword reports whether plain is the password last given to SetPassword.
func (u *User) MatchPassword(plain string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// NewResetToken sets the hashed reset token and its expiry on u and returns the plaintext token.
func (u *User) NewResetToken(now time.Time) (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	exp := now.Add(ResetTokenTTL)
	u.ResetPasswordToken = HashResetToken(token)
	u.ResetPasswordExpire = &exp
	return token, nil
}

// ClearResetToken drops both reset fields together.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpire = nil
}

// HashResetToken is the one-way form of a reset token as persisted.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func RoleValid(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
