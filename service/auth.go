package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinaaaquil/devcamper/apperror"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to every password the service hashes.
const MinPasswordLength = 6

var errInvalidCredentials = apperror.Unauthorized("Invalid Credentials")

// UserStore is the persistence the auth service needs. *store.DB satisfies it.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id primitive.ObjectID, upd store.UserUpdate) (*models.User, error)
	SaveCredentials(ctx context.Context, user *models.User) error
}

// Message is one outgoing notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to users.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// TokenConfig is fixed at startup.
type TokenConfig struct {
	Secret []byte
	Expire time.Duration
}

// Claims carried by a bearer token.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  UserStore
	mail   Notifier
	tokens TokenConfig
	cost   int
	log    *slog.Logger
	now    func() time.Time
	// decoy holds a hash at the configured cost. Logins for unknown emails compare
	// against it so they take as long as a wrong password.
	decoy models.User
}

func NewAuthService(users UserStore, mail Notifier, tokens TokenConfig, bcryptCost int, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		users:  users,
		mail:   mail,
		tokens: tokens,
		cost:   bcryptCost,
		log:    logger,
		now:    time.Now,
	}
	if err := s.decoy.SetPassword("decoy-password", bcryptCost); err != nil {
		logger.Warn("decoy hash at configured cost failed", "err", err)
		_ = s.decoy.SetPassword("decoy-password", bcrypt.DefaultCost)
	}
	return s
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates a self-service account and returns it with a bearer token.
// Self-registration may not claim the admin role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if in.Role == models.RoleAdmin {
		return nil, "", apperror.BadRequest("Role admin cannot be self-assigned")
	}
	user, err := s.CreateUser(ctx, in)
	if err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateUser creates an account with any valid role. Used directly by administrators.
func (s *AuthService) CreateUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperror.BadRequest("Please add a name, email and password")
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !models.RoleValid(in.Role) {
		return nil, apperror.BadRequest(fmt.Sprintf("Role %q is not valid", in.Role))
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperror.BadRequest(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	existing, err := s.users.UserByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, apperror.Conflict("Email already registered")
	}

	user := &models.User{
		Name:      in.Name,
		Email:     strings.ToLower(in.Email),
		Role:      in.Role,
		CreatedAt: s.now().UTC(),
	}
	if err := user.SetPassword(in.Password, s.cost); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates by email and password. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", apperror.BadRequest("Please provide an email and password")
	}
	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup email: %w", err)
	}
	if user == nil {
		s.decoy.MatchPassword(password)
		return nil, "", errInvalidCredentials
	}
	if !user.MatchPassword(password) {
		return nil, "", errInvalidCredentials
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueToken signs a bearer token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		ID: user.ID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.Expire)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokens.Secret)
	if err != nil {
		return "", apperror.ServerError("Server Error", fmt.Errorf("sign token: %w", err))
	}
	return signed, nil
}

// VerifyToken validates signature, algorithm and expiry and returns the user id.
func (s *AuthService) VerifyToken(tokenString string) (primitive.ObjectID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.tokens.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return primitive.NilObjectID, apperror.Unauthorized("Not authorized to access this route")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return primitive.NilObjectID, apperror.Unauthorized("Not authorized to access this route")
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return primitive.NilObjectID, apperror.Unauthorized("Not authorized to access this route")
	}
	return id, nil
}

// Authenticate verifies the token and loads its user. A user deleted since issuance is rejected.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	id, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("Not authorized to access this route")
	}
	return user, nil
}

func (s *AuthService) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperror.NotFound("User not found with id of " + id.Hex())
	}
	return user, nil
}

// UpdateDetails changes name and email; empty values are left unchanged.
func (s *AuthService) UpdateDetails(ctx context.Context, id primitive.ObjectID, name, email string) (*models.User, error) {
	var upd store.UserUpdate
	if name != "" {
		upd.Name = &name
	}
	if email != "" {
		other, err := s.users.UserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lookup email: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, apperror.Conflict("Email already registered")
		}
		upd.Email = &email
	}
	user, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User not found with id of " + id.Hex())
	}
	return user, nil
}

// UpdatePassword requires the current password and returns a fresh token.
func (s *AuthService) UpdatePassword(ctx context.Context, id primitive.ObjectID, current, next string) (*models.User, string, error) {
	if current == "" || next == "" {
		return nil, "", apperror.BadRequest("Please provide the current and new password")
	}
	user, err := s.Me(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !user.MatchPassword(current) {
		return nil, "", apperror.Unauthorized("Password is incorrect")
	}
	if next == current {
		return nil, "", apperror.BadRequest("New password must differ from the current one")
	}
	if len(next) < MinPasswordLength {
		return nil, "", apperror.BadRequest(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if err := user.SetPassword(next, s.cost); err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SaveCredentials(ctx, user); err != nil {
		return nil, "", fmt.Errorf("save password: %w", err)
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ForgotPassword stores a fresh reset token for email and mails the link built by resetURL.
// A later call replaces any earlier token.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	if email == "" {
		return apperror.BadRequest("Please provide an email")
	}
	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	if user == nil {
		return apperror.NotFound("There is no user with that email")
	}

	token, err := user.NewResetToken(s.now())
	if err != nil {
		return fmt.Errorf("reset token: %w", err)
	}
	if err := s.users.SaveCredentials(ctx, user); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}

	msg := Message{
		To:      user.Email,
		Subject: "Password reset token",
		Body: "You are receiving this email because you (or someone else) has requested the reset of a password. " +
			"Please make a PUT request to: \n\n" + resetURL(token),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.log.Error("reset email failed", "user", user.ID.Hex(), "err", err)
		user.ClearResetToken()
		if clearErr := s.users.SaveCredentials(ctx, user); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		return apperror.ServerError("Email could not be sent", err)
	}
	return nil
}

// ResetPassword consumes a reset token. Tokens are single use.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (*models.User, string, error) {
	user, err := s.users.UserByResetToken(ctx, models.HashResetToken(token), s.now())
	if err != nil {
		return nil, "", fmt.Errorf("lookup reset token: %w", err)
	}
	if user == nil {
		return nil, "", apperror.BadRequest("Invalid Token")
	}
	if len(password) < MinPasswordLength {
		return nil, "", apperror.BadRequest(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if err := user.SetPassword(password, s.cost); err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	user.ClearResetToken()
	if err := s.users.SaveCredentials(ctx, user); err != nil {
		return nil, "", fmt.Errorf("save password: %w", err)
	}
	signed, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, signed, nil
}

// CanModify allows the owner of a resource and administrators.
func CanModify(user *models.User, owner primitive.ObjectID) error {
	if user == nil {
		return apperror.Unauthorized("Not authorized to access this route")
	}
	if user.Role == models.RoleAdmin || user.ID == owner {
		return nil
	}
	return apperror.Forbidden(fmt.Sprintf("User %s is not authorized to modify this resource", user.ID.Hex()))
}
