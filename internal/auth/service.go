package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"qrattendance/internal/actor"
	"qrattendance/internal/apperr"
)

const minPasswordLen = 8

var (
	errInvalidCredentials = apperr.Unauthorized("invalid matricule or password")
	errInvalidToken       = apperr.Unauthorized("invalid or expired token")
	errRevokedToken       = apperr.Unauthorized("token has been revoked")
	errInactiveUser       = apperr.Unauthorized("account is disabled or no longer exists")
)

// Options configures token issuance.
type Options struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

// Service registers users, issues access tokens and resolves request identities.
type Service struct {
	repo      Repository
	denylist  Denylist
	opts      Options
	logger    *zap.Logger
	// compared against on unknown matricules so every login pays one bcrypt check
	dummyHash string
}

func NewService(repo Repository, denylist Denylist, logger *zap.Logger, opts Options) *Service {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	dummy, err := HashPassword("qrattendance-unknown-user", opts.HashCost)
	if err != nil {
		logger.Warn("dummy password hash", zap.Error(err))
	}
	return &Service{repo: repo, denylist: denylist, opts: opts, logger: logger, dummyHash: dummy}
}

// RegisterInput is the body of a registration request. Only teachers and
// students can register; admins are provisioned at startup.
type RegisterInput struct {
	Matricule  string     `json:"matricule" binding:"required,max=64"`
	Email      string     `json:"email" binding:"required,email,max=254"`
	Password   string     `json:"password" binding:"required,min=8,max=72"`
	FirstName  string     `json:"firstName" binding:"required,max=100"`
	LastName   string     `json:"lastName" binding:"required,max=100"`
	Role       actor.Role `json:"role" binding:"required,oneof=teacher student"`
	Department string     `json:"department" binding:"max=200"`
	Level      string     `json:"level" binding:"max=50"`
	Program    string     `json:"program" binding:"max=200"`
}

func (in RegisterInput) normalize() RegisterInput {
	in.Matricule = strings.TrimSpace(in.Matricule)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Department = strings.TrimSpace(in.Department)
	in.Level = strings.TrimSpace(in.Level)
	in.Program = strings.TrimSpace(in.Program)
	return in
}

func (in RegisterInput) validate() error {
	var fields []apperr.FieldError
	for _, f := range []struct{ name, value string }{
		{"matricule", in.Matricule},
		{"email", in.Email},
		{"firstName", in.FirstName},
		{"lastName", in.LastName},
	} {
		if f.value == "" {
			fields = append(fields, apperr.FieldError{Field: f.name, Message: "this field is required"})
		}
	}
	if len(in.Password) < minPasswordLen {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if in.Role != actor.Teacher && in.Role != actor.Student {
		fields = append(fields, apperr.FieldError{Field: "role", Message: "must be one of teacher student"})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid registration", fields...)
	}
	return nil
}

// Register creates a user with its role profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Profile, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return Profile{}, err
	}
	hash, err := HashPassword(in.Password, s.opts.HashCost)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		User: User{
			ID:           uuid.NewString(),
			Matricule:    in.Matricule,
			Email:        in.Email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			PasswordHash: hash,
			Role:         in.Role,
			Active:       true,
		},
	}
	switch in.Role {
	case actor.Teacher:
		p.TeacherID = uuid.NewString()
		p.Department = in.Department
	case actor.Student:
		p.StudentID = uuid.NewString()
		p.Level = in.Level
		p.Program = in.Program
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return Profile{}, err
	}

	s.logger.Info("user registered", zap.String("user_id", p.ID), zap.String("role", string(p.Role)))
	return p, nil
}

// EnsureAdmin creates the admin account unless the matricule already exists.
func (s *Service) EnsureAdmin(ctx context.Context, matricule, email, password string) error {
	_, err := s.repo.FindByMatricule(ctx, matricule)
	if err == nil {
		return nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	hash, err := HashPassword(password, s.opts.HashCost)
	if err != nil {
		return err
	}
	p := Profile{User: User{
		ID:           uuid.NewString(),
		Matricule:    matricule,
		Email:        strings.ToLower(email),
		FirstName:    "Admin",
		LastName:     "Admin",
		PasswordHash: hash,
		Role:         actor.Admin,
		Active:       true,
	}}
	if err := s.repo.Create(ctx, &p); err != nil {
		return err
	}
	s.logger.Info("admin account created", zap.String("user_id", p.ID), zap.String("matricule", matricule))
	return nil
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Matricule string `json:"matricule" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// LoginResult is a fresh access token and the profile it was issued for.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   Profile   `json:"user"`
}

// Login checks credentials and issues an access token. Unknown matricules,
// wrong passwords and disabled accounts fail identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	p, err := s.repo.FindByMatricule(ctx, strings.TrimSpace(in.Matricule))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			_, _ = CheckPassword(s.dummyHash, in.Password)
			return LoginResult{}, errInvalidCredentials
		}
		return LoginResult{}, err
	}
	ok, err := CheckPassword(p.PasswordHash, in.Password)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok || !p.Active {
		s.logger.Debug("login rejected", zap.String("user_id", p.ID))
		return LoginResult{}, errInvalidCredentials
	}

	tok, err := Issue(p.ID, p.Role, s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL, time.Now())
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("user logged in", zap.String("user_id", p.ID))
	return LoginResult{Token: tok.Value, ExpiresAt: tok.ExpiresAt, Profile: p}, nil
}

// Authenticate validates a bearer token and rejects logged-out tokens. A
// denylist failure is returned as is so the caller fails closed.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	claims, err := Parse(token, s.opts.SigningKey, s.opts.Issuer)
	if err != nil {
		return Claims{}, errInvalidToken
	}
	revoked, err := s.denylist.Revoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, errRevokedToken
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.Subject))
	return nil
}

// Profile returns the user with its role profile.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// Resolve loads the acting identity for verified claims.
func (s *Service) Resolve(ctx context.Context, claims Claims) (actor.Actor, error) {
	p, err := s.repo.GetProfile(ctx, claims.Subject)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return actor.Actor{}, errInactiveUser
		}
		return actor.Actor{}, err
	}
	if !p.Active {
		return actor.Actor{}, errInactiveUser
	}
	return p.Actor(), nil
}
