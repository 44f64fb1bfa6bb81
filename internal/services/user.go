package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/internal/observability/metrics"
	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdateRole(ctx context.Context, id int, from, to types.Role) error
	SetActive(ctx context.Context, email string, active bool) error
	Touch(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
	Stats(ctx context.Context, user types.User) (types.UserStats, error)
}

// UserService encapsulates account and profile use-cases.
type UserService struct {
	repo      UserRepository
	codec     *auth.TokenCodec
	passwords auth.PasswordVerifier
	logger    *slog.Logger
}

func NewUserService(repo UserRepository, codec *auth.TokenCodec, passwords auth.PasswordVerifier, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{repo: repo, codec: codec, passwords: passwords, logger: logger}
}

// Registration is the sign-up form.
type Registration struct {
	FullName string `json:"full_name"`
	Age      *int   `json:"age,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(2, 100), validation.Match(personNamePattern)),
		validation.Field(&r.Age, validation.Min(18), validation.Max(120)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 128)),
		validation.Field(&r.Phone, validation.Length(10, 15), is.Digit),
		validation.Field(&r.Address, validation.Length(10, 500)),
	)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Register creates an account and signs the caller in. The role defaults
// to Adopter.
func (s *UserService) Register(ctx context.Context, reg Registration) (AuthResult, error) {
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.Phone = strings.TrimSpace(reg.Phone)
	reg.Address = strings.TrimSpace(reg.Address)
	if err := asValidation(reg.Validate()); err != nil {
		return AuthResult{}, err
	}

	role := types.RoleAdopter
	if strings.TrimSpace(reg.Role) != "" {
		parsed, ok := types.ParseRole(reg.Role)
		if !ok {
			return AuthResult{}, errs.Validation("role: must be Adopter or Owner")
		}
		role = parsed
	}

	hashed, err := auth.HashPassword(reg.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		FullName:     reg.FullName,
		Email:        reg.Email,
		PasswordHash: hashed,
		Role:         role,
		IsActive:     true,
		Phone:        reg.Phone,
		Address:      reg.Address,
		Age:          reg.Age,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, err
	}

	token, err := s.codec.Issue(user.ID, user.Email)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and issues a token. Legacy plain-text
// passwords are replaced by a hash after the first successful login.
func (s *UserService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	result, err := s.login(ctx, email, password)
	outcome := "success"
	if err != nil {
		outcome = errs.CodeOf(err)
	}
	metrics.AuthLoginsTotal.WithLabelValues(outcome).Inc()
	return result, err
}

func (s *UserService) login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, errs.Validation("email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, auth.ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !user.IsActive {
		return AuthResult{}, auth.ErrAccountDeactivated
	}

	match, err := s.passwords.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return AuthResult{}, err
	}
	if !match.OK {
		return AuthResult{}, auth.ErrInvalidCredentials
	}

	if match.NeedsRehash {
		if hashed, err := auth.HashPassword(password); err == nil {
			rehashed := user
			rehashed.PasswordHash = hashed
			if updated, err := s.repo.Update(ctx, rehashed); err != nil {
				s.logger.Warn("rehash legacy password failed", "user_id", user.ID, "error", err)
			} else {
				user = updated
				s.logger.Info("legacy password rehashed", "user_id", user.ID)
			}
		}
	}
	if err := s.repo.Touch(ctx, user.ID); err != nil {
		s.logger.Warn("record login failed", "user_id", user.ID, "error", err)
	}

	token, err := s.codec.Issue(user.ID, user.Email)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: user}, nil
}

// EmailExists reports whether an account uses email.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return false, asValidation(err)
	}
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdatePassword replaces the password after checking the current one.
func (s *UserService) UpdatePassword(ctx context.Context, id int, current, next string) error {
	if current == "" || next == "" {
		return errs.Validation("current and new password are required")
	}
	if err := validation.Validate(next, validation.Length(minPasswordLength, 128)); err != nil {
		return errs.Validation("new password: " + err.Error())
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	match, err := s.passwords.VerifyPassword(user.PasswordHash, current)
	if err != nil {
		return err
	}
	if !match.OK {
		return ErrWrongPassword
	}

	hashed, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	_, err = s.repo.Update(ctx, user)
	return err
}

type profileFields struct {
	FullName string
	Age      *int
	Phone    string
	Address  string
}

func (p profileFields) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Length(2, 100), validation.Match(personNamePattern)),
		validation.Field(&p.Age, validation.Min(18), validation.Max(120)),
		validation.Field(&p.Phone, validation.Length(10, 15), is.Digit),
		validation.Field(&p.Address, validation.Length(10, 500)),
	)
}

// UpdateProfile applies the set fields of update to the user's profile.
func (s *UserService) UpdateProfile(ctx context.Context, id int, update types.ProfileUpdate) (types.User, error) {
	if update.Empty() {
		return types.User{}, ErrEmptyProfile
	}
	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		if name == "" {
			return types.User{}, errs.Validation("full_name: cannot be blank")
		}
		update.FullName = &name
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	user = update.Apply(user)

	fields := profileFields{FullName: user.FullName, Age: update.Age, Phone: user.Phone, Address: user.Address}
	if err := asValidation(fields.Validate()); err != nil {
		return types.User{}, err
	}

	updated, err := s.repo.Update(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return updated, err
}

func (s *UserService) VerifyEmail(ctx context.Context, id int) (types.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if user.EmailVerified {
		return user, nil
	}
	user.EmailVerified = true
	return s.repo.Update(ctx, user)
}

// ChangeRole switches the user between Adopter and Owner. Tokens issued
// earlier pick up the new role on their next use.
func (s *UserService) ChangeRole(ctx context.Context, id int, rawRole string) (types.User, error) {
	role, ok := types.ParseRole(rawRole)
	if !ok {
		return types.User{}, errs.Validation("new_role: must be Adopter or Owner")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if user.Role == role {
		return types.User{}, ErrSameRole
	}

	if err := s.repo.UpdateRole(ctx, id, user.Role, role); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.User{}, ErrRoleChanged
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}

	s.logger.Info("user role changed", "user_id", id, "from", user.Role, "to", role)
	return s.Get(ctx, id)
}

func (s *UserService) Stats(ctx context.Context, id int) (types.UserStats, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return types.UserStats{}, err
	}
	return s.repo.Stats(ctx, user)
}

// Delete removes the account together with its pets and requests.
func (s *UserService) Delete(ctx context.Context, id int) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// SetActive activates or deactivates the account registered under email.
func (s *UserService) SetActive(ctx context.Context, email string, active bool) error {
	err := s.repo.SetActive(ctx, email, active)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
