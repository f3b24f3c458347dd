package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/carewellhq/carewell-backend/internal/users"
	"github.com/carewellhq/carewell-backend/pkg/config"
	"github.com/carewellhq/carewell-backend/pkg/db"
	"github.com/carewellhq/carewell-backend/pkg/db/models"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
	"github.com/carewellhq/carewell-backend/pkg/security"
)

// RegisterService handles the patient self-registration transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	RegisterStaff(ctx context.Context, req StaffRegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flows.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates a patient account together with its medical profile.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email, firstName, lastName, err := normalizeIdentity(req.Email, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	if req.BloodGroup != nil && !req.BloodGroup.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid blood group")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *users.UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if err := ensureEmailFree(ctx, userRepo, email); err != nil {
			return err
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    firstName,
			LastName:     lastName,
			Phone:        req.Phone,
			Role:         enums.UserRolePatient,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		profile := &models.Patient{
			ID:          uuid.New(),
			UserID:      user.ID,
			DateOfBirth: req.DateOfBirth,
			Gender:      req.Gender,
			BloodGroup:  req.BloodGroup,
			Address:     req.Address,
		}
		if err := tx.WithContext(ctx).Create(profile).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create patient profile")
		}

		created = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RegisterStaff provisions a doctor, receptionist, or admin account. Exposed
// behind an admin-only route.
func (s *registerService) RegisterStaff(ctx context.Context, req StaffRegisterRequest) (*users.UserDTO, error) {
	email, firstName, lastName, err := normalizeIdentity(req.Email, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	if !req.Role.IsValid() || req.Role == enums.UserRolePatient {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid staff role")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *users.UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if err := ensureEmailFree(ctx, userRepo, email); err != nil {
			return err
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    firstName,
			LastName:     lastName,
			Phone:        req.Phone,
			Role:         req.Role,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		created = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func normalizeIdentity(email, firstName, lastName string) (string, string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "first_name is required")
	}
	lastName = strings.TrimSpace(lastName)
	if lastName == "" {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "last_name is required")
	}
	return email, firstName, lastName, nil
}

func ensureEmailFree(ctx context.Context, repo *users.Repository, email string) error {
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}
	return nil
}
