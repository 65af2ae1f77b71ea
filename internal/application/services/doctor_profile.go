package services

import (
	"context"
	"strings"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// DoctorProfileService reads and edits the logged-in doctor's public profile
type DoctorProfileService struct {
	api     providers.DoctorAPI
	session *SessionService
}

// NewDoctorProfileService creates a new doctor profile service
func NewDoctorProfileService(api providers.DoctorAPI, session *SessionService) *DoctorProfileService {
	return &DoctorProfileService{api: api, session: session}
}

// Get returns the doctor's own profile
func (s *DoctorProfileService) Get(ctx context.Context) (*entities.Doctor, error) {
	id, err := s.session.RequireDoctor()
	if err != nil {
		return nil, err
	}
	return s.api.GetDoctor(ctx, id.DoctorID)
}

// Update applies the non-nil fields of update and mirrors the new name and
// specialty into the session
func (s *DoctorProfileService) Update(ctx context.Context, update entities.DoctorProfileUpdate) (*entities.Doctor, error) {
	id, err := s.session.RequireDoctor()
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, apperrors.NewValidationError("nothing to update")
	}
	if update.FirstName != nil && strings.TrimSpace(*update.FirstName) == "" {
		return nil, apperrors.NewValidationError("the name cannot be empty")
	}
	if update.Specialty != nil && strings.TrimSpace(*update.Specialty) == "" {
		return nil, apperrors.NewValidationError("the specialty cannot be empty")
	}
	if update.Email != nil {
		if err := validateEmail(*update.Email); err != nil {
			return nil, err
		}
	}

	doctor, err := s.api.UpdateDoctor(ctx, id.DoctorID, update)
	if err != nil {
		return nil, err
	}

	if err := s.session.UpdateIdentity(ctx, func(i *entities.Identity) {
		i.FirstName = doctor.FirstName
		i.LastName = doctor.LastName
		i.Specialty = doctor.Specialty
		if doctor.Phone != "" {
			i.Phone = doctor.Phone
		}
	}); err != nil {
		return nil, err
	}
	return doctor, nil
}
