package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/medibook/internal/application/services"
	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestDoctorProfileService_UpdateMirrorsIntoSession(t *testing.T) {
	sess, store, _ := loggedIn(t, doctorIdentity)
	api := new(MockBackend)
	svc := services.NewDoctorProfileService(api, sess)

	update := entities.DoctorProfileUpdate{Specialty: strPtr("Cardiología infantil"), Phone: strPtr("555-0101")}
	api.On("UpdateDoctor", mock.Anything, int64(3), update).
		Return(&entities.Doctor{ID: 3, FirstName: "Ana", LastName: "Pérez", Specialty: "Cardiología infantil", Phone: "555-0101"}, nil)

	doctor, err := svc.Update(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, "Cardiología infantil", doctor.Specialty)

	id, ok := sess.Identity()
	require.True(t, ok)
	assert.Equal(t, "Cardiología infantil", id.Specialty)
	assert.Equal(t, "Pérez", id.LastName)
	assert.Equal(t, "555-0101", id.Phone)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cardiología infantil", persisted.Identity.Specialty)
}

func TestDoctorProfileService_UpdateValidation(t *testing.T) {
	sess, _, _ := loggedIn(t, doctorIdentity)
	api := new(MockBackend)
	svc := services.NewDoctorProfileService(api, sess)

	tests := []struct {
		name   string
		update entities.DoctorProfileUpdate
	}{
		{"empty update", entities.DoctorProfileUpdate{}},
		{"blank name", entities.DoctorProfileUpdate{FirstName: strPtr("  ")}},
		{"blank specialty", entities.DoctorProfileUpdate{Specialty: strPtr("")}},
		{"bad email", entities.DoctorProfileUpdate{Email: strPtr("ana.example.com")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tt.update)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		})
	}
	api.AssertNotCalled(t, "UpdateDoctor", mock.Anything, mock.Anything, mock.Anything)
}

func TestDoctorProfileService_PatientsAreForbidden(t *testing.T) {
	sess, _, _ := loggedIn(t, patientIdentity)
	api := new(MockBackend)
	svc := services.NewDoctorProfileService(api, sess)

	_, err := svc.Get(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	_, err = svc.Update(context.Background(), entities.DoctorProfileUpdate{Phone: strPtr("1")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	api.AssertNotCalled(t, "GetDoctor", mock.Anything, mock.Anything)
}

func TestDoctorProfileService_Get(t *testing.T) {
	sess, _, _ := loggedIn(t, doctorIdentity)
	api := new(MockBackend)
	api.On("GetDoctor", mock.Anything, int64(3)).Return(&entities.Doctor{ID: 3, FirstName: "Ana"}, nil)

	doctor, err := services.NewDoctorProfileService(api, sess).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), doctor.ID)
}
