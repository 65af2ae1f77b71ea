package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/medibook/internal/application/services"
	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

var allDoctors = []entities.Doctor{
	{ID: 1, FirstName: "Ana", Specialty: "Cardiología"},
	{ID: 2, FirstName: "Luis", Specialty: "Pediatría"},
	{ID: 3, FirstName: "Marta", Specialty: "Dermatología"},
	{ID: 4, FirstName: "Pablo", Specialty: "Cardiología"},
}

func TestDoctorDirectory_LoadDerivesSpecialties(t *testing.T) {
	api := new(MockBackend)
	api.On("ListDoctors", mock.Anything, "").Return(allDoctors, nil)

	dir := services.NewDoctorDirectory(api, nil)
	require.NoError(t, dir.Load(context.Background()))

	assert.Len(t, dir.Doctors(), 4)
	assert.Equal(t, []string{"Cardiología", "Dermatología", "Pediatría"}, dir.Specialties())
	assert.False(t, dir.Loading())
	assert.NoError(t, dir.Err())
}

func TestDoctorDirectory_FilterKeepsFullSpecialtyList(t *testing.T) {
	api := new(MockBackend)
	api.On("ListDoctors", mock.Anything, "").Return(allDoctors, nil)
	api.On("ListDoctors", mock.Anything, "Cardiología").Return([]entities.Doctor{allDoctors[0], allDoctors[3]}, nil)

	dir := services.NewDoctorDirectory(api, nil)
	require.NoError(t, dir.Load(context.Background()))
	require.NoError(t, dir.SetSpecialty(context.Background(), " Cardiología "))

	assert.Equal(t, "Cardiología", dir.Specialty())
	assert.Len(t, dir.Doctors(), 2)
	assert.Len(t, dir.Specialties(), 3, "a filtered result never narrows the specialty choices")

	require.NoError(t, dir.SetSpecialty(context.Background(), ""))
	assert.Len(t, dir.Doctors(), 4)
}

func TestDoctorDirectory_LoadWithFilterFetchesBoth(t *testing.T) {
	api := new(MockBackend)
	api.On("ListDoctors", mock.Anything, "").Return(allDoctors, nil)
	api.On("ListDoctors", mock.Anything, "Pediatría").Return([]entities.Doctor{allDoctors[1]}, nil)

	dir := services.NewDoctorDirectory(api, nil)
	require.NoError(t, dir.SetSpecialty(context.Background(), "Pediatría"))
	require.NoError(t, dir.Load(context.Background()))

	assert.Len(t, dir.Doctors(), 1)
	assert.Len(t, dir.Specialties(), 3)
}

func TestDoctorDirectory_FailureClearsList(t *testing.T) {
	api := new(MockBackend)
	api.On("ListDoctors", mock.Anything, "").Return(allDoctors, nil).Once()
	api.On("ListDoctors", mock.Anything, "Pediatría").Return(nil, apperrors.NewNetworkError("down", errors.New("timeout")))

	dir := services.NewDoctorDirectory(api, nil)
	require.NoError(t, dir.Load(context.Background()))

	err := dir.SetSpecialty(context.Background(), "Pediatría")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNetwork))
	assert.Empty(t, dir.Doctors())
	assert.Equal(t, err, dir.Err())
}

func TestDoctorDirectory_LatestFilterWins(t *testing.T) {
	api := new(MockBackend)
	started := make(chan struct{})
	release := make(chan struct{})
	api.On("ListDoctors", mock.Anything, "Pediatría").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]entities.Doctor{allDoctors[1]}, nil)
	api.On("ListDoctors", mock.Anything, "Dermatología").Return([]entities.Doctor{allDoctors[2]}, nil)

	dir := services.NewDoctorDirectory(api, nil)
	slow := make(chan error, 1)
	go func() { slow <- dir.SetSpecialty(context.Background(), "Pediatría") }()
	<-started

	require.NoError(t, dir.SetSpecialty(context.Background(), "Dermatología"))
	close(release)
	assert.ErrorIs(t, <-slow, services.ErrSuperseded)

	doctors := dir.Doctors()
	require.Len(t, doctors, 1)
	assert.Equal(t, int64(3), doctors[0].ID)
	assert.Equal(t, "Dermatología", dir.Specialty())
}

func TestDoctorDirectory_Get(t *testing.T) {
	api := new(MockBackend)
	api.On("GetDoctor", mock.Anything, int64(2)).Return(&allDoctors[1], nil)

	doctor, err := services.NewDoctorDirectory(api, nil).Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Luis", doctor.FirstName)
}
