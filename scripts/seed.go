package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/medibook/internal/adapters/backend"
	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/infrastructure/clients/citasapi"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	"github.com/zatekoja/medibook/pkg/config"
)

// seed rebuilds the mock backend state file with demo appointments and
// blocked days, so `MEDIBOOK_BACKEND=mock medibook ...` has something to show.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("medibook-seed", cfg.Log.Env, "info")

	path := cfg.Backend.StatePath
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to remove old mock state")
	}

	var token string
	mock, err := backend.NewMockBackend(
		backend.WithStatePath(path),
		backend.WithMockTokenSource(citasapi.TokenFunc(func() string { return token })),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create mock backend")
	}

	ctx := context.Background()
	login := func(email string) {
		session, err := mock.Login(ctx, entities.Credentials{Email: email, Password: backend.DemoPassword})
		if err != nil {
			log.Fatal().Err(err).Str("email", email).Msg("Failed to log in")
		}
		token = session.Token
	}
	day := func(offset int) string {
		return time.Now().AddDate(0, 0, offset).Format(entities.DateLayout)
	}

	login(backend.DemoPatientEmail)
	bookings := []entities.BookingRequest{
		{DoctorID: 1, Date: day(2), Slot: entities.TimeSlot{Start: "09:00", End: "09:30"}, Reason: "Chest pain on exertion"},
		{DoctorID: 1, Date: day(9), Slot: entities.TimeSlot{Start: "11:30", End: "12:00"}, Reason: "Follow-up ECG"},
		{DoctorID: 3, Date: day(4), Slot: entities.TimeSlot{Start: "10:00", End: "10:30"}, Reason: "Skin rash"},
		{DoctorID: 2, Date: day(6), Slot: entities.TimeSlot{Start: "12:30", End: "13:00"}, Reason: "Vaccination check"},
	}
	var booked []*entities.Appointment
	for _, req := range bookings {
		appt, err := mock.CreateAppointment(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Int64("doctor_id", req.DoctorID).Str("date", req.Date).Msg("Failed to book appointment")
		}
		booked = append(booked, appt)
	}
	if _, err := mock.CancelAppointment(ctx, booked[3].ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to cancel appointment")
	}

	login(backend.DemoDoctorEmail)
	if _, err := mock.SetStatus(ctx, booked[0].ID, entities.AppointmentStatusConfirmed); err != nil {
		log.Fatal().Err(err).Msg("Failed to confirm appointment")
	}
	if err := mock.BlockDay(ctx, 1, day(5)); err != nil {
		log.Fatal().Err(err).Msg("Failed to block day")
	}
	if err := mock.BlockRange(ctx, 1, day(14), day(18)); err != nil {
		log.Fatal().Err(err).Msg("Failed to block range")
	}

	log.Info().
		Str("path", path).
		Int("appointments", len(booked)).
		Str("patient", backend.DemoPatientEmail).
		Str("doctor", backend.DemoDoctorEmail).
		Msg("Mock state seeded")
}
