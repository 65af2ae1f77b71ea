package providers

import (
	"context"
	"fmt"

	"github.com/zatekoja/medibook/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelAppointments carries every appointment and availability change
	EventChannelAppointments = "medibook:appointments"

	// EventChannelDoctorPrefix is the prefix for doctor-specific channels
	EventChannelDoctorPrefix = "medibook:doctor:"

	// EventChannelPatientPrefix is the prefix for patient-specific channels
	EventChannelPatientPrefix = "medibook:patient:"
)

// GetDoctorChannel returns the channel name for a specific doctor
func GetDoctorChannel(doctorID int64) string {
	return fmt.Sprintf("%s%d", EventChannelDoctorPrefix, doctorID)
}

// GetPatientChannel returns the channel name for a specific patient
func GetPatientChannel(patientID int64) string {
	return fmt.Sprintf("%s%d", EventChannelPatientPrefix, patientID)
}

// ChannelsFor lists every channel an event should be published on
func ChannelsFor(event *entities.AppointmentEvent) []string {
	channels := []string{EventChannelAppointments}
	if event.DoctorID != 0 {
		channels = append(channels, GetDoctorChannel(event.DoctorID))
	}
	if event.PatientID != 0 {
		channels = append(channels, GetPatientChannel(event.PatientID))
	}
	return channels
}
