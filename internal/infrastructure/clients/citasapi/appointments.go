package citasapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

type createAppointmentBody struct {
	DoctorID int64  `json:"medico_id"`
	Date     string `json:"fecha"`
	Start    string `json:"hora_inicio"`
	End      string `json:"hora_fin"`
	Reason   string `json:"motivo"`
}

// CreateAppointment books the slot and returns the pending appointment
func (c *HTTPClient) CreateAppointment(ctx context.Context, req entities.BookingRequest) (*entities.Appointment, error) {
	body := createAppointmentBody{
		DoctorID: req.DoctorID,
		Date:     req.Date,
		Start:    req.Slot.Start,
		End:      req.Slot.End,
		Reason:   req.Reason,
	}
	env, err := c.doJSON(ctx, http.MethodPost, "/citas", c.endpoint("/citas", nil), body)
	if err != nil {
		return nil, err
	}
	return decodeAppointmentEnvelope(env)
}

// GetAppointment fetches one appointment
func (c *HTTPClient) GetAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	path := fmt.Sprintf("/citas/%d", id)
	env, err := c.doJSON(ctx, http.MethodGet, "/citas/{id}", c.endpoint(path, nil), nil)
	if err != nil {
		return nil, err
	}
	return decodeAppointmentEnvelope(env)
}

// CancelAppointment cancels the appointment
func (c *HTTPClient) CancelAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	path := fmt.Sprintf("/citas/%d/cancelar", id)
	env, err := c.doJSON(ctx, http.MethodPut, "/citas/{id}/cancelar", c.endpoint(path, nil), nil)
	if err != nil {
		return nil, err
	}
	return c.appointmentOrRefetch(ctx, env, id)
}

// UpdateReason edits the reason of a pending appointment
func (c *HTTPClient) UpdateReason(ctx context.Context, id int64, reason string) (*entities.Appointment, error) {
	path := fmt.Sprintf("/pacientes/citas/%d", id)
	body := map[string]string{"motivo": reason}
	env, err := c.doJSON(ctx, http.MethodPut, "/pacientes/citas/{id}", c.endpoint(path, nil), body)
	if err != nil {
		return nil, err
	}
	return c.appointmentOrRefetch(ctx, env, id)
}

// SetStatus moves the appointment to status on behalf of the doctor
func (c *HTTPClient) SetStatus(ctx context.Context, id int64, status entities.AppointmentStatus) (*entities.Appointment, error) {
	path := fmt.Sprintf("/medicos/cita/%d", id)
	body := map[string]string{"estado": status.Wire()}
	env, err := c.doJSON(ctx, http.MethodPut, "/medicos/cita/{id}", c.endpoint(path, nil), body)
	if err != nil {
		return nil, err
	}
	return c.appointmentOrRefetch(ctx, env, id)
}

// ListPatientAppointments returns the patient's appointments
func (c *HTTPClient) ListPatientAppointments(ctx context.Context, patientID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	path := fmt.Sprintf("/pacientes/%d/citas", patientID)
	query := url.Values{}
	query.Set("estado", filter.Status.Wire())
	query.Set("desde", filter.From)
	query.Set("hasta", filter.To)

	env, err := c.doJSON(ctx, http.MethodGet, "/pacientes/{id}/citas", c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	return decodeAppointmentList(env)
}

// ListDoctorAppointments returns the doctor's agenda
func (c *HTTPClient) ListDoctorAppointments(ctx context.Context, doctorID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	path := fmt.Sprintf("/medicos/%d/citas", doctorID)
	query := url.Values{}
	query.Set("estado", filter.Status.Wire())

	env, err := c.doJSON(ctx, http.MethodGet, "/medicos/{id}/citas", c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	return decodeAppointmentList(env)
}

// appointmentOrRefetch decodes the mutated appointment, fetching it when the
// backend answered with a bare acknowledgement
func (c *HTTPClient) appointmentOrRefetch(ctx context.Context, env *Envelope, id int64) (*entities.Appointment, error) {
	if len(env.Data) > 0 {
		if appt, err := decodeAppointment(env.Data); err == nil && appt.ID != 0 {
			return appt, nil
		}
	}
	return c.GetAppointment(ctx, id)
}

func decodeAppointmentEnvelope(env *Envelope) (*entities.Appointment, error) {
	if len(env.Data) == 0 {
		return nil, apperrors.NewInternalError("appointment missing from response", nil)
	}
	appt, err := decodeAppointment(env.Data)
	if err != nil {
		return nil, apperrors.NewInternalError("malformed appointment in response", err)
	}
	return appt, nil
}

func decodeAppointmentList(env *Envelope) ([]entities.Appointment, error) {
	if len(env.Data) == 0 {
		return []entities.Appointment{}, nil
	}
	list, err := decodeAppointments(env.Data)
	if err != nil {
		return nil, apperrors.NewInternalError("malformed appointment list in response", err)
	}
	return list, nil
}
