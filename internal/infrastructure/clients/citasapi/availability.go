package citasapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

type rangeBody struct {
	Start string `json:"fechaInicio"`
	End   string `json:"fechaFin"`
}

// DayAvailability returns the backend's slots for doctorID on date, unmodified
func (c *HTTPClient) DayAvailability(ctx context.Context, doctorID int64, date string) (*entities.DayAvailability, error) {
	path := fmt.Sprintf("/citas/medico/%d/disponibilidad", doctorID)
	query := url.Values{}
	query.Set("fecha", date)

	env, err := c.doJSON(ctx, http.MethodGet, "/citas/medico/{id}/disponibilidad", c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	var dto availabilityDTO
	if err := decode(env, &dto); err != nil {
		return nil, err
	}

	day := &entities.DayAvailability{
		DoctorID:  doctorID,
		Date:      date,
		Available: dto.Disponible,
		Reason:    dto.Razon,
		Slots:     dto.Horarios,
	}
	if !day.Available {
		day.Slots = nil
	} else if day.Slots == nil {
		day.Slots = []entities.TimeSlot{}
	}
	return day, nil
}

// BlockDay marks one date unavailable
func (c *HTTPClient) BlockDay(ctx context.Context, doctorID int64, date string) error {
	path := fmt.Sprintf("/medicos/%d/disponibilidad", doctorID)
	body := map[string]string{"fecha": date}
	_, err := c.doJSON(ctx, http.MethodPost, "/medicos/{id}/disponibilidad", c.endpoint(path, nil), body)
	return err
}

// BlockRange marks every date from start to end inclusive unavailable
func (c *HTTPClient) BlockRange(ctx context.Context, doctorID int64, start, end string) error {
	path := fmt.Sprintf("/medicos/%d/disponibilidad-rango", doctorID)
	_, err := c.doJSON(ctx, http.MethodPost, "/medicos/{id}/disponibilidad-rango", c.endpoint(path, nil), rangeBody{start, end})
	return err
}

// UnblockDay removes one blocked-day record
func (c *HTTPClient) UnblockDay(ctx context.Context, intervalID int64) error {
	path := fmt.Sprintf("/medicos/disponibilidad/%d", intervalID)
	_, err := c.doJSON(ctx, http.MethodDelete, "/medicos/disponibilidad/{id}", c.endpoint(path, nil), nil)
	return err
}

// UnblockRange removes every blocked day from start to end inclusive
func (c *HTTPClient) UnblockRange(ctx context.Context, doctorID int64, start, end string) error {
	path := fmt.Sprintf("/medicos/%d/disponibilidad-rango", doctorID)
	_, err := c.doJSON(ctx, http.MethodDelete, "/medicos/{id}/disponibilidad-rango", c.endpoint(path, nil), rangeBody{start, end})
	return err
}

// ListBlocked returns the doctor's blocked days, optionally bounded
func (c *HTTPClient) ListBlocked(ctx context.Context, doctorID int64, from, to string) ([]entities.BlockedInterval, error) {
	path := fmt.Sprintf("/medicos/%d/disponibilidades", doctorID)
	query := url.Values{}
	query.Set("fechaInicio", from)
	query.Set("fechaFin", to)

	env, err := c.doJSON(ctx, http.MethodGet, "/medicos/{id}/disponibilidades", c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return []entities.BlockedInterval{}, nil
	}
	var dtos []blockedDTO
	if err := decode(env, &dtos); err != nil {
		return nil, err
	}
	out := make([]entities.BlockedInterval, 0, len(dtos))
	for _, dto := range dtos {
		if interval, ok := dto.toEntity(); ok {
			if interval.DoctorID == 0 {
				interval.DoctorID = doctorID
			}
			out = append(out, interval)
		}
	}
	return out, nil
}

// MonthCalendar returns the calendar computed by the backend
func (c *HTTPClient) MonthCalendar(ctx context.Context, doctorID int64, year int, month time.Month) (*entities.MonthCalendar, error) {
	path := fmt.Sprintf("/medicos/%d/calendario", doctorID)
	query := url.Values{}
	query.Set("mes", strconv.Itoa(int(month)))
	query.Set("ano", strconv.Itoa(year))

	env, err := c.doJSON(ctx, http.MethodGet, "/medicos/{id}/calendario", c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	var dto calendarDTO
	if err := decode(env, &dto); err != nil {
		return nil, err
	}
	cal, err := dto.toEntity(doctorID)
	if err != nil {
		return nil, apperrors.NewInternalError("malformed calendar in response", err)
	}
	return &cal, nil
}
