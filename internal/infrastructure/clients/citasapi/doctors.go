package citasapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// ListDoctors returns the doctor list, filtered by the backend when specialty is set
func (c *HTTPClient) ListDoctors(ctx context.Context, specialty string) ([]entities.Doctor, error) {
	query := url.Values{}
	query.Set("especialidad", specialty)

	env, err := c.doJSON(ctx, http.MethodGet, "/medicos", c.endpoint("/medicos", query), nil)
	if err != nil {
		return nil, err
	}
	var dtos []doctorDTO
	if err := decode(env, &dtos); err != nil {
		return nil, err
	}
	doctors := make([]entities.Doctor, 0, len(dtos))
	for _, dto := range dtos {
		doctors = append(doctors, dto.toEntity())
	}
	return doctors, nil
}

// GetDoctor returns one doctor
func (c *HTTPClient) GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error) {
	path := fmt.Sprintf("/medicos/%d", id)
	env, err := c.doJSON(ctx, http.MethodGet, "/medicos/{id}", c.endpoint(path, nil), nil)
	if err != nil {
		return nil, err
	}
	return decodeDoctor(env)
}

// UpdateDoctor edits the doctor's profile and returns it as stored
func (c *HTTPClient) UpdateDoctor(ctx context.Context, id int64, update entities.DoctorProfileUpdate) (*entities.Doctor, error) {
	path := fmt.Sprintf("/medicos/%d", id)
	env, err := c.doJSON(ctx, http.MethodPut, "/medicos/{id}", c.endpoint(path, nil), update)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return c.GetDoctor(ctx, id)
	}
	return decodeDoctor(env)
}

func decodeDoctor(env *Envelope) (*entities.Doctor, error) {
	var wrapped struct {
		Medico *doctorDTO `json:"medico"`
	}
	if err := json.Unmarshal(env.Data, &wrapped); err == nil && wrapped.Medico != nil {
		doc := wrapped.Medico.toEntity()
		return &doc, nil
	}
	var dto doctorDTO
	if err := decode(env, &dto); err != nil {
		return nil, err
	}
	if dto.ID == 0 {
		return nil, apperrors.NewInternalError("doctor missing from response", nil)
	}
	doc := dto.toEntity()
	return &doc, nil
}
