package citasapi

import (
	"context"
	"net/http"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// Login exchanges credentials for a session
func (c *HTTPClient) Login(ctx context.Context, creds entities.Credentials) (*entities.Session, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// RegisterPatient creates a patient account
func (c *HTTPClient) RegisterPatient(ctx context.Context, reg entities.PatientRegistration) (*entities.Session, error) {
	return c.authenticate(ctx, "/auth/register", reg)
}

// RegisterDoctor creates a doctor account
func (c *HTTPClient) RegisterDoctor(ctx context.Context, reg entities.DoctorRegistration) (*entities.Session, error) {
	return c.authenticate(ctx, "/auth/register-medico", reg)
}

// Me returns the identity bound to the current token
func (c *HTTPClient) Me(ctx context.Context) (*entities.Identity, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/auth/me", c.endpoint("/auth/me", nil), nil)
	if err != nil {
		return nil, err
	}
	id, err := decodeIdentity(env.Data)
	if err != nil {
		return nil, apperrors.NewInternalError("malformed user in response", err)
	}
	return id, nil
}

func (c *HTTPClient) authenticate(ctx context.Context, path string, payload interface{}) (*entities.Session, error) {
	env, err := c.doJSON(ctx, http.MethodPost, path, c.endpoint(path, nil), payload)
	if err != nil {
		return nil, err
	}
	session, err := decodeSession(env.Data)
	if err != nil {
		return nil, apperrors.NewInternalError("malformed session in response", err)
	}
	return session, nil
}
