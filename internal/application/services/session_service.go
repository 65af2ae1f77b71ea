package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
	"github.com/zatekoja/medibook/pkg/retry"
)

// SessionService owns the single active session. It is the only writer of
// the token and identity; the API client reads the token through Token().
type SessionService struct {
	mu        sync.RWMutex
	session   *entities.Session
	store     providers.SessionStore
	auth      providers.AuthAPI
	navigator providers.Navigator
	bootstrap retry.Config
}

// NewSessionService creates a session service. The auth API is attached with
// BindAuth once the backend, which itself reads tokens from this service, exists.
func NewSessionService(store providers.SessionStore, navigator providers.Navigator, attempts int, delay time.Duration) *SessionService {
	cfg := retry.FixedConfig(attempts, delay)
	cfg.Retryable = func(err error) bool {
		return !apperrors.IsType(err, apperrors.ErrorTypeUnauthorized)
	}
	return &SessionService{
		store:     store,
		navigator: navigator,
		bootstrap: cfg,
	}
}

// BindAuth sets the API used for login, registration and bootstrap
func (s *SessionService) BindAuth(auth providers.AuthAPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

// Token returns the bearer token of the active session, or ""
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

// Current returns a copy of the active session, or nil
func (s *SessionService) Current() *entities.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Identity returns the authenticated identity
func (s *SessionService) Identity() (entities.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return entities.Identity{}, false
	}
	return s.session.Identity, true
}

// RequireIdentity returns the identity or an unauthorized error when logged out
func (s *SessionService) RequireIdentity() (entities.Identity, error) {
	id, ok := s.Identity()
	if !ok {
		return entities.Identity{}, apperrors.NewUnauthorizedError("not logged in")
	}
	return id, nil
}

// RequirePatient returns the identity when it belongs to a patient
func (s *SessionService) RequirePatient() (entities.Identity, error) {
	id, err := s.RequireIdentity()
	if err != nil {
		return id, err
	}
	if !id.IsPatient() || id.PatientID == 0 {
		return id, apperrors.NewForbiddenError("only patients can do this")
	}
	return id, nil
}

// RequireDoctor returns the identity when it belongs to a doctor
func (s *SessionService) RequireDoctor() (entities.Identity, error) {
	id, err := s.RequireIdentity()
	if err != nil {
		return id, err
	}
	if !id.IsDoctor() || id.DoctorID == 0 {
		return id, apperrors.NewForbiddenError("only doctors can do this")
	}
	return id, nil
}

// HomeRoute is where the current role lands after login
func (s *SessionService) HomeRoute() providers.Route {
	id, ok := s.Identity()
	switch {
	case !ok:
		return providers.RouteLogin
	case id.IsDoctor():
		return providers.RouteDoctorAgenda
	default:
		return providers.RoutePatientAppointments
	}
}

func (s *SessionService) authAPI() (providers.AuthAPI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return nil, apperrors.NewInternalError("auth API not configured", nil)
	}
	return s.auth, nil
}

// establish replaces the active session and persists it
func (s *SessionService) establish(ctx context.Context, session *entities.Session) error {
	if !session.Valid() {
		return apperrors.NewInternalError("backend returned a session without token", nil)
	}
	s.mu.Lock()
	cp := *session
	s.session = &cp
	s.mu.Unlock()

	if err := s.store.Save(ctx, session); err != nil {
		return apperrors.NewInternalError("failed to persist session", err)
	}
	return nil
}

// purge drops the session from memory and storage
func (s *SessionService) purge(ctx context.Context) {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to clear stored session")
	}
}

func (s *SessionService) navigate(route providers.Route) {
	if s.navigator != nil {
		s.navigator.Navigate(route)
	}
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.NewValidationError("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return apperrors.NewValidationError(fmt.Sprintf("%q is not a valid email address", email))
	}
	return nil
}

func validateAccount(email, password, firstName string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if len(password) < 6 {
		return apperrors.NewValidationError("the password must have at least 6 characters")
	}
	if strings.TrimSpace(firstName) == "" {
		return apperrors.NewValidationError("the name is required")
	}
	return nil
}

// Login exchanges credentials for a session
func (s *SessionService) Login(ctx context.Context, creds entities.Credentials) (*entities.Identity, error) {
	if err := validateEmail(creds.Email); err != nil {
		return nil, err
	}
	if creds.Password == "" {
		return nil, apperrors.NewValidationError("password is required")
	}
	auth, err := s.authAPI()
	if err != nil {
		return nil, err
	}

	session, err := auth.Login(ctx, entities.Credentials{Email: strings.TrimSpace(creds.Email), Password: creds.Password})
	if err != nil {
		// a 401 here means bad credentials, not an expired session
		if apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) {
			return nil, apperrors.NewRejectedError(http.StatusUnauthorized, "invalid email or password")
		}
		return nil, err
	}
	if err := s.establish(ctx, session); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("user_id", session.Identity.UserID).
		Str("role", session.Identity.Role.String()).
		Msg("Logged in")
	id := session.Identity
	return &id, nil
}

// RegisterPatient signs up a patient and starts their session
func (s *SessionService) RegisterPatient(ctx context.Context, reg entities.PatientRegistration) (*entities.Identity, error) {
	if err := validateAccount(reg.Email, reg.Password, reg.FirstName); err != nil {
		return nil, err
	}
	auth, err := s.authAPI()
	if err != nil {
		return nil, err
	}
	reg.Email = strings.TrimSpace(reg.Email)
	session, err := auth.RegisterPatient(ctx, reg)
	if err != nil {
		return nil, err
	}
	if err := s.establish(ctx, session); err != nil {
		return nil, err
	}
	id := session.Identity
	return &id, nil
}

// RegisterDoctor signs up a doctor and starts their session
func (s *SessionService) RegisterDoctor(ctx context.Context, reg entities.DoctorRegistration) (*entities.Identity, error) {
	if err := validateAccount(reg.Email, reg.Password, reg.FirstName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reg.Specialty) == "" {
		return nil, apperrors.NewValidationError("the specialty is required")
	}
	auth, err := s.authAPI()
	if err != nil {
		return nil, err
	}
	reg.Email = strings.TrimSpace(reg.Email)
	session, err := auth.RegisterDoctor(ctx, reg)
	if err != nil {
		return nil, err
	}
	if err := s.establish(ctx, session); err != nil {
		return nil, err
	}
	id := session.Identity
	return &id, nil
}

// Logout ends the session and sends the user to the login screen
func (s *SessionService) Logout(ctx context.Context) error {
	s.purge(ctx)
	s.navigate(providers.RouteLogin)
	return nil
}

// HandleUnauthorized is the forced-logout path taken on any 401
func (s *SessionService) HandleUnauthorized(ctx context.Context) {
	hadSession := s.Token() != ""
	s.purge(ctx)
	if hadSession {
		observability.LoggerFromContext(ctx).Warn().Msg("Session expired, logging out")
	}
	s.navigate(providers.RouteLogin)
}

// Bootstrap restores the stored session and revalidates it against the
// backend. Network failures are retried with a fixed delay; an unauthorized
// answer, or running out of attempts, discards the stored session. An
// interrupted bootstrap leaves the stored session for the next run.
// It returns nil, nil when no session is stored.
func (s *SessionService) Bootstrap(ctx context.Context) (*entities.Identity, error) {
	stored, err := s.store.Load(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load stored session", err)
	}
	if !stored.Valid() {
		return nil, nil
	}
	auth, err := s.authAPI()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.session = stored
	s.mu.Unlock()

	logger := observability.LoggerFromContext(ctx)
	var me *entities.Identity
	err = retry.DoWithLog(ctx, s.bootstrap, "session bootstrap", func() error {
		var callErr error
		me, callErr = auth.Me(ctx)
		return callErr
	}, func(attempt int, err error, next time.Duration) {
		logger.Debug().Err(err).Int("attempt", attempt).Dur("next_delay", next).Msg("Retrying session bootstrap")
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			s.mu.Lock()
			s.session = nil
			s.mu.Unlock()
			logger.Debug().Err(err).Msg("Session bootstrap interrupted")
			return nil, err
		}
		logger.Warn().Err(err).Msg("Stored session is no longer valid")
		s.purge(ctx)
		return nil, err
	}

	// keep the stored token, refresh what the backend knows about the user
	refreshed := &entities.Session{Token: stored.Token, Identity: mergeIdentity(stored.Identity, *me)}
	if err := s.establish(ctx, refreshed); err != nil {
		return nil, err
	}
	id := refreshed.Identity
	return &id, nil
}

// UpdateIdentity applies fn to the active identity and persists the result
func (s *SessionService) UpdateIdentity(ctx context.Context, fn func(*entities.Identity)) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return apperrors.NewUnauthorizedError("not logged in")
	}
	fn(&s.session.Identity)
	cp := *s.session
	s.mu.Unlock()

	if err := s.store.Save(ctx, &cp); err != nil {
		return apperrors.NewInternalError("failed to persist session", err)
	}
	return nil
}

// mergeIdentity prefers fresh values, keeping stored ones the backend left out
func mergeIdentity(stored, fresh entities.Identity) entities.Identity {
	out := fresh
	if out.UserID == "" {
		out.UserID = stored.UserID
	}
	if out.Email == "" {
		out.Email = stored.Email
	}
	if out.Role == entities.RoleUnknown {
		out.Role = stored.Role
	}
	if out.PatientID == 0 {
		out.PatientID = stored.PatientID
	}
	if out.DoctorID == 0 {
		out.DoctorID = stored.DoctorID
	}
	if out.FirstName == "" {
		out.FirstName = stored.FirstName
	}
	if out.LastName == "" {
		out.LastName = stored.LastName
	}
	if out.Phone == "" {
		out.Phone = stored.Phone
	}
	if out.Specialty == "" {
		out.Specialty = stored.Specialty
	}
	return out
}
