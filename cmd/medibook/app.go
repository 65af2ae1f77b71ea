package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/medibook/internal/adapters/backend"
	"github.com/zatekoja/medibook/internal/adapters/cache"
	"github.com/zatekoja/medibook/internal/adapters/events"
	"github.com/zatekoja/medibook/internal/adapters/session"
	"github.com/zatekoja/medibook/internal/application/services"
	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/clients/redis"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	"github.com/zatekoja/medibook/pkg/config"
)

// app holds every wired component of one client run
type app struct {
	cfg *config.Config
	out io.Writer

	metrics *observability.Metrics
	cache   providers.CacheProvider
	events  providers.EventBus
	backend providers.Backend

	session      *services.SessionService
	directory    *services.DoctorDirectory
	resolver     *services.AvailabilityResolver
	appointments *services.AppointmentService
	wizard       *services.BookingWizard
	patientList  *services.PatientAppointments
	agenda       *services.DoctorAppointments
	availability *services.AvailabilityService
	profile      *services.DoctorProfileService
	refresh      *services.RefreshService

	closers []func() error
}

// appOption adjusts wiring, mainly for tests
type appOption func(*appDeps)

type appDeps struct {
	store   providers.SessionStore
	backend providers.Backend
	clock   func() time.Time
}

func withSessionStore(store providers.SessionStore) appOption {
	return func(d *appDeps) { d.store = store }
}

func withBackend(b providers.Backend) appOption {
	return func(d *appDeps) { d.backend = b }
}

func withClock(now func() time.Time) appOption {
	return func(d *appDeps) { d.clock = now }
}

// newApp wires the client from cfg. Redis is only dialled when the session store needs it.
func newApp(ctx context.Context, cfg *config.Config, out io.Writer, opts ...appOption) (*app, error) {
	deps := &appDeps{}
	for _, opt := range opts {
		opt(deps)
	}

	a := &app{cfg: cfg, out: out}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	a.metrics = metrics

	var redisClient *redis.Client
	if cfg.Session.Store == "redis" {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, redisClient.Close)
		a.cache = cache.NewRedisAdapter(redisClient)
		a.events = events.NewRedisEventBus(redisClient)
	} else {
		a.cache = cache.NewMemoryAdapter()
		a.events = events.NewMemoryEventBus()
	}
	a.closers = append(a.closers, a.events.Close)

	store := deps.store
	if store == nil {
		store = newSessionStore(cfg, a.cache)
	}

	a.session = services.NewSessionService(store, providers.NavigatorFunc(a.navigate), cfg.Auth.BootstrapAttempts, cfg.Auth.BootstrapDelay)

	a.backend = deps.backend
	if a.backend == nil {
		a.backend, err = backend.NewBackend(cfg, backend.Dependencies{
			Tokens:         a.session,
			OnUnauthorized: a.session.HandleUnauthorized,
			Metrics:        metrics,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.session.BindAuth(a.backend)

	resolverOpts := []services.ResolverOption{
		services.WithDebounce(cfg.Booking.AvailabilityDebounce),
		services.WithResolverMetrics(metrics),
	}
	if deps.clock != nil {
		resolverOpts = append(resolverOpts, services.WithResolverClock(deps.clock))
	}

	a.directory = services.NewDoctorDirectory(a.backend, metrics)
	a.resolver = services.NewAvailabilityResolver(a.backend, resolverOpts...)
	a.appointments = services.NewAppointmentService(a.backend, a.session, a.events)
	a.wizard = services.NewBookingWizard(a.resolver, a.appointments, providers.NavigatorFunc(a.navigate))
	a.patientList = services.NewPatientAppointments(a.appointments, metrics)
	a.agenda = services.NewDoctorAppointments(a.appointments, metrics)
	a.availability = services.NewAvailabilityService(a.backend, a.session, a.cache, a.events)
	a.profile = services.NewDoctorProfileService(a.backend, a.session)
	if deps.clock != nil {
		a.appointments.SetClock(deps.clock)
		a.availability.SetClock(deps.clock)
	}

	a.refresh = services.NewRefreshService(a.events)
	a.closers = append(a.closers, func() error {
		a.refresh.Stop()
		return nil
	})

	return a, nil
}

func newSessionStore(cfg *config.Config, c providers.CacheProvider) providers.SessionStore {
	switch cfg.Session.Store {
	case "redis":
		return session.NewCacheStore(c, cfg.Session.Profile, cfg.Session.TTL)
	case "memory":
		return session.NewMemoryStore(nil)
	default:
		return session.NewFileStore(cfg.Session.Path)
	}
}

// bootstrap restores the stored session, if any
func (a *app) bootstrap(ctx context.Context) error {
	id, err := a.session.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if id != nil {
		log.Debug().Str("user_id", id.UserID).Str("role", id.Role.String()).Msg("Session restored")
		a.watch()
	}
	return nil
}

var appointmentEvents = []entities.AppointmentEventType{
	entities.AppointmentEventCreated,
	entities.AppointmentEventTransitioned,
	entities.AppointmentEventReasonEdited,
	entities.AppointmentEventStale,
}

// watch keeps the logged-in user's lists fresh while a command runs
func (a *app) watch() {
	id, ok := a.session.Identity()
	if !ok {
		return
	}
	var channel string
	switch {
	case id.IsPatient():
		a.refresh.Register("patient_appointments", a.patientList, appointmentEvents...)
		channel = providers.GetPatientChannel(id.PatientID)
	case id.IsDoctor():
		a.refresh.Register("doctor_agenda", a.agenda, appointmentEvents...)
		doctorID := id.DoctorID
		a.refresh.Register("availability", services.InvalidatorFunc(func(ctx context.Context) error {
			a.availability.Invalidate(ctx, doctorID)
			return nil
		}), entities.AvailabilityEventBlocked, entities.AvailabilityEventUnblocked)
		channel = providers.GetDoctorChannel(id.DoctorID)
	default:
		return
	}
	if err := a.refresh.Start(channel); err != nil {
		log.Warn().Err(err).Msg("Live refresh disabled")
		return
	}
	a.refresh.StartPeriodic(context.Background(), a.cfg.Booking.RefreshInterval)
}

// navigate prints a hint where a graphical client would switch screens
func (a *app) navigate(route providers.Route) {
	switch route {
	case providers.RouteLogin:
		fmt.Fprintln(a.out, "You are logged out. Run `medibook login` to continue.")
	case providers.RoutePatientAppointments:
		fmt.Fprintln(a.out, "See your appointments with `medibook appointments`.")
	case providers.RouteDoctorAgenda:
		fmt.Fprintln(a.out, "See your agenda with `medibook agenda`.")
	}
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Debug().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
