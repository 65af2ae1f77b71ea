package services

import (
	"context"
	"strings"
	"sync"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
)

// DoctorDirectory lists doctors, optionally filtered by specialty on the
// server. The specialty choices always come from the unfiltered list.
type DoctorDirectory struct {
	api     providers.DoctorAPI
	metrics *observability.Metrics

	mu          sync.Mutex
	gen         uint64
	specialty   string
	doctors     []entities.Doctor
	specialties []string
	loading     bool
	err         error
}

// NewDoctorDirectory creates an empty directory
func NewDoctorDirectory(api providers.DoctorAPI, metrics *observability.Metrics) *DoctorDirectory {
	return &DoctorDirectory{api: api, metrics: metrics}
}

// Load fetches the full list, derives the specialties and applies the current filter
func (d *DoctorDirectory) Load(ctx context.Context) error {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	specialty := d.specialty
	d.loading = true
	d.err = nil
	d.mu.Unlock()

	all, err := d.api.ListDoctors(ctx, "")
	if err != nil {
		return d.fail(gen, err)
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		observability.RecordStaleResponse(ctx, d.metrics, "doctors")
		return ErrSuperseded
	}
	d.specialties = entities.Specialties(all)
	if specialty == "" {
		d.doctors = all
		d.loading = false
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	filtered, err := d.api.ListDoctors(ctx, specialty)
	if err != nil {
		return d.fail(gen, err)
	}
	return d.apply(ctx, gen, filtered, false)
}

// SetSpecialty changes the filter and refetches. "" shows every doctor.
func (d *DoctorDirectory) SetSpecialty(ctx context.Context, specialty string) error {
	specialty = strings.TrimSpace(specialty)

	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.specialty = specialty
	d.loading = true
	d.err = nil
	d.mu.Unlock()

	doctors, err := d.api.ListDoctors(ctx, specialty)
	if err != nil {
		return d.fail(gen, err)
	}
	return d.apply(ctx, gen, doctors, specialty == "")
}

// apply stores a result of generation gen. An unfiltered result also refreshes the specialties.
func (d *DoctorDirectory) apply(ctx context.Context, gen uint64, doctors []entities.Doctor, unfiltered bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		observability.RecordStaleResponse(ctx, d.metrics, "doctors")
		return ErrSuperseded
	}
	d.doctors = doctors
	if unfiltered {
		d.specialties = entities.Specialties(doctors)
	}
	d.loading = false
	return nil
}

func (d *DoctorDirectory) fail(gen uint64, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return ErrSuperseded
	}
	d.doctors = nil
	d.loading = false
	d.err = err
	return err
}

// Get fetches one doctor's detail
func (d *DoctorDirectory) Get(ctx context.Context, id int64) (*entities.Doctor, error) {
	return d.api.GetDoctor(ctx, id)
}

// Doctors returns the doctors matching the current filter
func (d *DoctorDirectory) Doctors() []entities.Doctor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]entities.Doctor(nil), d.doctors...)
}

// Specialties returns the distinct specialties of the unfiltered list
func (d *DoctorDirectory) Specialties() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.specialties...)
}

// Specialty returns the current filter
func (d *DoctorDirectory) Specialty() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.specialty
}

func (d *DoctorDirectory) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading
}

func (d *DoctorDirectory) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
