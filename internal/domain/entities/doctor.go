package entities

import (
	"sort"
	"strings"
)

// Doctor is a read-only view of a physician owned by the backend
type Doctor struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Specialty   string `json:"specialty"`
	Description string `json:"description,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Active      bool   `json:"active"`
}

// FullName joins first and last name
func (d Doctor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// DoctorProfileUpdate carries the editable profile fields. Nil fields are left untouched.
type DoctorProfileUpdate struct {
	FirstName   *string `json:"nombre,omitempty"`
	LastName    *string `json:"apellido,omitempty"`
	Specialty   *string `json:"especialidad,omitempty"`
	Description *string `json:"descripcion,omitempty"`
	Phone       *string `json:"telefono,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u DoctorProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Specialty == nil &&
		u.Description == nil && u.Phone == nil && u.Email == nil
}

// Specialties returns the distinct, sorted, non-empty specialties of doctors
func Specialties(doctors []Doctor) []string {
	seen := make(map[string]struct{}, len(doctors))
	out := make([]string, 0, len(doctors))
	for _, d := range doctors {
		s := strings.TrimSpace(d.Specialty)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
