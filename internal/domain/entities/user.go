package entities

import "strings"

// Role identifies what an authenticated user may do
type Role int

const (
	RoleUnknown Role = 0
	RolePatient Role = 1
	RoleDoctor  Role = 2
)

// String returns the role name
func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDoctor:
		return "doctor"
	default:
		return "unknown"
	}
}

// RoleFromName maps backend role names (PACIENTE, MEDICO) onto Role
func RoleFromName(name string) Role {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PACIENTE", "PATIENT":
		return RolePatient
	case "MEDICO", "MÉDICO", "DOCTOR":
		return RoleDoctor
	default:
		return RoleUnknown
	}
}

// Identity is the authenticated user as seen by the client
type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	PatientID int64  `json:"patient_id,omitempty"`
	DoctorID  int64  `json:"doctor_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Specialty string `json:"specialty,omitempty"`
}

// DisplayName joins first and last name
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// IsPatient reports whether the identity acts as a patient
func (i Identity) IsPatient() bool { return i.Role == RolePatient }

// IsDoctor reports whether the identity acts as a doctor
func (i Identity) IsDoctor() bool { return i.Role == RoleDoctor }

// Session is the persisted authentication state: one per client
type Session struct {
	Token    string   `json:"token"`
	Identity Identity `json:"user"`
}

// Valid reports whether the session carries a token
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PatientRegistration is the patient sign-up payload
type PatientRegistration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"name"`
	LastName  string `json:"apellido"`
	Phone     string `json:"telefono,omitempty"`
}

// DoctorRegistration is the doctor sign-up payload
type DoctorRegistration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"name"`
	LastName    string `json:"apellido"`
	Phone       string `json:"telefono,omitempty"`
	Specialty   string `json:"especialidad"`
	Description string `json:"descripcion"`
}
