package citasapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
)

// flexID accepts 12 and "12"
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", s)
		}
		*f = flexID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

// flexString accepts "abc" and 42
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// civilDate keeps the YYYY-MM-DD prefix of a date or timestamp
func civilDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(entities.DateLayout) {
		return s[:len(entities.DateLayout)]
	}
	return s
}

// clock keeps the HH:MM prefix of a wall-clock time
func clock(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(entities.ClockLayout) {
		return s[:len(entities.ClockLayout)]
	}
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp reads a combined date-time; zoned values are converted to local time
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t.Local(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// combine joins a civil date with an HH:MM clock in local time
func combine(date, hhmm string) (time.Time, error) {
	return time.ParseInLocation(entities.DateLayout+" "+entities.ClockLayout, civilDate(date)+" "+clock(hhmm), time.Local)
}

// userDTO is the backend's user block. Field names vary between endpoints.
type userDTO struct {
	UserID       flexString `json:"userId"`
	ID           flexString `json:"id"`
	Email        string     `json:"email"`
	RoleID       int        `json:"roleId"`
	RolID        int        `json:"rol_id"`
	RoleName     string     `json:"rol_nombre"`
	Role         string     `json:"rol"`
	Name         string     `json:"name"`
	Nombre       string     `json:"nombre"`
	Apellido     string     `json:"apellido"`
	Telefono     string     `json:"telefono"`
	Especialidad string     `json:"especialidad"`
	PacienteID   flexID     `json:"paciente_id"`
	MedicoID     flexID     `json:"medico_id"`
}

func (u userDTO) toIdentity() entities.Identity {
	role := entities.RoleFromName(firstNonEmpty(u.RoleName, u.Role))
	if role == entities.RoleUnknown {
		switch firstNonZero(u.RoleID, u.RolID) {
		case int(entities.RolePatient):
			role = entities.RolePatient
		case int(entities.RoleDoctor):
			role = entities.RoleDoctor
		}
	}
	return entities.Identity{
		UserID:    firstNonEmpty(string(u.UserID), string(u.ID)),
		Email:     u.Email,
		Role:      role,
		PatientID: int64(u.PacienteID),
		DoctorID:  int64(u.MedicoID),
		FirstName: firstNonEmpty(u.Name, u.Nombre),
		LastName:  u.Apellido,
		Phone:     u.Telefono,
		Specialty: u.Especialidad,
	}
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

// decodeIdentity accepts {user: {...}} or a bare user object
func decodeIdentity(data json.RawMessage) (*entities.Identity, error) {
	var wrapped struct {
		User *userDTO `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.User != nil {
		id := wrapped.User.toIdentity()
		return &id, nil
	}
	var bare userDTO
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	id := bare.toIdentity()
	return &id, nil
}

type sessionDTO struct {
	Token string   `json:"token"`
	User  *userDTO `json:"user"`
}

func decodeSession(data json.RawMessage) (*entities.Session, error) {
	var dto sessionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	if dto.Token == "" {
		return nil, fmt.Errorf("response carries no token")
	}
	session := &entities.Session{Token: dto.Token}
	if dto.User != nil {
		session.Identity = dto.User.toIdentity()
	}
	return session, nil
}

// doctorDTO is the backend's medico. Name fields may be nested under usuario.
type doctorDTO struct {
	ID           flexID `json:"id"`
	Nombre       string `json:"nombre"`
	Apellido     string `json:"apellido"`
	Especialidad string `json:"especialidad"`
	Descripcion  string `json:"descripcion"`
	FotoPerfil   string `json:"foto_perfil"`
	Telefono     string `json:"telefono"`
	Email        string `json:"email"`
	Activo       *bool  `json:"activo"`
	Usuario      *struct {
		Nombre   string `json:"nombre"`
		Apellido string `json:"apellido"`
		Email    string `json:"email"`
		Telefono string `json:"telefono"`
	} `json:"usuario"`
}

func (d doctorDTO) toEntity() entities.Doctor {
	doc := entities.Doctor{
		ID:          int64(d.ID),
		FirstName:   d.Nombre,
		LastName:    d.Apellido,
		Specialty:   d.Especialidad,
		Description: d.Descripcion,
		PhotoURL:    d.FotoPerfil,
		Phone:       d.Telefono,
		Email:       d.Email,
		Active:      d.Activo == nil || *d.Activo,
	}
	if u := d.Usuario; u != nil {
		doc.FirstName = firstNonEmpty(doc.FirstName, u.Nombre)
		doc.LastName = firstNonEmpty(doc.LastName, u.Apellido)
		doc.Email = firstNonEmpty(doc.Email, u.Email)
		doc.Phone = firstNonEmpty(doc.Phone, u.Telefono)
	}
	return doc
}

type patientDTO struct {
	ID       flexID `json:"id"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Telefono string `json:"telefono"`
}

// appointmentDTO accepts both the split (fecha, hora_inicio, hora_fin) and
// the combined (fecha_hora) time shapes
type appointmentDTO struct {
	ID               flexID      `json:"id"`
	PacienteID       flexID      `json:"paciente_id"`
	MedicoID         flexID      `json:"medico_id"`
	Fecha            string      `json:"fecha"`
	HoraInicio       string      `json:"hora_inicio"`
	HoraFin          string      `json:"hora_fin"`
	FechaHora        string      `json:"fecha_hora"`
	Estado           string      `json:"estado"`
	Motivo           string      `json:"motivo"`
	ComentarioMedico string      `json:"comentario_medico"`
	FechaCreacion    string      `json:"fecha_creacion"`
	Medico           *doctorDTO  `json:"medico"`
	Paciente         *patientDTO `json:"paciente"`
}

func (a appointmentDTO) toEntity() (entities.Appointment, error) {
	status, err := entities.ParseAppointmentStatus(a.Estado)
	if err != nil {
		return entities.Appointment{}, fmt.Errorf("appointment %d: %w", a.ID, err)
	}

	appt := entities.Appointment{
		ID:            int64(a.ID),
		PatientID:     int64(a.PacienteID),
		DoctorID:      int64(a.MedicoID),
		Status:        status,
		Reason:        a.Motivo,
		DoctorComment: a.ComentarioMedico,
	}

	switch {
	case a.Fecha != "" && a.HoraInicio != "":
		start, err := combine(a.Fecha, a.HoraInicio)
		if err != nil {
			return entities.Appointment{}, fmt.Errorf("appointment %d: invalid start: %w", a.ID, err)
		}
		appt.Start = start
		if a.HoraFin != "" {
			end, err := combine(a.Fecha, a.HoraFin)
			if err != nil {
				return entities.Appointment{}, fmt.Errorf("appointment %d: invalid end: %w", a.ID, err)
			}
			appt.End = end
		}
	case a.FechaHora != "":
		start, err := parseTimestamp(a.FechaHora)
		if err != nil {
			return entities.Appointment{}, fmt.Errorf("appointment %d: %w", a.ID, err)
		}
		appt.Start = start
		if a.HoraFin != "" {
			if end, err := combine(start.Format(entities.DateLayout), a.HoraFin); err == nil {
				appt.End = end
			}
		}
	default:
		return entities.Appointment{}, fmt.Errorf("appointment %d carries no date", a.ID)
	}

	if a.FechaCreacion != "" {
		if created, err := parseTimestamp(a.FechaCreacion); err == nil {
			appt.CreatedAt = created
		}
	}
	if a.Medico != nil {
		doc := a.Medico.toEntity()
		appt.Doctor = &doc
		if appt.DoctorID == 0 {
			appt.DoctorID = doc.ID
		}
	}
	if a.Paciente != nil {
		appt.Patient = &entities.PatientSummary{
			ID:        int64(a.Paciente.ID),
			FirstName: a.Paciente.Nombre,
			LastName:  a.Paciente.Apellido,
			Email:     a.Paciente.Email,
			Phone:     a.Paciente.Telefono,
		}
		if appt.PatientID == 0 {
			appt.PatientID = appt.Patient.ID
		}
	}
	return appt, nil
}

func decodeAppointment(data json.RawMessage) (*entities.Appointment, error) {
	var wrapped struct {
		Cita *appointmentDTO `json:"cita"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Cita != nil {
		appt, err := wrapped.Cita.toEntity()
		return &appt, err
	}
	var dto appointmentDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	appt, err := dto.toEntity()
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func decodeAppointments(data json.RawMessage) ([]entities.Appointment, error) {
	var dtos []appointmentDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, err
	}
	out := make([]entities.Appointment, 0, len(dtos))
	for _, dto := range dtos {
		appt, err := dto.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, nil
}

type availabilityDTO struct {
	Disponible bool                `json:"disponible"`
	Razon      string              `json:"razon"`
	Horarios   []entities.TimeSlot `json:"horarios"`
}

// blockedDTO is one row of /disponibilidades: a single blocked day or a range
type blockedDTO struct {
	ID            flexID `json:"id"`
	MedicoID      flexID `json:"medico_id"`
	Fecha         string `json:"fecha"`
	FechaInicio   string `json:"fecha_inicio"`
	FechaFin      string `json:"fecha_fin"`
	FechaInicioCC string `json:"fechaInicio"`
	FechaFinCC    string `json:"fechaFin"`
	Disponible    *bool  `json:"disponible"`
	FechaCreacion string `json:"fecha_creacion"`
}

func (b blockedDTO) toEntity() (entities.BlockedInterval, bool) {
	if b.Disponible != nil && *b.Disponible {
		return entities.BlockedInterval{}, false
	}
	start := civilDate(firstNonEmpty(b.Fecha, b.FechaInicio, b.FechaInicioCC))
	end := civilDate(firstNonEmpty(b.FechaFin, b.FechaFinCC, start))
	if start == "" {
		return entities.BlockedInterval{}, false
	}
	interval := entities.BlockedInterval{
		ID:       int64(b.ID),
		DoctorID: int64(b.MedicoID),
		Start:    start,
		End:      end,
	}
	if b.FechaCreacion != "" {
		if created, err := parseTimestamp(b.FechaCreacion); err == nil {
			interval.CreatedAt = created
		}
	}
	return interval, true
}

type calendarDayDTO struct {
	Fecha      string  `json:"fecha"`
	Disponible bool    `json:"disponible"`
	DetalleID  *flexID `json:"detalleId"`
}

type calendarDTO struct {
	Mes              int                       `json:"mes"`
	Ano              int                       `json:"ano"`
	DiasNoDisponible int                       `json:"dias_no_disponibles_total"`
	DiasDisponibles  int                       `json:"dias_disponibles_total"`
	DiasTotal        int                       `json:"dias_total"`
	Calendario       map[string]calendarDayDTO `json:"calendario"`
}

// toEntity orders the day-of-month keyed cells and fills weekdays locally
func (c calendarDTO) toEntity(doctorID int64) (entities.MonthCalendar, error) {
	if c.Mes < 1 || c.Mes > 12 {
		return entities.MonthCalendar{}, fmt.Errorf("invalid calendar month %d", c.Mes)
	}
	cal := entities.MonthCalendar{
		DoctorID:       doctorID,
		Year:           c.Ano,
		Month:          time.Month(c.Mes),
		DaysTotal:      c.DiasTotal,
		AvailableTotal: c.DiasDisponibles,
		BlockedTotal:   c.DiasNoDisponible,
	}

	keys := make([]int, 0, len(c.Calendario))
	for k := range c.Calendario {
		n, err := strconv.Atoi(k)
		if err != nil {
			return entities.MonthCalendar{}, fmt.Errorf("invalid calendar day %q", k)
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)

	for _, n := range keys {
		dto := c.Calendario[strconv.Itoa(n)]
		day := time.Date(c.Ano, time.Month(c.Mes), n, 0, 0, 0, 0, time.Local)
		cell := entities.CalendarDay{
			Date:      firstNonEmpty(civilDate(dto.Fecha), day.Format(entities.DateLayout)),
			Weekday:   day.Weekday(),
			Available: dto.Disponible,
		}
		if dto.DetalleID != nil && !dto.Disponible {
			id := int64(*dto.DetalleID)
			cell.BlockedIntervalID = &id
		}
		cal.Days = append(cal.Days, cell)
	}
	if cal.DaysTotal == 0 {
		cal.DaysTotal = len(cal.Days)
	}
	return cal, nil
}
