// Package crm persists customer lead records in a flat CSV file and merges
// extracted candidates into it.
package crm

import (
	"time"

	"github.com/habitatfuturo/habitat/internal/lead"
)

// Column names of the store file, in write order.
const (
	ColSession     = "ID_Sesion"
	ColRegistered  = "Fecha_Registro"
	ColName        = "Nombre"
	ColPhone       = "Teléfono"
	ColAppointment = "Reunión/Visita"
	ColInterest    = "Interés"
)

// Columns is the exact header of the store file.
var Columns = []string{ColSession, ColRegistered, ColName, ColPhone, ColAppointment, ColInterest}

// PreviewColumns is the subset shown by the admin preview.
var PreviewColumns = []string{ColName, ColPhone, ColAppointment, ColInterest}

// TimeLayout is the format of RegisteredAt.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one customer row. RegisteredAt is kept as written so that an
// unchanged store round-trips byte for byte.
type Record struct {
	SessionID    string `json:"session_id"`
	RegisteredAt string `json:"registered_at"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Appointment  string `json:"appointment"`
	Interest     string `json:"interest"`
}

// Registered parses RegisteredAt in the local zone.
func (r Record) Registered() (time.Time, bool) {
	t, err := time.ParseInLocation(TimeLayout, r.RegisteredAt, time.Local)
	return t, err == nil
}

// Get returns the value of the named column.
func (r Record) Get(col string) string {
	switch col {
	case ColSession:
		return r.SessionID
	case ColRegistered:
		return r.RegisteredAt
	case ColName:
		return r.Name
	case ColPhone:
		return r.Phone
	case ColAppointment:
		return r.Appointment
	case ColInterest:
		return r.Interest
	}
	return ""
}

// set assigns the named column; unknown names are ignored.
func (r *Record) set(col, v string) {
	switch col {
	case ColSession:
		r.SessionID = v
	case ColRegistered:
		r.RegisteredAt = v
	case ColName:
		r.Name = v
	case ColPhone:
		r.Phone = v
	case ColAppointment:
		r.Appointment = v
	case ColInterest:
		r.Interest = v
	}
}

// Values returns the record in Columns order.
func (r Record) Values() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = r.Get(c)
	}
	return out
}

// fields returns pointers to the four lead fields in candidate order.
func (r *Record) fields() [4]*string {
	return [4]*string{&r.Name, &r.Phone, &r.Appointment, &r.Interest}
}

// newRecord builds a record from a candidate, replacing placeholders with
// lead.Pending.
func newRecord(c lead.Candidate, sessionID string, now time.Time) Record {
	r := Record{SessionID: sessionID, RegisteredAt: now.Format(TimeLayout)}
	vals := c.Fields()
	for i, p := range r.fields() {
		if lead.IsUnset(vals[i]) {
			*p = lead.Pending
		} else {
			*p = vals[i]
		}
	}
	return r
}
