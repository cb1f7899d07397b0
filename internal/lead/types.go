// Package lead turns free-text chat messages into structured lead candidates.
package lead

import "strings"

// Sentinel values.
const (
	// Unset marks a field the extraction step found nothing for.
	Unset = "SKIP"
	// Pending replaces Unset in records created from a partial candidate.
	Pending = "Pendiente"
	// NotSpecified is a placeholder some models emit; it never overwrites data.
	NotSpecified = "No especificado"
)

// Candidate is the data extracted from a single message. Each field is a
// real value or Unset.
type Candidate struct {
	Name        string
	Phone       string
	Appointment string
	Interest    string
}

// Empty returns a candidate with every field Unset.
func Empty() Candidate {
	return Candidate{Name: Unset, Phone: Unset, Appointment: Unset, Interest: Unset}
}

// IsUnset reports whether v carries no information.
func IsUnset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == Unset || v == NotSpecified
}

// Fields returns the four values in storage order: name, phone, appointment, interest.
func (c Candidate) Fields() [4]string {
	return [4]string{c.Name, c.Phone, c.Appointment, c.Interest}
}

// HasIdentity reports whether the candidate carries a name or a phone.
func (c Candidate) HasIdentity() bool {
	return !IsUnset(c.Name) || !IsUnset(c.Phone)
}

// IsEmpty reports whether no field carries information.
func (c Candidate) IsEmpty() bool {
	for _, f := range c.Fields() {
		if !IsUnset(f) {
			return false
		}
	}
	return true
}
