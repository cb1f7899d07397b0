// Package clock provides the temporal grounding used in prompts: today's date
// written out in Spanish plus the current year.
package clock

import (
	"fmt"
	"time"
)

var weekdays = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var months = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// Clock returns the current instant. Tests substitute a fixed function.
type Clock func() time.Time

// System is the wall clock.
var System Clock = time.Now

// Today returns the label and year for the clock's current instant.
func (c Clock) Today() (string, int) {
	if c == nil {
		c = System
	}
	return Label(c())
}

// Label formats t as "Martes, 10 de Junio de 2025" and returns it with t's year.
func Label(t time.Time) (string, int) {
	return fmt.Sprintf("%s, %d de %s de %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year()), t.Year()
}
