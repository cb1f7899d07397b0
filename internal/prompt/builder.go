package prompt

import (
	"fmt"
	"strings"
)

// Persona returns the system message that seeds every conversation.
func Persona(today, agency, inventory string) string {
	return fmt.Sprintf(`CONTEXTO: Hoy es %s.
Eres 'Sara', la asesora comercial senior de '%s'.

INVENTARIO:
%s

OBJETIVO: Conseguir agendar visita. Pide NOMBRE, TELÉFONO y FECHA/HORA preferida.`, today, agency, inventory)
}

// Extraction returns the instruction for the lead extraction call. The reply
// format is one line: NOMBRE | TELEFONO | CITA_COMPLETA | INTERES.
func Extraction(today string, year int, inventory, unset, general string) string {
	var b strings.Builder
	b.WriteString("ERES UN MOTOR DE EXTRACCIÓN DE DATOS CRM.\n")
	fmt.Fprintf(&b, "CONTEXTO TEMPORAL: Hoy es %s. Año: %d.\n\n", today, year)
	fmt.Fprintf(&b, "INVENTARIO:\n%s\n", inventory)
	b.WriteString(`TU MISIÓN:
Analiza el texto del usuario y devuelve UNA sola línea con 4 campos separados por tuberías (|):
NOMBRE | TELEFONO | CITA_COMPLETA | INTERES

EJEMPLOS DE ENTRENAMIENTO (ÚSALOS COMO GUÍA):

`)
	for _, ex := range examples(year, unset) {
		fmt.Fprintf(&b, "Usuario: %q\nTu respuesta: %s\n\n", ex.user, ex.reply)
	}
	fmt.Fprintf(&b, `REGLAS:
1. Separador OBLIGATORIO: |
2. Si falta un dato, pon: %s
3. Para INTERES, usa SIEMPRE el código (REF-XXX). Si no sabes cual es, pon %s.
4. Para CITA_COMPLETA, calcula la fecha exacta basándote en que hoy es %s.
`, unset, general, today)
	return b.String()
}

// ExtractionTask wraps the user's message as the extraction task.
func ExtractionTask(text string) string {
	return fmt.Sprintf("Analiza esto ahora mismo: '%s'", text)
}

type example struct {
	user  string
	reply string
}

func examples(year int, unset string) []example {
	return []example{
		{
			user:  "Hola, soy Ana, mi movil es 600112233 y quiero ver el ático mañana a las 5",
			reply: fmt.Sprintf("Ana | 600112233 | %d-MM-DD 17:00 | REF-001", year),
		},
		{
			user:  "Me interesa el piso de chamberi, llamame al 911223344",
			reply: fmt.Sprintf("%s | 911223344 | %s | REF-002", unset, unset),
		},
		{
			user:  "Quiero cita para el loft el martes 20 por la tarde. Soy Carlos.",
			reply: fmt.Sprintf("Carlos | %s | 20/MM/%d (Tarde) | REF-003", unset, year),
		},
	}
}
