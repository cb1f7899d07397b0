// Package catalog holds the agency's property inventory and commercial
// conditions, rendered as grounding text for both prompts.
package catalog

import (
	"fmt"
	"strings"
)

// GeneralInterest is the interest code used when no catalog reference applies.
const GeneralInterest = "GENERAL"

// Property is a single listing.
type Property struct {
	Ref      string   `toml:"ref"`
	Title    string   `toml:"title"`
	Area     string   `toml:"area"`
	Price    string   `toml:"price"`
	Keywords []string `toml:"keywords"`
}

// Catalog is the agency name, its listings and the conditions it quotes.
type Catalog struct {
	Agency     string     `toml:"agency"`
	Properties []Property `toml:"properties"`
	Conditions []string   `toml:"conditions"`
}

// Default returns the Habitat Futuro inventory.
func Default() Catalog {
	return Catalog{
		Agency: "Habitat Futuro",
		Properties: []Property{
			{Ref: "REF-001", Title: "Ático en Gran Vía", Area: "Madrid", Price: "850.000€",
				Keywords: []string{"ático", "gran vía", "terraza", "vistas", "lujo"}},
			{Ref: "REF-002", Title: "Piso Familiar en Chamberí", Price: "620.000€",
				Keywords: []string{"chamberí", "familiar", "colegio", "exterior"}},
			{Ref: "REF-003", Title: "Loft Industrial en Malasaña", Price: "450.000€",
				Keywords: []string{"loft", "malasaña", "industrial", "diáfano"}},
			{Ref: "REF-004", Title: "Chalet Adosado en Aravaca", Price: "1.2M€",
				Keywords: []string{"chalet", "aravaca", "piscina", "garaje"}},
		},
		Conditions: []string{
			"Cobramos un 3% de comisión al comprador.",
			"Horario de visitas: Lunes a Viernes de 10:00 a 19:00.",
		},
	}
}

// Lookup returns the property with the given reference, case-insensitively.
func (c Catalog) Lookup(ref string) (Property, bool) {
	ref = strings.TrimSpace(ref)
	for _, p := range c.Properties {
		if strings.EqualFold(p.Ref, ref) {
			return p, true
		}
	}
	return Property{}, false
}

// NormalizeInterest upper-cases code and maps anything that is not a known
// reference to GeneralInterest. Values listed in keep pass through untouched.
func (c Catalog) NormalizeInterest(code string, keep ...string) string {
	code = strings.TrimSpace(code)
	for _, k := range keep {
		if code == k {
			return code
		}
	}
	if p, ok := c.Lookup(code); ok {
		return p.Ref
	}
	return GeneralInterest
}

// Render writes the inventory block embedded in the system prompts.
func (c Catalog) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LISTADO DE PROPIEDADES DISPONIBLES EN '%s':\n\n", c.Agency)
	for i, p := range c.Properties {
		title := p.Title
		if p.Area != "" {
			title += " (" + p.Area + ")"
		}
		fmt.Fprintf(&b, "%d. %s: %s. Precio: %s.\n", i+1, p.Ref, title, p.Price)
		if len(p.Keywords) > 0 {
			fmt.Fprintf(&b, "   - Palabras clave: %s.\n", strings.Join(p.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	if len(c.Conditions) > 0 {
		b.WriteString("CONDICIONES DE LA AGENCIA:\n")
		for _, cond := range c.Conditions {
			fmt.Fprintf(&b, "- %s\n", cond)
		}
	}
	return b.String()
}
