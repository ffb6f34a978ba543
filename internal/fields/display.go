package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// wordOverrides fixes acronyms and connectors after title casing
var wordOverrides = map[string]string{
	"Rfc":    "RFC",
	"Curp":   "CURP",
	"Nss":    "NSS",
	"Imss":   "IMSS",
	"Issste": "ISSSTE",
	"Clabe":  "CLABE",
	"Cp":     "CP",
	"Cie":    "CIE",
	"Cie10":  "CIE-10",
	"Id":     "ID",
}

// connectors stay lower case unless they open the name
var connectors = map[string]bool{
	"De": true, "Del": true, "La": true, "Las": true, "El": true, "Los": true, "Y": true, "E": true, "O": true,
}

// phraseOverrides map whole normalised names to their canonical form, in order
var phraseOverrides = []struct {
	from string
	to   string
}{
	{"Fecha Nac", "Fecha de Nacimiento"},
	{"Fecha de Nac", "Fecha de Nacimiento"},
	{"F Nac", "Fecha de Nacimiento"},
	{"Fec Nac", "Fecha de Nacimiento"},
	{"Tel", "Teléfono"},
	{"Telefono", "Teléfono"},
	{"No Poliza", "Número de Póliza"},
	{"Num Poliza", "Número de Póliza"},
	{"Dx", "Diagnóstico"},
	{"Diagnostico", "Diagnóstico"},
	{"CP", "Código Postal"},
}

// defaultDisplayNames label fields that arrived without a label
var defaultDisplayNames = map[FieldType]string{
	FieldTypeRFC:                 "RFC",
	FieldTypeCURP:                "CURP",
	FieldTypeNSS:                 "NSS",
	FieldTypeIMSS:                "Número IMSS",
	FieldTypeISSSTE:              "Número ISSSTE",
	FieldTypePatientName:         "Nombre del Paciente",
	FieldTypeBirthDate:           "Fecha de Nacimiento",
	FieldTypeAge:                 "Edad",
	FieldTypeSex:                 "Sexo",
	FieldTypeDiagnosis:           "Diagnóstico",
	FieldTypeProfessionalLicense: "Cédula Profesional",
	FieldTypeDoctorName:          "Nombre del Médico",
	FieldTypePolicyNumber:        "Número de Póliza",
	FieldTypeCLABE:               "CLABE",
	FieldTypeCreditCard:          "Tarjeta",
	FieldTypeCurrency:            "Monto",
	FieldTypePostalCode:          "Código Postal",
	FieldTypePhone:               "Teléfono",
	FieldTypeEmail:               "Correo Electrónico",
	FieldTypeDate:                "Fecha",
	FieldTypeNumber:              "Número",
	FieldTypeUUID:                "Identificador",
	FieldTypeCheckbox:            "Casilla",
	FieldTypeSignature:           "Firma",
}

// FoldLabel lower-cases a label and removes accents so rule patterns can be
// written in plain ASCII
func FoldLabel(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, label)
	if err != nil {
		folded = label
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "\t", " ", "\n", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// DisplayName normalises a raw label into a human readable field name
func DisplayName(rawLabel string, fieldType FieldType) string {
	cleaned := stripLabel(norm.NFC.String(rawLabel))
	if cleaned == "" {
		if name, ok := defaultDisplayNames[fieldType]; ok {
			return name
		}
		return "Campo"
	}

	titled := cases.Title(language.Spanish).String(cleaned)
	words := strings.Fields(titled)
	for i, w := range words {
		if o, ok := wordOverrides[w]; ok {
			words[i] = o
			continue
		}
		if i > 0 && connectors[w] {
			words[i] = strings.ToLower(w)
		}
	}
	name := strings.Join(words, " ")

	for _, p := range phraseOverrides {
		if name == p.from {
			return p.to
		}
	}
	return name
}

// stripLabel keeps letters and digits; separators become spaces, other
// punctuation is dropped
func stripLabel(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '_' || r == '-' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
