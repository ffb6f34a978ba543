package fields

import "regexp"

// RuleGroup names the conceptual family a label rule belongs to
type RuleGroup string

const (
	GroupIdentifier  RuleGroup = "identifier"
	GroupDemographic RuleGroup = "demographic"
	GroupMedical     RuleGroup = "medical"
	GroupInsurance   RuleGroup = "insurance"
	GroupFinancial   RuleGroup = "financial"
	GroupLocation    RuleGroup = "location"
	GroupGeneric     RuleGroup = "generic"
)

// LabelRule maps a folded label pattern to a field type
type LabelRule struct {
	Name      string
	Group     RuleGroup
	Pattern   *regexp.Regexp
	FieldType FieldType
}

// ValueRule recognises a field type from the shape of the value alone.
// Types lists every field type the shape is evidence for; the first is the
// type assigned when no label rule matched.
type ValueRule struct {
	Name  string
	Types []FieldType
	Match func(value string) bool
}

// Supports reports whether the rule is evidence for fieldType
func (r ValueRule) Supports(fieldType FieldType) bool {
	for _, t := range r.Types {
		if t == fieldType {
			return true
		}
	}
	return false
}

func labelRule(name string, group RuleGroup, pattern string, fieldType FieldType) LabelRule {
	return LabelRule{Name: name, Group: group, Pattern: regexp.MustCompile(pattern), FieldType: fieldType}
}

// DefaultLabelRules returns the label cascade in priority order. Patterns run
// against labels folded to lower case without accents.
func DefaultLabelRules() []LabelRule {
	return []LabelRule{
		// Identifiers
		labelRule("rfc", GroupIdentifier, `\brfc\b|registro federal de contribuyentes`, FieldTypeRFC),
		labelRule("curp", GroupIdentifier, `\bcurp\b|clave unica de registro`, FieldTypeCURP),
		labelRule("nss", GroupIdentifier, `\bnss\b|seguridad social|seguro social|numero de afiliacion`, FieldTypeNSS),
		labelRule("imss", GroupIdentifier, `\bimss\b`, FieldTypeIMSS),
		labelRule("issste", GroupIdentifier, `\bissste\b`, FieldTypeISSSTE),

		// Demographic
		labelRule("birth_date", GroupDemographic, `fecha\s*(de\s*)?nac|nacimiento|\bf\.?\s*nac\b|birth|\bdob\b`, FieldTypeBirthDate),
		labelRule("age", GroupDemographic, `^edad\b|\bedad\b|^age$`, FieldTypeAge),
		labelRule("sex", GroupDemographic, `\bsexo\b|\bgenero\b|^sex$|\bgender\b`, FieldTypeSex),
		labelRule("marital_status", GroupDemographic, `estado civil|marital`, FieldTypeMaritalStatus),
		labelRule("nationality", GroupDemographic, `nacionalidad|nationality`, FieldTypeNationality),
		labelRule("occupation", GroupDemographic, `ocupacion|profesion\b|occupation`, FieldTypeOccupation),
		labelRule("patient_name", GroupDemographic,
			`nombre del (paciente|asegurado|titular)|^paciente\b|nombre completo|^nombre\(?s?\)?$|apellido|patient name|^name$`,
			FieldTypePatientName),

		// Medical (signature must precede doctor_name: "firma del medico")
		labelRule("diagnosis", GroupMedical, `diagnostico|\bcie\s*-?\s*10\b|\bdx\b|diagnosis`, FieldTypeDiagnosis),
		labelRule("signature", GroupGeneric, `\bfirma\b|signature`, FieldTypeSignature),
		labelRule("professional_license", GroupMedical, `cedula|licencia profesional|professional license`, FieldTypeProfessionalLicense),
		labelRule("doctor_name", GroupMedical, `medico|doctor|\bdr\b|\bdra\b|physician`, FieldTypeDoctorName),
		labelRule("hospital", GroupMedical, `hospital|clinica|sanatorio|unidad medica`, FieldTypeHospital),
		labelRule("blood_type", GroupMedical, `tipo de sangre|grupo sanguineo|blood type`, FieldTypeBloodType),
		labelRule("allergies", GroupMedical, `alergia|allerg`, FieldTypeAllergies),

		// Insurance
		labelRule("policy_number", GroupInsurance, `poliza|policy`, FieldTypePolicyNumber),
		labelRule("claim_number", GroupInsurance, `siniestro|reclamacion|\bclaim\b`, FieldTypeClaimNumber),
		labelRule("insurer", GroupInsurance, `aseguradora|compania de seguros|insurer`, FieldTypeInsurer),
		labelRule("certificate_number", GroupInsurance, `certificado|certificate`, FieldTypeCertificateNumber),

		// Financial
		labelRule("clabe", GroupFinancial, `\bclabe\b`, FieldTypeCLABE),
		labelRule("credit_card", GroupFinancial, `tarjeta|credit card|card number`, FieldTypeCreditCard),
		labelRule("bank_account", GroupFinancial, `\bcuenta\b|account`, FieldTypeBankAccount),
		labelRule("bank_name", GroupFinancial, `\bbanco\b|\bbank\b`, FieldTypeBankName),
		labelRule("currency", GroupFinancial, `\bmonto\b|importe|\btotal\b|\bcosto\b|\bamount\b|deducible|coaseguro`, FieldTypeCurrency),

		// Location and contact
		labelRule("postal_code", GroupLocation, `codigo postal|\bc\.?\s?p\b|\bzip\b`, FieldTypePostalCode),
		labelRule("email", GroupLocation, `correo|e-?mail`, FieldTypeEmail),
		labelRule("phone", GroupLocation, `telefono|celular|\btel\b|phone`, FieldTypePhone),
		labelRule("address", GroupLocation, `domicilio|direccion|\bcalle\b|colonia|address`, FieldTypeAddress),
		labelRule("city", GroupLocation, `ciudad|municipio|alcaldia|\bcity\b`, FieldTypeCity),
		labelRule("state", GroupLocation, `^estado$|entidad federativa|^state$`, FieldTypeState),

		// Generic
		labelRule("date", GroupGeneric, `\bfecha\b|\bdate\b`, FieldTypeDate),
	}
}

// DefaultValueRules returns the value-shape cascade in priority order
func DefaultValueRules() []ValueRule {
	return []ValueRule{
		{Name: "rfc", Types: []FieldType{FieldTypeRFC}, Match: IsRFC},
		{Name: "curp", Types: []FieldType{FieldTypeCURP}, Match: IsCURP},
		{Name: "nss", Types: []FieldType{FieldTypeNSS, FieldTypeIMSS}, Match: IsNSS},
		{Name: "cie10", Types: []FieldType{FieldTypeDiagnosis}, Match: IsCIE10},
		{Name: "clabe", Types: []FieldType{FieldTypeCLABE, FieldTypeBankAccount}, Match: IsCLABE},
		{Name: "credit_card", Types: []FieldType{FieldTypeCreditCard}, Match: IsCreditCard},
		{Name: "uuid", Types: []FieldType{FieldTypeUUID}, Match: IsUUID},
		{Name: "postal_code", Types: []FieldType{FieldTypePostalCode}, Match: IsPostalCode},
		{Name: "date", Types: []FieldType{FieldTypeDate, FieldTypeBirthDate}, Match: IsDate},
		{Name: "email", Types: []FieldType{FieldTypeEmail}, Match: IsEmail},
		{Name: "phone", Types: []FieldType{FieldTypePhone}, Match: IsPhone},
		{
			Name:  "currency",
			Types: []FieldType{FieldTypeCurrency},
			Match: IsCurrency,
		},
		{
			Name: "number",
			Types: []FieldType{
				FieldTypeNumber, FieldTypeAge, FieldTypePolicyNumber, FieldTypeClaimNumber,
				FieldTypeCertificateNumber, FieldTypeBankAccount, FieldTypeISSSTE, FieldTypeProfessionalLicense,
			},
			Match: IsNumber,
		},
	}
}

// dedicatedValidators pairs field types with the check their values must pass
// to earn the validator bonus
var dedicatedValidators = map[FieldType]func(string) bool{
	FieldTypeRFC:                 IsRFC,
	FieldTypeCURP:                IsCURP,
	FieldTypeNSS:                 IsNSS,
	FieldTypeIMSS:                IsNSS,
	FieldTypeDiagnosis:           IsCIE10,
	FieldTypeCLABE:               IsCLABE,
	FieldTypeCreditCard:          IsCreditCard,
	FieldTypeUUID:                IsUUID,
	FieldTypePostalCode:          IsPostalCode,
	FieldTypeDate:                IsDate,
	FieldTypeBirthDate:           IsDate,
	FieldTypeEmail:               IsEmail,
	FieldTypePhone:               IsPhone,
	FieldTypeCurrency:            IsCurrency,
	FieldTypeNumber:              IsNumber,
	FieldTypeProfessionalLicense: IsProfessionalLicense,
}

// DedicatedValidator returns the value check for fieldType, if it has one
func DedicatedValidator(fieldType FieldType) (func(string) bool, bool) {
	v, ok := dedicatedValidators[fieldType]
	return v, ok
}
