package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	FormAnalyzeDetectionsDescription = `Turn raw layout detections from a form into typed, deduplicated and validated fields.

**When to use:** An OCR or layout service has already read a scanned insurance or medical form and you have its detections (key-value pairs, table cells, checkboxes, paragraphs).

**Why it's useful:** Removes duplicate reads of the same box, recognises Mexican identifiers (RFC, CURP, NSS, CLABE), estimates how many characters fit in each box and flags inconsistent documents.

**Examples:**
• Claim intake: "Analyze these detections from the reimbursement form and tell me which fields failed validation"
• Form filling: "How many characters fit in the 'Diagnóstico' box of this detection payload?"
• Data review: "Check that the RFC and CURP in this payload encode the same birth date"

**Input:** payload is JSON, either {"documentId": "...", "detections": [...]} or a bare detection array. Each detection has page, sourceType (keyValuePair, table, checkbox, paragraph, documentField), label, value, confidence and geometry.

**Best practices:** Use format=json when the result feeds another tool, use policy=basic for noisy scans where the strict filter drops too much.`

	FormAnalyzePDFDescription = `Read a fillable or digital PDF form and run the field pipeline on its AcroForm fields and text lines.

**When to use:** You have the PDF itself rather than OCR output, and the form is digital (AcroForm widgets or a selectable text layer).

**Why it's useful:** Builds detections straight from the file: filled form fields with their font hints, plus "Label: value" lines from the text layer, then classifies, deduplicates, sizes and validates them.

**Examples:**
• Pre-filled forms: "Analyze solicitud-reembolso.pdf and list the identifiers it contains"
• Template sizing: "Which boxes of aviso-accidente.pdf are too small for a full CURP?"
• Quality gate: "Validate informe-medico.pdf before sending it to the insurer"

**Common workflows:**
1. Digital form: form_analyze_pdf → review rejected fields → fix → re-run
2. Scanned form: run OCR elsewhere → form_analyze_detections
3. Manual corrections: form_analyze_pdf → edit values → form_validate_fields

**Best practices:** Scanned PDFs have no text layer; use form_analyze_detections with OCR output for those. Relative paths resolve against the server directory.`

	FormValidateFieldsDescription = `Validate already typed field values with the Mexican domain rules.

**When to use:** Field types are known and you only need format, checksum and cross-field checks, e.g. after a person corrected values by hand.

**Why it's useful:** Applies RFC, CURP, NSS, CLABE checksum, CIE-10, postal code, date, phone and currency rules, checks that RFC and CURP agree on the birth date and that the derived age is plausible.

**Examples:**
• "Is GARC850101AB1 a well-formed RFC?"
• "Validate this corrected list of fields before submitting the claim"

**Input:** fields is a JSON array of {"id", "field_type", "value", "confidence", "display_name"}; field_type and value are required.

**Best practices:** Include patient_name and birth_date fields, they are required at document level.`

	FormServerInfoDescription = `Get server information, the active pipeline settings and available tools.

**When to use:** To discover the tools, check which quality policy and thresholds are active, or confirm the base directory for PDF paths.

**Best practices:** Call this first when a result looks stricter or looser than expected.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"form_analyze_detections": FormAnalyzeDetectionsDescription,
	"form_analyze_pdf":        FormAnalyzePDFDescription,
	"form_validate_fields":    FormValidateFieldsDescription,
	"form_server_info":        FormServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in alphabetical order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
