package contract

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-form-pipeline/internal/pipeline"
	"github.com/a3tai/mcp-form-pipeline/internal/validation"
)

// Format selects how results are written
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format: %s (must be one of: text, json, yaml)", s)
	}
}

// Encode writes v as indented JSON or YAML. YAML keys follow the JSON tags.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		return encodeYAML(w, v)
	default:
		return fmt.Errorf("format %s cannot encode %T", format, v)
	}
}

// EncodeResult writes a pipeline result in any format
func EncodeResult(w io.Writer, format Format, res *pipeline.Result) error {
	if format == FormatText {
		_, err := io.WriteString(w, FormatResultText(res))
		return err
	}
	return Encode(w, format, res)
}

// EncodeReport writes a validation report in any format
func EncodeReport(w io.Writer, format Format, report validation.DocumentValidationReport) error {
	if format == FormatText {
		_, err := io.WriteString(w, FormatReportText(report))
		return err
	}
	return Encode(w, format, report)
}

// encodeYAML round-trips through JSON so YAML output uses the same keys and
// field order as the JSON output
func encodeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("failed to convert result to YAML: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&node)
}

// blockStyle clears the flow and quoting styles the JSON parse leaves behind
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// FormatResultText renders a pipeline result for terminals and tool replies
func FormatResultText(res *pipeline.Result) string {
	var b strings.Builder

	if res.DocumentID != "" {
		fmt.Fprintf(&b, "Document: %s\n", res.DocumentID)
	}
	fmt.Fprintf(&b, "Detections: %d, duplicates removed: %d, conflicts: %d, rejected: %d (%s policy)\n",
		res.Stats.Detections, res.Stats.Duplicates, res.Stats.Conflicts, res.Stats.Rejected, res.FilterPolicy)
	fmt.Fprintf(&b, "Fields: %d\n", res.Stats.Final)

	for i, f := range res.Fields {
		fmt.Fprintf(&b, "\n%d. %s [%s] page %d\n", i+1, f.DisplayName, f.FieldType, f.Page)
		fmt.Fprintf(&b, "   Value: %s\n", f.Value)
		fmt.Fprintf(&b, "   Confidence: %.2f\n", f.Confidence)
		fmt.Fprintf(&b, "   Capacity: %d chars (%d per line x %d lines, %.0fpt %s, confidence %.2f)\n",
			f.Capacity.MaxCharacters, f.Capacity.CharsPerLine, f.Capacity.MaxLines,
			f.Capacity.FontSizePt, f.Capacity.FontFamily, f.Capacity.CapacityConfidence)
		if len(f.Capacity.ConflictsWith) > 0 {
			fmt.Fprintf(&b, "   Crowded by: %s\n", strings.Join(f.Capacity.ConflictsWith, ", "))
		}
	}

	if len(res.Rejected) > 0 {
		b.WriteString("\nRejected:\n")
		for _, r := range res.Rejected {
			fmt.Fprintf(&b, "  - %s [%s] %q: %s\n", r.FieldID, r.FieldType, r.Value, r.Reason)
		}
	}

	b.WriteString("\n")
	b.WriteString(FormatReportText(res.Report))
	return b.String()
}

// FormatReportText renders a validation report
func FormatReportText(report validation.DocumentValidationReport) string {
	var b strings.Builder
	s := report.Summary

	status := "VALID"
	if !s.OverallValid {
		status = "INVALID"
	}
	fmt.Fprintf(&b, "Validation: %s\n", status)
	fmt.Fprintf(&b, "Valid fields: %d/%d (%.1f%%), errors: %d, warnings: %d, average confidence: %.2f\n",
		s.ValidFields, s.TotalFields, s.CompletionPercentage, s.ErrorCount, s.WarningCount, s.AverageConfidence)

	for _, fv := range report.Fields {
		for _, r := range fv.Results {
			if r.IsValid {
				continue
			}
			fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", r.Severity, fv.DisplayName, r.RuleName, r.Message)
		}
	}
	for _, issue := range report.Issues {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", issue.Severity, issue.Type, issue.Message)
	}

	if len(report.Suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, s := range report.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return b.String()
}
