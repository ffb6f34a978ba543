package pdfsource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
)

// buildPDF serialises numbered objects (1-based, in order) with a correct
// xref table so both parsers read it without repair
func buildPDF(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func contentStream(ops string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(ops), ops)
}

// writeFormPDF writes a two page claim form: page 1 is US Letter with a
// filled RFC text field, a nested patient name field and a "Folio: 12345"
// text line; page 2 is 600pt tall with a checked checkbox and a free text line
func writeFormPDF(t *testing.T) string {
	t.Helper()

	widths := strings.TrimSpace(strings.Repeat("600 ", 95))
	objects := []string{
		// 1 catalog
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [6 0 R 7 0 R 8 0 R] /DA (/Helv 0 Tf 0 g) >> >>",
		// 2 page tree
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		// 3 page 1
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> " +
			"/Contents 9 0 R /Annots [6 0 R 11 0 R] >>",
		// 4 page 2
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 600] /Resources << /Font << /F1 5 0 R >> >> " +
			"/Contents 10 0 R /Annots [7 0 R] >>",
		// 5 font
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
			"/FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
		// 6 text field merged with its widget, placed through /P
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (rfc_contribuyente) /TU (RFC) /V (GARC850101AB1) " +
			"/DA (/Helv 10 Tf 0 g) /Rect [100 600 300 624] /P 3 0 R >>",
		// 7 checked checkbox on page 2, font from the form-wide DA
		"<< /Type /Annot /Subtype /Widget /FT /Btn /T (acepta) /V /Yes /AS /Yes /Rect [50 500 62 512] /P 4 0 R >>",
		// 8 container field
		"<< /T (paciente) /Kids [11 0 R] >>",
		// 9 page 1 text
		contentStream("BT /F1 12 Tf 72 700 Td (Folio: 12345) Tj ET"),
		// 10 page 2 text
		contentStream("BT /F1 10 Tf 72 450 Td (Observaciones sin etiqueta) Tj ET"),
		// 11 child field, placed only through page 1 /Annots
		"<< /Type /Annot /Subtype /Widget /Parent 8 0 R /FT /Tx /T (nombre) /V (Ana Garcia) /Rect [100 400 300 420] >>",
	}

	path := filepath.Join(t.TempDir(), "solicitud.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF(objects), 0o600))
	return path
}

func TestAcroFormSource_ExtractFromFile(t *testing.T) {
	dets, err := NewAcroFormSource(nil).ExtractFromFile(writeFormPDF(t))
	require.NoError(t, err)
	require.Len(t, dets, 3)

	rfc := dets[0]
	assert.Equal(t, fields.SourceDocumentField, rfc.SourceType)
	assert.Equal(t, "RFC", rfc.Label)
	require.NotNil(t, rfc.Value)
	assert.Equal(t, "GARC850101AB1", *rfc.Value)
	assert.Equal(t, 1, rfc.Page)
	assert.Equal(t, 1.0, rfc.Confidence)
	assert.Equal(t, "Helv", rfc.FontName)
	require.NotNil(t, rfc.Geometry.BoundingBox)
	assert.InDelta(t, 100.0, rfc.Geometry.BoundingBox.X, 1e-9)
	// 792 - 624
	assert.InDelta(t, 168.0, rfc.Geometry.BoundingBox.Y, 1e-9)
	assert.InDelta(t, 200.0, rfc.Geometry.BoundingBox.Width, 1e-9)
	assert.InDelta(t, 24.0, rfc.Geometry.BoundingBox.Height, 1e-9)

	box := dets[1]
	assert.Equal(t, fields.SourceCheckbox, box.SourceType)
	assert.Equal(t, "acepta", box.Label)
	assert.Nil(t, box.Value)
	assert.Equal(t, "selected", box.Geometry.State)
	assert.Equal(t, 2, box.Page)
	assert.Equal(t, "Helv", box.FontName)
	require.NotNil(t, box.Geometry.BoundingBox)
	// flipped against the 600pt page 2, not US Letter
	assert.InDelta(t, 88.0, box.Geometry.BoundingBox.Y, 1e-9)

	name := dets[2]
	assert.Equal(t, fields.SourceDocumentField, name.SourceType)
	assert.Equal(t, "nombre", name.Label)
	require.NotNil(t, name.Value)
	assert.Equal(t, "Ana Garcia", *name.Value)
	assert.Equal(t, 1, name.Page)
	assert.InDelta(t, 372.0, name.Geometry.BoundingBox.Y, 1e-9)
}

func TestTextLayerSource_ExtractFromFile(t *testing.T) {
	dets, err := NewTextLayerSource(nil).ExtractFromFile(context.Background(), writeFormPDF(t))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	folio := dets[0]
	assert.Equal(t, fields.SourceKeyValuePair, folio.SourceType)
	assert.Equal(t, "Folio", folio.Label)
	require.NotNil(t, folio.Value)
	assert.Equal(t, "12345", *folio.Value)
	assert.Equal(t, 1, folio.Page)
	assert.Equal(t, "Helvetica", folio.FontName)
	require.NotNil(t, folio.Geometry.BoundingBox)
	assert.InDelta(t, 72.0, folio.Geometry.BoundingBox.X, 1e-6)
	// 792 - (700 + 12)
	assert.InDelta(t, 80.0, folio.Geometry.BoundingBox.Y, 1e-6)
	assert.InDelta(t, 12.0, folio.Geometry.BoundingBox.Height, 1e-6)
	// 12 glyphs of 600/1000 em at 12pt
	assert.InDelta(t, 86.4, folio.Geometry.BoundingBox.Width, 1e-6)

	notes := dets[1]
	assert.Equal(t, fields.SourceParagraph, notes.SourceType)
	assert.Equal(t, "Observaciones sin etiqueta", *notes.Value)
	assert.Equal(t, 2, notes.Page)
	// 600 - (450 + 10)
	assert.InDelta(t, 140.0, notes.Geometry.BoundingBox.Y, 1e-6)
}

func TestTextLayerSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTextLayerSource(nil).ExtractFromFile(ctx, writeFormPDF(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_ExtractFormPDF(t *testing.T) {
	path := writeFormPDF(t)
	e := NewExtractor(1<<20, nil)

	doc, err := e.Extract(context.Background(), path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "solicitud", doc.ID)
	require.Len(t, doc.Detections, 5)
	// form fields come before text lines
	assert.Equal(t, fields.SourceDocumentField, doc.Detections[0].SourceType)
	assert.Equal(t, fields.SourceKeyValuePair, doc.Detections[3].SourceType)

	onlyForm, err := e.Extract(context.Background(), path, Options{AcroForm: true})
	require.NoError(t, err)
	assert.Len(t, onlyForm.Detections, 3)

	candidates, err := fields.NewNormalizer().Normalize(doc.Detections)
	require.NoError(t, err)
	require.Len(t, candidates, 5)
	assert.Equal(t, "selected", candidates[1].Value)
}
