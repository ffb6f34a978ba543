package pdfsource

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

const (
	flagPushButton = 1 << 16 // Ff bit 17

	// maxFieldDepth bounds the Kids recursion on malformed field trees
	maxFieldDepth = 32

	// SignedValue is the value reported for a signature field that carries a signature
	SignedValue = "[signed]"
)

// AcroFormSource reads interactive form fields with pdfcpu. Field values are
// exact, so detections carry confidence 1.
type AcroFormSource struct {
	logger logrus.FieldLogger
}

// NewAcroFormSource creates an AcroForm reader
func NewAcroFormSource(logger logrus.FieldLogger) *AcroFormSource {
	if logger == nil {
		logger = discardLogger()
	}
	return &AcroFormSource{logger: logger}
}

// ExtractFromFile returns one detection per terminal form field
func (s *AcroFormSource) ExtractFromFile(filePath string) ([]fields.RawDetection, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	return s.ExtractFromReader(file)
}

// ExtractFromReader returns one detection per terminal form field
func (s *AcroFormSource) ExtractFromReader(reader io.ReadSeeker) ([]fields.RawDetection, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(reader, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	return s.extractFromContext(ctx)
}

// fieldNode carries the attributes a field inherits from its ancestors
type fieldNode struct {
	name  string
	ft    string
	da    string
	flags int
}

type acroWalker struct {
	ctx    *model.Context
	pages  *pageMap
	logger logrus.FieldLogger
	out    []fields.RawDetection
}

func (s *AcroFormSource) extractFromContext(ctx *model.Context) ([]fields.RawDetection, error) {
	detections := []fields.RawDetection{}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		s.logger.Debug("No AcroForm dictionary found in document")
		return detections, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return detections, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		s.logger.Debug("No Fields array found in AcroForm")
		return detections, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	// The document-wide DA is the fallback font for every field
	root := fieldNode{}
	if daObj, found := acroFormDict.Find("DA"); found {
		if da, err := ctx.DereferenceStringOrHexLiteral(daObj, model.V10, nil); err == nil {
			root.da = da
		}
	}

	w := &acroWalker{
		ctx:    ctx,
		pages:  newPageMap(ctx, s.logger),
		logger: s.logger,
		out:    detections,
	}
	for i, fieldRef := range fieldsArray {
		if err := w.walk(fieldRef, root, 0); err != nil {
			s.logger.WithError(err).WithField("field", i).Debug("Skipping form field")
		}
	}

	s.logger.WithField("fields", len(w.out)).Debug("AcroForm extraction complete")
	return w.out, nil
}

// walk descends the field tree. Kids carrying a T entry are child fields;
// other kids are widget annotations of the current field.
func (w *acroWalker) walk(obj types.Object, parent fieldNode, depth int) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("field tree deeper than %d levels", maxFieldDepth)
	}

	dict, err := w.ctx.DereferenceDict(obj)
	if err != nil {
		return fmt.Errorf("failed to dereference field: %w", err)
	}
	if dict == nil {
		return nil
	}

	node := w.inherit(dict, parent)

	var widgets []types.Object
	if kidsObj, found := dict.Find("Kids"); found {
		kids, err := w.ctx.DereferenceArray(kidsObj)
		if err != nil {
			return fmt.Errorf("failed to dereference Kids: %w", err)
		}
		for _, kid := range kids {
			kidDict, err := w.ctx.DereferenceDict(kid)
			if err != nil || kidDict == nil {
				continue
			}
			if _, isField := kidDict.Find("T"); isField {
				if err := w.walk(kid, node, depth+1); err != nil {
					w.logger.WithError(err).WithField("parent", node.name).Debug("Skipping child field")
				}
				continue
			}
			widgets = append(widgets, kid)
		}
		if len(widgets) == 0 {
			// Pure container of child fields
			if _, hasRect := dict.Find("Rect"); !hasRect {
				return nil
			}
		}
	}

	if _, hasRect := dict.Find("Rect"); hasRect || len(widgets) == 0 {
		widgets = append([]types.Object{obj}, widgets...)
	}

	det, ok := w.detection(dict, node, widgets[0])
	if ok {
		w.out = append(w.out, det)
	}
	return nil
}

func (w *acroWalker) inherit(dict types.Dict, parent fieldNode) fieldNode {
	node := parent

	if nameObj, found := dict.Find("T"); found {
		if name, err := w.ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && name != "" {
			if parent.name != "" {
				node.name = parent.name + "." + name
			} else {
				node.name = name
			}
		}
	}
	if ftObj, found := dict.Find("FT"); found {
		if ft, err := w.ctx.DereferenceName(ftObj, model.V10, nil); err == nil {
			node.ft = string(ft)
		}
	}
	if daObj, found := dict.Find("DA"); found {
		if da, err := w.ctx.DereferenceStringOrHexLiteral(daObj, model.V10, nil); err == nil {
			node.da = da
		}
	}
	if flagsObj, found := dict.Find("Ff"); found {
		if flags, err := w.ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			node.flags = int(*flags)
		}
	}
	return node
}

// detection converts a terminal field; push buttons carry no data and are skipped
func (w *acroWalker) detection(dict types.Dict, node fieldNode, widget types.Object) (fields.RawDetection, bool) {
	det := fields.RawDetection{
		Label:      w.label(dict, node),
		Confidence: 1,
		FontName:   fontFromDA(node.da),
	}

	valueObj, hasValue := dict.Find("V")

	switch node.ft {
	case "Btn":
		if node.flags&flagPushButton != 0 {
			return det, false
		}
		det.SourceType = fields.SourceCheckbox
		state := "unselected"
		if hasValue {
			if name, err := w.ctx.DereferenceName(valueObj, model.V10, nil); err == nil && name != "" && name != "Off" {
				state = "selected"
			}
		}
		det.Geometry = &fields.Geometry{State: state}
	case "Tx", "Ch":
		det.SourceType = fields.SourceDocumentField
		value := ""
		if hasValue {
			value = w.textValue(valueObj)
		}
		det.Value = &value
		det.Geometry = &fields.Geometry{}
	case "Sig":
		det.SourceType = fields.SourceDocumentField
		value := ""
		if hasValue {
			value = SignedValue
		}
		det.Value = &value
		det.Geometry = &fields.Geometry{}
	default:
		return det, false
	}

	page, box := w.placement(widget)
	det.Page = page
	if box != nil {
		det.Geometry.BoundingBox = box
	}
	return det, true
}

// label prefers the user-facing TU name over the internal field name
func (w *acroWalker) label(dict types.Dict, node fieldNode) string {
	if tuObj, found := dict.Find("TU"); found {
		if tu, err := w.ctx.DereferenceStringOrHexLiteral(tuObj, model.V10, nil); err == nil && strings.TrimSpace(tu) != "" {
			return tu
		}
	}
	if i := strings.LastIndex(node.name, "."); i >= 0 {
		return node.name[i+1:]
	}
	return node.name
}

// textValue reads string values and joins multi-select choice values
func (w *acroWalker) textValue(obj types.Object) string {
	if val, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil {
		return val
	}
	if arr, err := w.ctx.DereferenceArray(obj); err == nil {
		var values []string
		for _, item := range arr {
			if str, err := w.ctx.DereferenceStringOrHexLiteral(item, model.V10, nil); err == nil {
				values = append(values, str)
			}
		}
		return strings.Join(values, ", ")
	}
	return ""
}

// placement returns the widget's page and its box in top-left page coordinates
func (w *acroWalker) placement(widget types.Object) (int, *layout.BoundingBox) {
	dict, err := w.ctx.DereferenceDict(widget)
	if err != nil || dict == nil {
		return 1, nil
	}

	page := w.pages.pageOf(widget, dict)

	rectObj, found := dict.Find("Rect")
	if !found {
		return page, nil
	}
	rect, err := w.ctx.DereferenceArray(rectObj)
	if err != nil || len(rect) != 4 {
		return page, nil
	}

	coords := make([]float64, 4)
	for i, coord := range rect {
		if f, err := w.ctx.DereferenceNumber(coord); err == nil {
			coords[i] = f
		}
	}

	llx, urx := min(coords[0], coords[2]), max(coords[0], coords[2])
	lly, ury := min(coords[1], coords[3]), max(coords[1], coords[3])

	return page, &layout.BoundingBox{
		X:      llx,
		Y:      w.pages.height(page) - ury,
		Width:  urx - llx,
		Height: ury - lly,
	}
}

// fontFromDA extracts the font resource name from a default appearance
// string such as "/Helv 10 Tf 0 g"
func fontFromDA(da string) string {
	parts := strings.Fields(da)
	for i := 2; i < len(parts); i++ {
		if parts[i] == "Tf" {
			return strings.TrimPrefix(parts[i-2], "/")
		}
	}
	return ""
}

// pageMap resolves widget annotations to page numbers and page heights
type pageMap struct {
	byAnnot   map[int]int
	byPageObj map[int]int
	heights   []float64
}

const defaultPageHeight = 792 // US Letter

func newPageMap(ctx *model.Context, logger logrus.FieldLogger) *pageMap {
	m := &pageMap{
		byAnnot:   make(map[int]int),
		byPageObj: make(map[int]int),
	}

	if dims, err := ctx.PageDims(); err == nil {
		for _, d := range dims {
			m.heights = append(m.heights, d.Height)
		}
	} else {
		logger.WithError(err).Debug("Page dimensions unavailable, assuming US Letter")
	}

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, pageRef, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}
		if pageRef != nil {
			m.byPageObj[pageRef.ObjectNumber.Value()] = pageNr
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}
		for _, a := range annots {
			if ref, ok := a.(types.IndirectRef); ok {
				m.byAnnot[ref.ObjectNumber.Value()] = pageNr
			}
		}
	}
	return m
}

// pageOf tries the widget's /P entry, then page /Annots membership, then page 1
func (m *pageMap) pageOf(widget types.Object, dict types.Dict) int {
	if pObj, found := dict.Find("P"); found {
		if ref, ok := pObj.(types.IndirectRef); ok {
			if page, ok := m.byPageObj[ref.ObjectNumber.Value()]; ok {
				return page
			}
		}
	}
	if ref, ok := widget.(types.IndirectRef); ok {
		if page, ok := m.byAnnot[ref.ObjectNumber.Value()]; ok {
			return page
		}
	}
	return 1
}

func (m *pageMap) height(page int) float64 {
	if page >= 1 && page <= len(m.heights) && m.heights[page-1] > 0 {
		return m.heights[page-1]
	}
	return defaultPageHeight
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
