package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/a3tai/mcp-form-pipeline/internal/config"
	"github.com/a3tai/mcp-form-pipeline/internal/contract"
	"github.com/a3tai/mcp-form-pipeline/internal/pdfsource"
	"github.com/a3tai/mcp-form-pipeline/internal/pipeline"
)

var version = "dev" // This will be set by build flags

type options struct {
	format    string
	acroForm  bool
	textLayer bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "form_extract_fields [flags] <file>...",
		Short: "Extract, size and validate form fields from detection payloads or PDF forms",
		Long: `form_extract_fields runs the form field pipeline on each input file and
prints the resulting fields and validation report.

Inputs:
  *.json  detection payload: {"documentId", "detections": [...]} or a bare array
  *.pdf   digital PDF; AcroForm fields and "Label: value" text lines become detections

Several files are processed concurrently (see --max-concurrency); results keep
the argument order.`,
		Example: `  form_extract_fields detections.json
  form_extract_fields --policy basic --format yaml solicitud.pdf
  form_extract_fields --format json --no-text-layer a.pdf b.pdf`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&opts.acroForm, "acroform", true, "Read AcroForm fields from PDF inputs")
	cmd.Flags().BoolVar(&opts.textLayer, "text-layer", true, "Read the text layer of PDF inputs")
	cmd.Flags().Bool("no-text-layer", false, "Shorthand for --text-layer=false")
	config.AddPipelineFlags(cmd.Flags())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "form_extract_fields %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Go: %s\n", runtime.Version())
		},
	})

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *options, args []string) error {
	if off, _ := cmd.Flags().GetBool("no-text-layer"); off {
		opts.textLayer = false
	}

	format, err := contract.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromFlagSet(cmd.Flags())
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	p, err := pipeline.New(cfg.PipelineConfig(), pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	extractor := pdfsource.NewExtractor(cfg.MaxFileSize, logger)
	sourceOpts := pdfsource.Options{AcroForm: opts.acroForm, TextLayer: opts.textLayer}

	docs := make([]pipeline.Document, 0, len(args))
	for _, path := range args {
		doc, err := loadDocument(ctx, path, extractor, sourceOpts)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		doc.Source = path
		docs = append(docs, *doc)
	}

	results, err := p.RunBatch(ctx, docs)
	if err != nil {
		return err
	}

	return writeResults(cmd.OutOrStdout(), format, results)
}

// loadDocument reads a detection payload or extracts detections from a PDF.
// Payloads without a documentId are named after the file.
func loadDocument(ctx context.Context, path string, extractor *pdfsource.Extractor, opts pdfsource.Options) (*pipeline.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractor.Extract(ctx, path, opts)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		doc, err := contract.DecodeDocument(f)
		if err != nil {
			return nil, err
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported input type %q (expected .json or .pdf)", filepath.Ext(path))
	}
}

// writeResults prints one result as is and several as a list; text results
// are separated by a blank line
func writeResults(w io.Writer, format contract.Format, results []*pipeline.Result) error {
	if len(results) == 1 {
		return contract.EncodeResult(w, format, results[0])
	}
	if format != contract.FormatText {
		return contract.Encode(w, format, results)
	}

	for i, res := range results {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := contract.EncodeResult(w, format, res); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
