// Package pdfsource turns local PDF files into raw layout detections: filled
// AcroForm fields through pdfcpu and positioned text lines through
// ledongthuc/pdf.
package pdfsource

import (
	"fmt"
	"os"
	"strings"
)

// FileChecker handles PDF file validation before any parser touches it
type FileChecker struct {
	maxFileSize int64
}

// NewFileChecker creates a checker that rejects files above maxFileSize bytes
func NewFileChecker(maxFileSize int64) *FileChecker {
	return &FileChecker{
		maxFileSize: maxFileSize,
	}
}

// Check verifies the path names a readable, non-empty .pdf file within the size limit
func (c *FileChecker) Check(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	return c.CheckInfo(filePath, fileInfo)
}

// CheckInfo performs the same checks on an already stat'ed file
func (c *FileChecker) CheckInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > c.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), c.maxFileSize)
	}

	return nil
}
