package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-sql/internal/export"
	"github.com/zombor/invoice-sql/internal/extraction"
	"github.com/zombor/invoice-sql/internal/scanning"
	"github.com/zombor/invoice-sql/internal/sqlgen"
)

// IDGenerator generates unique IDs for conversions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the document to SQL pipeline and keeps its results
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	extractor   *extraction.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor) *Service {
	return NewServiceWithDeps(db, scanner, storage, extractor, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	if extractor == nil {
		extractor = extraction.DefaultExtractor()
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRuns.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "factura"
	}

	ext = unsafeChars.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// scriptName is the stored name of a conversion's SQL script
func scriptName(id, filename string) string {
	clean := sanitizeFilename(filename)
	return fmt.Sprintf("%s_%s.sql", id, strings.TrimSuffix(clean, filepath.Ext(clean)))
}

// ConvertDocument recognizes the text of an uploaded image or PDF and
// converts it. A recognition failure stops the pipeline; nothing is stored.
func (s *Service) ConvertDocument(filename string, data []byte, contentType string) (*Conversion, error) {
	if s.scanner == nil {
		return nil, fmt.Errorf("%w: no scanner configured", ErrScanFailed)
	}

	doc, err := s.scanner.ScanText(data, contentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: no text found in %s", ErrScanFailed, filename)
	}

	id := s.idGenerator.Generate()
	sourceFile, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	c := &Conversion{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Method:      doc.Method,
		Language:    doc.Language,
		Pages:       doc.Pages,
		Text:        doc.Text,
		SourceFile:  sourceFile,
	}
	if err := s.convert(c); err != nil {
		s.storage.Delete(sourceFile)
		return nil, err
	}
	return c, nil
}

// ConvertText converts text that was recognized elsewhere
func (s *Service) ConvertText(filename, text string) (*Conversion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if filename == "" {
		filename = "factura.txt"
	}

	c := &Conversion{
		ID:          s.idGenerator.Generate(),
		Filename:    filename,
		ContentType: "text/plain",
		Method:      "text",
		Pages:       1,
		Text:        text,
	}
	if err := s.convert(c); err != nil {
		return nil, err
	}
	return c, nil
}

// convert extracts the invoice from c.Text, stores the script and saves c
func (s *Service) convert(c *Conversion) error {
	c.CreatedAt = s.timeSource.Now()

	res := s.extractor.Extract(c.Text)
	c.Record = res.Record
	c.Items = res.Items
	c.Warnings = res.Warnings

	for _, w := range res.Warnings {
		slog.Warn("Extraction warning", "conversion_id", c.ID, "filename", c.Filename, "warning", w)
	}

	script := sqlgen.Generate(res.Record, res.Items)
	scriptFile, err := s.storage.Save(scriptName(c.ID, c.Filename), []byte(script.String()))
	if err != nil {
		return fmt.Errorf("saving script: %w", err)
	}
	c.ScriptFile = scriptFile

	if err := s.db.SaveConversion(c); err != nil {
		s.storage.Delete(scriptFile)
		return fmt.Errorf("saving conversion to database: %w", err)
	}

	slog.Info("Converted invoice",
		"conversion_id", c.ID,
		"filename", c.Filename,
		"method", c.Method,
		"factura_numero", c.Record.InvoiceNumber,
		"items", len(c.Items),
		"warnings", len(c.Warnings))
	return nil
}

// GetConversion retrieves a conversion by ID
func (s *Service) GetConversion(id string) (*Conversion, error) {
	c, err := s.db.GetConversion(id)
	if err != nil {
		return nil, fmt.Errorf("getting conversion: %w", err)
	}
	return c, nil
}

// ListConversions returns all conversions, newest first
func (s *Service) ListConversions() ([]*Conversion, error) {
	conversions, err := s.db.ListConversions()
	if err != nil {
		return nil, fmt.Errorf("listing conversions: %w", err)
	}
	return conversions, nil
}

// DeleteConversion removes a conversion and its files
func (s *Service) DeleteConversion(id string) error {
	c, err := s.db.GetConversion(id)
	if err != nil {
		return fmt.Errorf("getting conversion for deletion: %w", err)
	}

	for _, name := range []string{c.ScriptFile, c.SourceFile} {
		if name == "" {
			continue
		}
		if err := s.storage.Delete(name); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", name, "error", err)
		}
	}

	if err := s.db.DeleteConversion(id); err != nil {
		return fmt.Errorf("deleting conversion from database: %w", err)
	}
	return nil
}

// GetScript returns the stored SQL script of a conversion
func (s *Service) GetScript(id string) ([]byte, error) {
	c, err := s.db.GetConversion(id)
	if err != nil {
		return nil, fmt.Errorf("getting conversion: %w", err)
	}

	data, err := s.storage.Get(c.ScriptFile)
	if err != nil {
		return nil, fmt.Errorf("getting script: %w", err)
	}
	return data, nil
}

// GetSourceFile returns the uploaded document of a conversion
func (s *Service) GetSourceFile(id string) ([]byte, string, error) {
	c, err := s.db.GetConversion(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting conversion: %w", err)
	}
	if c.SourceFile == "" {
		return []byte(c.Text), "text/plain; charset=utf-8", nil
	}

	data, err := s.storage.Get(c.SourceFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting source file: %w", err)
	}
	return data, c.ContentType, nil
}

// GetWorkbook renders a conversion as an XLSX workbook
func (s *Service) GetWorkbook(id string) ([]byte, error) {
	c, err := s.db.GetConversion(id)
	if err != nil {
		return nil, fmt.Errorf("getting conversion: %w", err)
	}

	data, err := export.Workbook(c.Result())
	if err != nil {
		return nil, fmt.Errorf("building workbook: %w", err)
	}
	return data, nil
}

// VerifyConversion loads a conversion's script into an in-memory SQLite
// database built from the target schema
func (s *Service) VerifyConversion(ctx context.Context, id string) error {
	c, err := s.db.GetConversion(id)
	if err != nil {
		return fmt.Errorf("getting conversion: %w", err)
	}
	return sqlgen.Verify(ctx, sqlgen.Generate(c.Record, c.Items))
}
