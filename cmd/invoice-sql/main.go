package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-sql/internal/extraction"
	"github.com/zombor/invoice-sql/internal/invoice"
	"github.com/zombor/invoice-sql/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	scannerType string

	geminiKey   string
	geminiModel string
	openAIKey   string
	openAIModel string
	openAIURL   string
	ollamaURL   string
	ollamaModel string
	azureURL    string
	azureKey    string
	azureLang   string

	tesseract scanning.TesseractConfig
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	flags := ff.NewFlagSet("invoice-sql")
	var (
		port        = flags.IntLong("port", 8080, "HTTP server port")
		dbPath      = flags.StringLong("db", "invoice-sql.db", "Database file path")
		storagePath = flags.StringLong("storage", "./conversions", "Storage directory path")
		authUser    = flags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = flags.StringLong("auth-pass", "", "Basic auth password (optional)")
		outDir      = flags.StringLong("out", ".", "Output directory for scripts in batch mode")
		writeXLSX   = flags.BoolLong("xlsx", "Also write an .xlsx workbook per document in batch mode")
		verify      = flags.BoolLong("verify", "Load each script into an in-memory SQLite database in batch mode")
		labelsPath  = flags.StringLong("labels", "", "YAML file replacing the built-in field and column labels")
		logLevel    = flags.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat   = flags.StringLong("log-format", "text", "Log format: text or json")
		showVersion = flags.BoolLong("version", "Show version information")

		scannerType = flags.StringLong("scanner", "tesseract", "Scanner type: tesseract, gemini, openai, ollama or azure")
		geminiKey   = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = flags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		openAIKey   = flags.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openAIModel = flags.StringLong("openai-model", "gpt-4o", "OpenAI vision model name")
		openAIURL   = flags.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		ollamaURL   = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = flags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		azureURL    = flags.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey    = flags.StringLong("azure-key", "", "Azure Computer Vision key (or set AZURE_VISION_KEY env var)")
		azureLang   = flags.StringLong("azure-lang", "es", "Azure OCR language")

		tesseractBin = flags.StringLong("tesseract", "tesseract", "Tesseract executable")
		tessdata     = flags.StringLong("tessdata", "", "Tesseract tessdata directory (optional)")
		languages    = flags.StringLong("lang", "eng,spa", "Comma-separated OCR languages, one pass each")
		psm          = flags.IntLong("psm", 6, "Tesseract page segmentation mode (0 keeps the default)")
		oem          = flags.IntLong("oem", 0, "Tesseract engine mode (0 keeps the default)")
		dpi          = flags.IntLong("dpi", 300, "PDF render resolution")
		maxPages     = flags.IntLong("max-pages", 10, "Maximum PDF pages to recognize")
		noEnhance    = flags.BoolLong("no-enhance", "Skip grayscale, contrast and sharpen before OCR")
		ocrTimeout   = flags.DurationLong("ocr-timeout", 2*time.Minute, "Timeout per OCR pass")
		minWords     = flags.IntLong("min-text-words", 10, "Words a PDF text layer needs to skip OCR (negative disables)")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_SQL"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := setupLogging(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	extractor, err := newExtractor(*labelsPath)
	if err != nil {
		slog.Error("Failed to load labels", "path", *labelsPath, "error", err)
		os.Exit(1)
	}

	cfg := config{
		scannerType: *scannerType,
		geminiKey:   envOr(*geminiKey, "GEMINI_API_KEY"),
		geminiModel: *geminiModel,
		openAIKey:   envOr(*openAIKey, "OPENAI_API_KEY"),
		openAIModel: *openAIModel,
		openAIURL:   *openAIURL,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
		azureURL:    *azureURL,
		azureKey:    envOr(*azureKey, "AZURE_VISION_KEY"),
		azureLang:   *azureLang,
		tesseract: scanning.TesseractConfig{
			Binary:       *tesseractBin,
			TessdataDir:  *tessdata,
			Languages:    splitList(*languages),
			PSM:          *psm,
			OEM:          *oem,
			DPI:          float64(*dpi),
			MaxPages:     *maxPages,
			Enhance:      !*noEnhance,
			Timeout:      *ocrTimeout,
			MinTextWords: *minWords,
		},
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", cfg.scannerType, "error", err)
		os.Exit(1)
	}

	// File arguments run a one-off batch instead of the server
	if files := flags.GetArgs(); len(files) > 0 {
		b := &batch{
			scanner:   scanner,
			extractor: extractor,
			outDir:    *outDir,
			xlsx:      *writeXLSX,
			verify:    *verify,
			stdout:    os.Stdout,
		}
		failed := b.run(files)
		scanner.Close()
		if failed > 0 {
			slog.Error("Some documents failed", "failed", failed, "total", len(files))
			os.Exit(1)
		}
		return
	}
	defer scanner.Close()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := invoice.NewService(db, scanner, store, extractor)

	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "scanner", cfg.scannerType)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

func newExtractor(labelsPath string) (*extraction.Extractor, error) {
	if labelsPath == "" {
		return extraction.DefaultExtractor(), nil
	}

	labels, err := extraction.LoadLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	rules, err := labels.Compile()
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded labels", "path", labelsPath)
	return extraction.NewExtractor(rules), nil
}

func newScanner(cfg config) (scanning.Scanner, error) {
	switch cfg.scannerType {
	case "tesseract":
		slog.Info("Initializing Tesseract scanner...", "binary", cfg.tesseract.Binary, "languages", cfg.tesseract.Languages)
		return scanning.NewTesseract(cfg.tesseract)
	case "gemini":
		if cfg.geminiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(cfg.geminiKey, cfg.geminiModel)
	case "openai":
		if cfg.openAIKey == "" {
			return nil, errors.New("openai API key is required: set --openai-key or OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI scanner...", "model", cfg.openAIModel)
		return scanning.NewOpenAI(cfg.openAIKey, cfg.openAIModel, cfg.openAIURL)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	case "azure":
		if cfg.azureURL == "" || cfg.azureKey == "" {
			return nil, errors.New("azure endpoint and key are required: set --azure-endpoint and --azure-key")
		}
		slog.Info("Initializing Azure scanner...", "endpoint", cfg.azureURL, "language", cfg.azureLang)
		return scanning.NewAzure(cfg.azureURL, cfg.azureKey, cfg.azureLang)
	default:
		return nil, fmt.Errorf("invalid scanner type %q (valid: tesseract, gemini, openai, ollama, azure)", cfg.scannerType)
	}
}

// envOr returns v, or the named environment variable when v is empty
func envOr(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
