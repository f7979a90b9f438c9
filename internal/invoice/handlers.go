package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/invoice-sql/internal/sqlgen"
)

const maxUploadSize = int64(50 << 20) // 50MB

// conversionResponse is a conversion together with its SQL script
type conversionResponse struct {
	*Conversion
	Script string `json:"script"`
}

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrScanFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ContentTypeFor picks a document's MIME type, falling back to its extension
func ContentTypeFor(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) respondConversion(w http.ResponseWriter, code int, c *Conversion) {
	script, err := s.service.GetScript(c.ID)
	if err != nil {
		slog.Error("Error reading script", "conversion_id", c.ID, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, code, conversionResponse{Conversion: c, Script: string(script)})
}

// handleHealth reports that the server is up
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

// handleSchema returns the DDL of the target tables
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	io.WriteString(w, sqlgen.Schema()+"\n")
}

// handleListConversions returns a list of all conversions
func (s *Server) handleListConversions(w http.ResponseWriter, r *http.Request) {
	conversions, err := s.service.ListConversions()
	if err != nil {
		slog.Error("Error listing conversions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if conversions == nil {
		conversions = []*Conversion{}
	}
	writeJSON(w, http.StatusOK, conversions)
}

// handleUpload converts an uploaded invoice image, PDF or text file
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := ContentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	var c *Conversion
	if strings.HasPrefix(contentType, "text/plain") {
		c, err = s.service.ConvertText(header.Filename, string(data))
	} else {
		c, err = s.service.ConvertDocument(header.Filename, data, contentType)
	}
	if err != nil {
		slog.Error("Error converting document", "filename", header.Filename, "error", err)
		code := errorStatus(err)
		if code == http.StatusInternalServerError && strings.HasPrefix(contentType, "text/plain") {
			code = http.StatusBadRequest
		}
		jsonError(w, err.Error(), code)
		return
	}

	s.respondConversion(w, http.StatusCreated, c)
}

// handleConvertText converts text posted as JSON
func (s *Server) handleConvertText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize)).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.service.ConvertText(req.Filename, req.Text)
	if err != nil {
		slog.Error("Error converting text", "filename", req.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.respondConversion(w, http.StatusCreated, c)
}

// handleGetConversion returns a single conversion
func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetConversion(r.PathValue("id"))
	if err != nil {
		corsError(w, "Conversion not found", errorStatus(err))
		return
	}
	s.respondConversion(w, http.StatusOK, c)
}

// handleGetScript downloads the SQL script of a conversion
func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetScript(r.PathValue("id"))
	if err != nil {
		corsError(w, "Script not found", errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="factura_script.sql"`)
	w.Write(data)
}

// handleGetWorkbook downloads a conversion as a spreadsheet
func (s *Server) handleGetWorkbook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := s.service.GetWorkbook(id)
	if err != nil {
		slog.Error("Error building workbook", "conversion_id", id, "error", err)
		corsError(w, "Workbook not available", errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="factura_%s.xlsx"`, id))
	w.Write(data)
}

// handleGetSourceFile returns the uploaded document of a conversion
func (s *Server) handleGetSourceFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetSourceFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "File not found", errorStatus(err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleVerify loads the script of a conversion into a scratch database
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	err := s.service.VerifyConversion(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Conversion not found", http.StatusNotFound)
		return
	}

	resp := map[string]any{"valid": err == nil}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteConversion deletes a conversion
func (s *Server) handleDeleteConversion(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteConversion(r.PathValue("id")); err != nil {
		code := errorStatus(err)
		if code == http.StatusNotFound {
			corsError(w, "Conversion not found", code)
			return
		}
		corsError(w, "Error deleting conversion", code)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
