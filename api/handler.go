package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/ai"
	"github.com/aivs/invoice-compliance/internal/compliance"
	"github.com/aivs/invoice-compliance/internal/db"
	"github.com/aivs/invoice-compliance/internal/models"
	"github.com/aivs/invoice-compliance/internal/ocr"
	"github.com/aivs/invoice-compliance/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"

	ModeRules = "rules"
	ModeAI    = "ai"
)

// Handler handles HTTP requests for invoice compliance checks
type Handler struct {
	config    *models.Config
	engine    *compliance.Engine
	extractor *ocr.PDFExtractor
	knowledge ai.ContextSource

	newProvider func(providerName, modelName string) (ai.Provider, error)
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config) *Handler {
	h := &Handler{
		config:    config,
		engine:    compliance.NewEngine(compliance.PolicyFromConfig(config.Engine)),
		extractor: ocr.NewPDFExtractor(),
	}
	if config.Knowledge.URL != "" {
		h.knowledge = ai.NewHTTPContextSource(config.Knowledge.URL, config.Knowledge.APIKey)
	}
	h.newProvider = h.createProvider
	return h
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/check-invoice", h.CheckInvoice).Methods("POST")

	// Stored reports
	router.HandleFunc("/api/reports", h.GetReports).Methods("GET")
	router.HandleFunc("/api/reports/{id}", h.GetReport).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	AI        map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health reports process and collaborator status. The rule engine has no
// external dependencies, so missing persistence never makes the service unhealthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	knowledge := "disabled"
	if h.knowledge != nil {
		knowledge = "enabled"
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
			"knowledge":       knowledge,
		},
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if !db.Available() {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if !storage.Available() {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// CheckResponse is the body returned by CheckInvoice
type CheckResponse struct {
	Success      bool                    `json:"success"`
	Mode         string                  `json:"mode"`
	AIReply      models.ComplianceReport `json:"aiReply"`
	ParserNote   string                  `json:"parserNote"`
	ItemsSkipped int                     `json:"itemsSkipped"`
	ReportID     string                  `json:"reportId,omitempty"`
	Timestamp    string                  `json:"timestamp"`
}

// upload is the invoice text plus the original file, if one was sent
type upload struct {
	text        string
	filename    string
	contentType string
	data        []byte
}

// CheckInvoice runs the compliance check over an uploaded file or pasted text
func (h *Handler) CheckInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	started := time.Now()

	maxSize := int64(MaxUploadSize)
	if h.config.OCR.MaxUploadMB > 0 {
		maxSize = int64(h.config.OCR.MaxUploadMB) * 1024 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
			return
		}
		if err := r.ParseForm(); err != nil {
			h.sendError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
	}

	in, status, err := h.readUpload(r)
	if err != nil {
		h.sendError(w, status, err.Error())
		return
	}

	flags := models.ParseFlags(r.FormValue("vatCategory"), r.FormValue("endUserConfirmed"), r.FormValue("cisRate"))
	mode := strings.ToLower(strings.TrimSpace(r.FormValue("mode")))
	if mode != ModeAI {
		mode = ModeRules
	}

	result := h.engine.Check(in.text, flags)
	if result.Err != "" {
		log.Printf("[Check] Engine failure: %s", result.Err)
	}
	report := result.Report
	note := parserNote(result)

	if mode == ModeAI {
		aiReport, err := h.analyse(ctx, r.FormValue("aiProvider"), r.FormValue("model"), in.text, flags)
		if err != nil {
			log.Printf("[AI] Falling back to rule engine: %v", err)
			note += "; AI analysis unavailable, rule-based report returned"
			mode = ModeRules
		} else {
			report = aiReport
		}
	}

	reportID := h.persist(ctx, mode, in, flags, result, report)

	log.Printf("[Check] mode=%s items=%d skipped=%d duration=%s",
		mode, len(result.Items), result.ItemsSkipped, time.Since(started))

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(CheckResponse{
		Success:      true,
		Mode:         mode,
		AIReply:      report,
		ParserNote:   note,
		ItemsSkipped: result.ItemsSkipped,
		ReportID:     reportID,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

// readUpload takes the invoice from the "file" field, or from "text" when no file was sent
func (h *Handler) readUpload(r *http.Request) (upload, int, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		text := r.FormValue("text")
		if strings.TrimSpace(text) == "" {
			return upload{}, http.StatusBadRequest, fmt.Errorf("No invoice provided (use 'file' or 'text' field)")
		}
		return upload{text: text}, 0, nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, http.StatusInternalServerError, fmt.Errorf("Failed to read file")
	}

	contentType := header.Header.Get("Content-Type")
	text, err := h.extractor.ExtractFromUpload(contentType, header.Filename, data)
	if err != nil {
		if errors.Is(err, ocr.ErrUnsupportedType) {
			return upload{}, http.StatusUnsupportedMediaType, fmt.Errorf("Unsupported file: upload a PDF or text file")
		}
		return upload{}, http.StatusUnprocessableEntity, fmt.Errorf("Could not read text from file: %v", err)
	}

	return upload{
		text:        text,
		filename:    header.Filename,
		contentType: contentType,
		data:        data,
	}, 0, nil
}

func (h *Handler) analyse(ctx context.Context, providerName, modelName, text string, flags models.ComplianceFlags) (models.ComplianceReport, error) {
	provider, err := h.newProvider(providerName, modelName)
	if err != nil {
		return models.ComplianceReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	return ai.NewAnalyst(provider, h.knowledge).Analyse(ctx, text, flags)
}

// persist stores the report and its files when persistence is configured.
// Failures are logged and never change the response.
func (h *Handler) persist(ctx context.Context, mode string, in upload, flags models.ComplianceFlags, result *compliance.Result, report models.ComplianceReport) string {
	if !db.Available() {
		return ""
	}

	rec := &db.Report{
		ID:               uuid.New(),
		Mode:             mode,
		Filename:         in.filename,
		VATCategory:      flags.VATCategory,
		EndUserConfirmed: flags.EndUser(),
		CISRate:          decimal.NewFromFloat(flags.CISRate),
		ItemsSkipped:     result.ItemsSkipped,
		Report:           report,
	}
	if result.Validation != nil && result.Validation.Valid {
		rec.Subtotal = decimal.NewNullDecimal(result.Totals.Subtotal)
		rec.TotalDue = decimal.NewNullDecimal(result.Totals.TotalDue)
	}

	if storage.Available() {
		if report.CorrectedInvoice != nil {
			key, err := storage.UploadReport(ctx, rec.ID.String(), *report.CorrectedInvoice)
			if err != nil {
				log.Printf("[Check] Warning: failed to store corrected invoice: %v", err)
			}
			rec.ObjectKey = key
		}
		if len(in.data) > 0 {
			key, err := storage.UploadInvoice(ctx, rec.ID.String(), in.filename, in.data, in.contentType)
			if err != nil {
				log.Printf("[Check] Warning: failed to store upload: %v", err)
			}
			rec.InvoiceKey = key
		}
	}

	if err := db.SaveReport(ctx, rec); err != nil {
		log.Printf("[Check] Warning: failed to save report: %v", err)
		return ""
	}
	return rec.ID.String()
}

func parserNote(result *compliance.Result) string {
	if !result.TableFound {
		return "No line-item table found"
	}
	return fmt.Sprintf("Parsed %d line item(s), %d line(s) skipped", len(result.Items), result.ItemsSkipped)
}

// GetReports returns the most recent stored reports
func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := db.ListReports(r.Context(), limit)
	if err != nil {
		h.sendDBError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"reports": reports,
		"count":   len(reports),
	})
}

// GetReport returns one stored report with a download link for its corrected invoice
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	rep, err := db.GetReportByID(r.Context(), id)
	if err != nil {
		h.sendDBError(w, err)
		return
	}

	response := map[string]interface{}{
		"success": true,
		"report":  rep,
	}
	if rep.ObjectKey != "" && storage.Available() {
		if url, err := storage.GetPresignedURL(r.Context(), rep.ObjectKey); err == nil {
			response["correctedInvoiceUrl"] = url
		} else {
			log.Printf("[Reports] Warning: presign failed for %s: %v", rep.ID, err)
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// createProvider creates the appropriate AI provider
func (h *Handler) createProvider(providerName, modelName string) (ai.Provider, error) {
	return ai.NewProvider(h.config.AI, providerName, modelName)
}

func (h *Handler) sendDBError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNoDatabase):
		h.sendError(w, http.StatusServiceUnavailable, "Report storage is not configured")
	case errors.Is(err, db.ErrReportNotFound):
		h.sendError(w, http.StatusNotFound, "Report not found")
	default:
		log.Printf("[Reports] Database error: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Database error")
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
