package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/pdf"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/lindenau-systems/folio/internal/render"
)

// recognizeJob bundles everything needed to run one uploaded document
// through the pipeline. Both the HTTP and the WebSocket handler build one.
type recognizeJob struct {
	path     string
	name     string
	mode     recognize.Mode
	model    string
	pages    string
	password string
	reporter pipeline.ProgressReporter
}

// jobError carries enough context for each transport to report a failure
// its own way.
type jobError struct {
	Status  int
	Type    string
	Message string
}

func (e *jobError) Error() string { return e.Message }

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encoding health response", "error", err)
	}
}

// modelsHandler returns the known model aliases and recognition modes.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	aliases := []string{recognize.ModelFlash, recognize.ModelPlus, recognize.ModelOCR}
	modelList := make([]ModelInfo, len(aliases))
	for i, alias := range aliases {
		modelList[i] = ModelInfo{Alias: alias, ID: recognize.ResolveModel(alias)}
	}

	modes := recognize.Modes()
	modeNames := make([]string, len(modes))
	for i, m := range modes {
		modeNames[i] = string(m)
	}

	response := ModelsResponse{
		Models: modelList,
		Modes:  modeNames,
		Count:  len(modelList),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("encoding models response", "error", err)
	}
}

// recognizeHandler processes uploaded documents.
func (s *Server) recognizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeErrorResponse(w, "No document file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	path, cleanup, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	mode := s.mode
	if v := r.FormValue("mode"); v != "" {
		mode = recognize.Mode(v)
	}
	model := s.model
	if v := r.FormValue("model"); v != "" {
		model = v
	}

	// Resolve the response format up front so bad values fail before any
	// remote calls are made.
	formatName := r.FormValue("format")
	if formatName == "" {
		formatName = r.URL.Query().Get("format")
	}
	jsonEnvelope := formatName == "" || formatName == "json"
	var format output.Format
	if !jsonEnvelope {
		var err error
		if format, err = output.ParseFormat(formatName); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	job := recognizeJob{
		path:     path,
		name:     header.Filename,
		mode:     mode,
		model:    model,
		pages:    r.FormValue("pages"),
		password: r.FormValue("password"),
	}

	start := time.Now()
	result, jobErr := s.runJob(r.Context(), job)
	if jobErr != nil {
		recognitionRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, jobErr.Message, jobErr.Status)
		return
	}

	status := "success"
	if result.Status == string(pipeline.StatusCancelled) {
		status = "cancelled"
	}
	recognitionRequestsTotal.WithLabelValues("http", status).Inc()
	recognitionDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	recognitionPages.WithLabelValues("http").Observe(float64(result.TotalPages))
	recognitionTokensTotal.Add(float64(result.Usage.TotalTokens))

	if jsonEnvelope {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(RecognizeResponse{Success: true, Result: result}); err != nil {
			s.logger.Error("encoding recognize response", "error", err)
		}
		return
	}

	switch format {
	case output.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	case output.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if err := output.Write(w, result, format); err != nil {
		s.logger.Error("writing recognize response", "error", err)
	}
}

// runJob runs one uploaded document through the pipeline.
func (s *Server) runJob(ctx context.Context, job recognizeJob) (*output.DocumentResult, *jobError) {
	prompt, err := recognize.PromptFor(job.mode)
	if err != nil {
		return nil, &jobError{Status: http.StatusBadRequest, Type: "invalid_request", Message: err.Error()}
	}

	readable := job.path
	if render.IsPDFPath(job.path) {
		creds := pdf.Credentials{UserPassword: job.password, OwnerPassword: job.password}
		unlocked, cleanup, err := pdf.Unlock(job.path, creds)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, pdf.ErrPasswordRequired) {
				status = http.StatusUnauthorized
			}
			return nil, &jobError{Status: status, Type: "invalid_request", Message: err.Error()}
		}
		defer cleanup()
		readable = unlocked
	} else if !render.IsImagePath(job.path) {
		return nil, &jobError{Status: http.StatusBadRequest, Type: "invalid_request", Message: "unsupported document type"}
	}

	doc, err := render.Open(readable)
	if err != nil {
		return nil, &jobError{Status: http.StatusBadRequest, Type: "invalid_request", Message: fmt.Sprintf("failed to open document: %v", err)}
	}
	defer func() { _ = doc.Close() }()

	pages, err := pdf.ParsePageRange(job.pages, doc.PageCount())
	if err != nil {
		return nil, &jobError{Status: http.StatusBadRequest, Type: "invalid_request", Message: err.Error()}
	}

	opts := s.opts
	opts.Request.Prompt = prompt
	opts.Request.Model = job.model

	runner, err := pipeline.NewRunner(s.client, opts)
	if err != nil {
		return nil, &jobError{Status: http.StatusInternalServerError, Type: "processing_error", Message: err.Error()}
	}
	runner = runner.WithLogger(s.logger)
	if job.reporter != nil {
		runner = runner.WithProgress(job.reporter)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	run, err := runner.Run(runCtx, doc, pages)
	if err != nil {
		return nil, &jobError{Status: http.StatusInternalServerError, Type: "processing_error", Message: fmt.Sprintf("recognition failed: %v", err)}
	}

	result := output.FromRun(run, job.mode, recognize.ResolveModel(job.model))
	result.Document = job.name
	return result, nil
}

// extOf returns the lowercase extension of a filename, dot included.
func extOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// saveUpload stores an uploaded file under a temporary path, keeping the
// original extension so document type sniffing keeps working.
func (s *Server) saveUpload(file multipart.File, filename string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "folio-upload-*"+extOf(filename))
	if err != nil {
		return "", nil, err
	}

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}

	cleanup := func() { _ = os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := RecognizeResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("writing error response", "error", err)
	}
}
