package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apierrors "ecomeda/internal/errors"
	"ecomeda/internal/middleware"
	"ecomeda/internal/services"
	"ecomeda/pkg/contracts/domain"
)

type ctxKey string

const analysisIDKey ctxKey = "analysis_id"

// uploadField is the multipart field carrying the dataset
const uploadField = "file"

// Response suffixes for the download routes
const (
	suffixCSV = ".csv"
	suffixPNG = ".png"
)

// AnalysisHandler handles analysis HTTP requests with RFC 7807 errors
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	binder       *middleware.RequestBinder
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// SheetAnalysisRequest is the body of POST /api/analyses/sheets
type SheetAnalysisRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,min=10,max=128,sheetsid"`
	Range         string `json:"range" validate:"required,max=256,a1range"`
	TopN          int    `json:"top_n" validate:"omitempty,min=1,max=1000"`
}

// uploadQuery holds the query parameters of POST /api/analyses
type uploadQuery struct {
	TopN  int    `query:"top_n" validate:"omitempty,min=1,max=1000"`
	Sheet string `query:"sheet" validate:"omitempty,max=31"`
}

// listQuery holds the query parameters of GET /api/analyses
type listQuery struct {
	Source string `query:"source" validate:"omitempty,oneof=upload sheets file"`
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:      service,
		binder:       middleware.NewRequestBinder(logger),
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireMediaType(h.errorHandler, "multipart/form-data")).Post("/", h.Upload)
	r.With(middleware.RequireMediaType(h.errorHandler, "application/json")).Post("/sheets", h.AnalyzeSheet)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.AnalysisCtx)
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/views/{view}", h.GetView)
		r.Get("/charts/{chart}", h.GetChart)
		r.Get("/dataset.csv", h.GetDataset)
	})

	return r
}

// AnalysisCtx validates the analysis ID and stores it in the context
func (h *AnalysisHandler) AnalysisCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := uuid.Parse(id); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "analysis id must be a UUID"))
			return
		}

		ctx := context.WithValue(r.Context(), analysisIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func analysisID(r *http.Request) string {
	id, _ := r.Context().Value(analysisIDKey).(string)
	return id
}

// Upload handles POST /api/analyses. The body is multipart with the
// dataset in the "file" field; top_n is an optional query parameter.
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var q uploadQuery
	if err := h.binder.DecodeQuery(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	opts := services.AnalyzeOptions{TopN: q.TopN, Sheet: q.Sheet}

	part, err := filePart(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer part.Close()

	h.logger.InfoContext(r.Context(), "analysis upload received",
		slog.String("filename", part.FileName()),
		slog.Int("top_n", q.TopN),
		slog.String("request_id", middleware.GetRequestID(r.Context())))

	rep, err := h.service.AnalyzeUpload(r.Context(), part.FileName(), part, opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/analyses/"+rep.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, rep)
}

// filePart streams the multipart body up to the file field
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apierrors.InvalidRequestWithError(err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apierrors.ErrValidation(uploadField, "multipart field \"file\" is required")
		}
		if err != nil {
			return nil, apierrors.InvalidRequestWithError(err)
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// AnalyzeSheet handles POST /api/analyses/sheets
func (h *AnalysisHandler) AnalyzeSheet(w http.ResponseWriter, r *http.Request) {
	var req SheetAnalysisRequest
	if err := h.binder.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rep, err := h.service.AnalyzeSheet(r.Context(), services.SheetRequest{
		SpreadsheetID: req.SpreadsheetID,
		Range:         req.Range,
		TopN:          req.TopN,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/analyses/"+rep.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, rep)
}

// List handles GET /api/analyses with an optional source filter
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	var q listQuery
	if err := h.binder.DecodeQuery(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summaries, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if q.Source != "" {
		filtered := summaries[:0]
		for _, s := range summaries {
			if s.Source == q.Source {
				filtered = append(filtered, s)
			}
		}
		summaries = filtered
	}

	render.JSON(w, r, map[string]interface{}{
		"analyses": summaries,
		"count":    len(summaries),
	})
}

// Get handles GET /api/analyses/{id}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.Get(r.Context(), analysisID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, notFoundAsAnalysis(err))
		return
	}
	render.JSON(w, r, rep)
}

// Delete handles DELETE /api/analyses/{id}
func (h *AnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), analysisID(r)); err != nil {
		h.errorHandler.HandleError(w, r, notFoundAsAnalysis(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetView handles GET /api/analyses/{id}/views/{view} and its .csv variant
func (h *AnalysisHandler) GetView(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "view")
	name, asCSV := strings.CutSuffix(raw, suffixCSV)
	if !middleware.IsViewName(name) {
		h.errorHandler.HandleError(w, r, apierrors.ViewNotFoundError(name))
		return
	}
	view := domain.ViewName(name)
	id := analysisID(r)

	if asCSV {
		var buf bytes.Buffer
		if err := h.service.WriteViewCSV(r.Context(), id, view, &buf); err != nil {
			h.errorHandler.HandleError(w, r, notFoundAsAnalysis(err))
			return
		}
		writeDownload(w, "text/csv; charset=utf-8", fmt.Sprintf("%s-%s.csv", id, name), &buf)
		return
	}

	var (
		payload interface{}
		err     error
	)
	if view == domain.ViewCorrelation {
		payload, err = h.service.Correlation(r.Context(), id)
	} else {
		payload, err = h.service.View(r.Context(), id, view)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, notFoundAsAnalysis(err))
		return
	}
	render.JSON(w, r, payload)
}

// GetChart handles GET /api/analyses/{id}/charts/{view}.png
func (h *AnalysisHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(chi.URLParam(r, "chart"), suffixPNG)
	if !ok || !middleware.IsViewName(name) {
		h.errorHandler.HandleError(w, r, apierrors.ViewNotFoundError(name))
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteChart(r.Context(), analysisID(r), domain.ViewName(name), &buf); err != nil {
		h.errorHandler.HandleError(w, r, notFoundAsAnalysis(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// GetDataset handles GET /api/analyses/{id}/dataset.csv
func (h *AnalysisHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := analysisID(r)

	var buf bytes.Buffer
	if err := h.service.WriteDatasetCSV(r.Context(), id, &buf); err != nil {
		h.errorHandler.HandleError(w, r, notFoundAsAnalysis(err))
		return
	}
	writeDownload(w, "text/csv; charset=utf-8", id+"-dataset.csv", &buf)
}

func writeDownload(w http.ResponseWriter, contentType, filename string, body *bytes.Buffer) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	body.WriteTo(w)
}

// notFoundAsAnalysis reports a missing analysis with its own error code
func notFoundAsAnalysis(err error) error {
	if apierrors.IsType(err, apierrors.ErrTypeNotFound) {
		return apierrors.AnalysisNotFoundError(err.Error())
	}
	return err
}
