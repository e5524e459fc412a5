package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/service"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

// multipartMemoryLimit is how much of a parsed form stays in memory
// before spilling to temp files.
const multipartMemoryLimit = 8 << 20

// imagesFieldName is the multipart field carrying uploaded files.
const imagesFieldName = "images"

// IssueHandler serves the public (customer-facing) endpoints.
type IssueHandler struct {
	issueService  *service.IssueService
	uploadService *service.UploadService
	store         storage.UploadStore
	logger        zerolog.Logger
}

// NewIssueHandler creates a new public issue handler.
func NewIssueHandler(
	issueService *service.IssueService,
	uploadService *service.UploadService,
	store storage.UploadStore,
	logger zerolog.Logger,
) *IssueHandler {
	return &IssueHandler{
		issueService:  issueService,
		uploadService: uploadService,
		store:         store,
		logger:        logger.With().Str("handler", "issue").Logger(),
	}
}

// RegisterRoutes registers public routes.
func (h *IssueHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/issues", h.handleCreate)
	r.Get("/api/issues/track/{code}", h.handleTrack)
	r.Get("/api/issues/problem-types", h.handleProblemTypes)
	r.Get("/uploads/{filename}", h.handleImage)
}

// createIssueResponse is the response for issue creation.
type createIssueResponse struct {
	Issue  *domain.Issue       `json:"issue"`
	Failed []service.FileError `json:"failed_uploads,omitempty"`
}

// handleCreate creates an issue from a multipart form, attaching any
// uploaded images. Images are optional; files that fail processing are
// reported without failing the report itself.
func (h *IssueHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrInvalidIssueInput, "invalid multipart form", ""))
		return
	}

	input := service.CreateIssueInput{
		CustomerLineName:   strings.TrimSpace(r.FormValue("customer_line_name")),
		Emails:             parseEmails(r.Form["emails"]),
		ProblemType:        domain.ProblemType(r.FormValue("problem_type")),
		ProblemDescription: strings.TrimSpace(r.FormValue("problem_description")),
	}

	issue, err := h.issueService.CreateIssue(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := createIssueResponse{Issue: issue}

	files, err := readUploadFiles(r.MultipartForm)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(files) > 0 {
		result, err := h.uploadService.AttachImages(r.Context(), issue.ID, files, false)
		if err != nil {
			// The issue itself was created; report the upload failure
			// but keep the 201 so the customer has their code.
			h.logger.Warn().
				Err(err).
				Int64("issue_id", issue.ID).
				Msg("uploads rejected for new issue")
			resp.Failed = append(resp.Failed, service.FileError{Reason: err.Error()})
		} else {
			resp.Issue.Images = result.Images
			resp.Failed = result.Failed
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

// handleTrack looks up an issue by tracking code.
func (h *IssueHandler) handleTrack(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	issue, err := h.issueService.Track(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, issue)
}

// handleProblemTypes lists the accepted problem types.
func (h *IssueHandler) handleProblemTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.ProblemType{
		"problem_types": domain.ProblemTypes(),
	})
}

// handleImage serves a stored image. Filenames are server-generated and
// matched as a single path segment, so no traversal is possible.
func (h *IssueHandler) handleImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	rc, err := h.store.Open(r.Context(), filename)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug().Err(err).Str("filename", filename).Msg("image transfer aborted")
	}
}

// parseEmails accepts repeated form fields and comma-separated lists.
func parseEmails(values []string) []string {
	var emails []string
	for _, v := range values {
		for _, e := range strings.Split(v, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				emails = append(emails, e)
			}
		}
	}
	return emails
}

// readUploadFiles buffers the uploaded files from a parsed form.
func readUploadFiles(form *multipart.Form) ([]service.UploadFile, error) {
	if form == nil {
		return nil, nil
	}

	var files []service.UploadFile
	for _, header := range form.File[imagesFieldName] {
		f, err := header.Open()
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrProcessingFailed, "failed to open uploaded file", header.Filename)
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, domain.NewDomainError(domain.ErrProcessingFailed, "failed to read uploaded file", header.Filename)
		}

		files = append(files, service.UploadFile{
			Name: header.Filename,
			Data: data,
		})
	}
	return files, nil
}
