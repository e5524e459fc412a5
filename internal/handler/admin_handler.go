package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/auth"
	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/service"
)

// defaultPageSize bounds list responses when the client sends no limit.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AdminHandler serves the authenticated admin endpoints.
type AdminHandler struct {
	authService    *auth.Service
	issueService   *service.IssueService
	uploadService  *service.UploadService
	cleanupService *service.CleanupService
	logger         zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	authService *auth.Service,
	issueService *service.IssueService,
	uploadService *service.UploadService,
	cleanupService *service.CleanupService,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		authService:    authService,
		issueService:   issueService,
		uploadService:  uploadService,
		cleanupService: cleanupService,
		logger:         logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers admin routes. Everything except login sits
// behind the session middleware.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/admin/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.authService.Middleware())

		r.Post("/api/admin/logout", h.handleLogout)
		r.Get("/api/admin/issues", h.handleList)
		r.Get("/api/admin/issues/{id}", h.handleDetail)
		r.Patch("/api/admin/issues/{id}/status", h.handleUpdateStatus)
		r.Delete("/api/admin/issues/{id}", h.handleDelete)
		r.Post("/api/admin/issues/{id}/images", h.handleAttachImages)
		r.Delete("/api/admin/images/{id}", h.handleDeleteImage)
		r.Post("/api/admin/cleanup/run", h.handleCleanupRun)
		r.Get("/api/admin/cleanup/stats", h.handleCleanupStats)
	})
}

// loginRequest is the login payload.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the opaque session token.
type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *AdminHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.ErrInvalidCredentials)
		return
	}

	token, admin, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		Username: admin.Username,
	})
}

func (h *AdminHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 {
		token = token[7:] // strip "Bearer "
	}
	if err := h.authService.Logout(r.Context(), token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleList lists issues with filters and pagination.
func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.IssueFilter{
		Status:      domain.Status(q.Get("status")),
		ProblemType: domain.ProblemType(q.Get("problem_type")),
		Search:      q.Get("search"),
		Offset:      parseIntDefault(q.Get("offset"), 0),
		Limit:       parseIntDefault(q.Get("limit"), defaultPageSize),
		Descending:  q.Get("order") != "asc",
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrInvalidStatus, "unknown status filter", string(filter.Status)))
		return
	}

	result, err := h.issueService.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// issueDetailResponse bundles the issue with its status history.
type issueDetailResponse struct {
	Issue   *domain.Issue          `json:"issue"`
	History []*domain.StatusChange `json:"history"`
}

func (h *AdminHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := issueID(w, r, h.logger)
	if !ok {
		return
	}

	issue, err := h.issueService.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	history, err := h.issueService.History(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, issueDetailResponse{
		Issue:   issue,
		History: history,
	})
}

// updateStatusRequest is the status transition payload.
type updateStatusRequest struct {
	Status        string `json:"status"`
	AdminResponse string `json:"admin_response"`
}

func (h *AdminHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := issueID(w, r, h.logger)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrInvalidStatus, "invalid request body", ""))
		return
	}

	admin, _ := auth.AdminFromContext(r.Context())
	changedBy := "admin"
	if admin != nil {
		changedBy = admin.Username
	}

	issue, err := h.issueService.UpdateStatus(r.Context(), id, domain.Status(req.Status), req.AdminResponse, changedBy)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, issue)
}

func (h *AdminHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := issueID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.issueService.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// handleAttachImages attaches admin-supplied images to an issue.
func (h *AdminHandler) handleAttachImages(w http.ResponseWriter, r *http.Request) {
	id, ok := issueID(w, r, h.logger)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrProcessingFailed, "invalid multipart form", ""))
		return
	}

	files, err := readUploadFiles(r.MultipartForm)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.uploadService.AttachImages(r.Context(), id, files, true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleDeleteImage removes a single image file and its record.
func (h *AdminHandler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, h.logger, domain.NewDomainError(domain.ErrImageNotFound, "invalid image id", ""))
		return
	}

	if err := h.uploadService.DeleteImage(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// handleCleanupRun triggers a cleanup run synchronously.
func (h *AdminHandler) handleCleanupRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.cleanupService.RunOnce(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCleanupStats reports what the next run would remove.
func (h *AdminHandler) handleCleanupStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cleanupService.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// issueID parses the {id} path parameter.
func issueID(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, logger, domain.NewDomainError(domain.ErrInvalidIssueInput, "invalid issue id", ""))
		return 0, false
	}
	return id, true
}

// parseIntDefault parses s, falling back when empty or invalid.
func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
