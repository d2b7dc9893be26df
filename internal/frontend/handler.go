package frontend

import (
	"context"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/dispatch"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/security"
)

// Submitter runs an analysis for a session
type Submitter interface {
	Submit(ctx context.Context, session, identifier string) (analysis.Report, error)
}

// ValidateFunc is the profile URL gate
type ValidateFunc func(input string) (string, error)

// Handler serves the server-rendered form and its results page
type Handler struct {
	tmpl      *template.Template
	submitter Submitter
	validate  ValidateFunc
}

// NewHandler creates the page handler
func NewHandler(tmpl *template.Template, submitter Submitter, validate ValidateFunc) *Handler {
	return &Handler{
		tmpl:      tmpl,
		submitter: submitter,
		validate:  validate,
	}
}

// ShowForm renders the empty form and makes sure the browser has a session
func (h *Handler) ShowForm(c *gin.Context) {
	EnsureSession(c)
	h.render(c, http.StatusOK, PageData{})
}

// Submit handles the form post: gate, dispatch, results page. Gate
// failures re-render the form with the entered value and the gate message.
func (h *Handler) Submit(c *gin.Context) {
	session := EnsureSession(c)
	input := c.PostForm("profile_url")

	profileURL, err := h.validate(input)
	if err != nil {
		h.fail(c, input, errors.ToAppError(err))
		return
	}

	report, err := h.submitter.Submit(c.Request.Context(), session, profileURL)
	if err != nil {
		if stderrors.Is(err, dispatch.ErrSuperseded) {
			h.fail(c, profileURL, errors.NewSupersededError(err))
			return
		}
		h.fail(c, profileURL, errors.ToAppError(err))
		return
	}

	h.render(c, http.StatusOK, PageData{ProfileURL: profileURL, Report: &report})
}

func (h *Handler) fail(c *gin.Context, input string, appErr *errors.AppError) {
	errors.LogError(c, appErr)
	h.render(c, appErr.HTTPStatus, PageData{ProfileURL: input, Error: appErr.ErrBuilder.Msg})
}

func (h *Handler) render(c *gin.Context, status int, data PageData) {
	data.Nonce = security.GetNonce(c)
	if data.Nonce == "" {
		nonce, err := security.GenerateNonce()
		if err != nil {
			errors.Abort(c, errors.NewInternalError("nonce generation failed", err))
			return
		}
		data.Nonce = nonce
	}

	if err := RenderIndex(c, h.tmpl, status, data); err != nil {
		slog.Error("Failed to render index", "error", err, "path", c.Request.URL.Path)
		errors.Abort(c, errors.NewInternalError("failed to render page", err))
	}
}
