// Package web serves the three survey pages over HTTP.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"roadsurvey/internal/enrich"
	"roadsurvey/internal/imghost"
	"roadsurvey/internal/models"
	"roadsurvey/internal/session"
	"roadsurvey/internal/survey"
)

const surveyPath = "/survey"

// Form actions posted by the page buttons.
const (
	actionNext   = "next"
	actionBack   = "back"
	actionSave   = "save"
	actionSubmit = "submit"
)

const defaultMaxUpload = 16 << 20

// Options tunes a Handler.
type Options struct {
	// CDNPrefix replaces the image host prefix of displayed study photos.
	CDNPrefix string
	// MaxUploadBytes caps the body of a page post.
	MaxUploadBytes int64
}

// Handler renders survey pages and binds their posts into the session.
type Handler struct {
	bank        *survey.Bank
	uploader    imghost.Uploader
	submissions *enrich.Pipeline[models.Submission]
	opts        Options
	logger      *slog.Logger
	pages       pageTemplates
	now         func() time.Time
}

// NewHandler creates a Handler. A nil uploader disables photo hosting and a
// nil pipeline only records the submission in the session.
func NewHandler(bank *survey.Bank, uploader imghost.Uploader, submissions *enrich.Pipeline[models.Submission], opts Options, logger *slog.Logger) (*Handler, error) {
	if bank == nil {
		return nil, errors.New("web: question bank is required")
	}
	if uploader == nil {
		uploader = imghost.Disabled{}
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if logger == nil {
		logger = slog.Default()
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Handler{
		bank:        bank,
		uploader:    uploader,
		submissions: submissions,
		opts:        opts,
		logger:      logger,
		pages:       pages,
		now:         time.Now,
	}, nil
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Show renders the current page, or the result once submitted.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	sess.Lock()
	name, view := h.view(sess)
	sess.Unlock()

	h.render(w, name, view)
}

// Post binds the posted page and moves according to the action button.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sess.Lock()
			sess.Notify(session.LevelError, "The upload is too large. The limit is %d MB.", h.opts.MaxUploadBytes>>20)
			sess.Unlock()
			http.Redirect(w, r, surveyPath, http.StatusSeeOther)
			return
		}
		h.logger.Warn("malformed survey post", "session", sess.ID, "error", err)
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	sess.Lock()
	defer sess.Unlock()

	if sess.Submitted() {
		http.Redirect(w, r, surveyPath, http.StatusSeeOther)
		return
	}

	form := r.PostForm
	if page, err := strconv.Atoi(form.Get("page")); err != nil || page != sess.Page {
		sess.Notify(session.LevelWarning, "This page was out of date. Please check your answers and try again.")
		http.Redirect(w, r, surveyPath, http.StatusSeeOther)
		return
	}

	action := form.Get("action")
	var bindErr error
	switch sess.Page {
	case survey.PagePersonal:
		bindErr = h.bank.ApplyPersonal(&sess.Data, form)
	case survey.PageQuiz:
		bindErr = h.bank.ApplyQuiz(&sess.Data, sess.Draw, form)
	case survey.PageAssessment:
		bindErr = h.bank.ApplyAssessment(&sess.Data, sess.Draw, form)
		if action != actionBack {
			h.applyLocation(r, sess)
		}
	}

	if bindErr != nil && action != actionBack {
		h.notifyInvalid(sess, bindErr)
		http.Redirect(w, r, surveyPath, http.StatusSeeOther)
		return
	}

	switch action {
	case actionNext:
		sess.Page = survey.ClampPage(sess.Page + 1)
	case actionBack:
		sess.Page = survey.ClampPage(sess.Page - 1)
	case actionSubmit:
		if sess.Page != survey.PageCount-1 {
			sess.Notify(session.LevelWarning, "Please complete every page before submitting.")
			break
		}
		h.submit(r, sess)
	case actionSave, "":
	default:
		h.logger.Debug("unknown survey action", "session", sess.ID, "action", action)
	}

	http.Redirect(w, r, surveyPath, http.StatusSeeOther)
}

// Restart discards the session and starts over with a new draw.
func (h *Handler) Restart(store *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := store.Reset(w, r); err != nil {
			h.logger.Error("failed to restart session", "error", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, surveyPath, http.StatusSeeOther)
	}
}

// Data returns the collected mapping as JSON.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	sess.Lock()
	body, err := json.Marshal(sess.Data)
	sess.Unlock()
	if err != nil {
		h.logger.Error("failed to encode survey data", "session", sess.ID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (h *Handler) notifyInvalid(sess *session.Session, err error) {
	var verr survey.ValidationError
	if errors.As(err, &verr) {
		for _, fe := range verr {
			sess.Notify(session.LevelError, "%s", fe.Message)
		}
		return
	}
	sess.Notify(session.LevelError, "%v", err)
}

func (h *Handler) submit(r *http.Request, sess *session.Session) {
	sub := &models.Submission{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		SubmittedAt: h.now().UTC(),
		Data:        sess.Data,
	}
	if h.submissions != nil {
		if failed := h.submissions.Run(r.Context(), sub); failed > 0 {
			sess.Notify(session.LevelWarning, "Your answers were recorded but could not be saved to the archive.")
		}
	}
	sess.Submission = sub
	sess.Notify(session.LevelSuccess, "Thank you! Your survey has been submitted.")
}
