package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"roadsurvey/internal/session"
	"roadsurvey/internal/survey"
	"roadsurvey/pkg/geo"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplPersonal   = "personal.html"
	tmplQuiz       = "quiz.html"
	tmplAssessment = "assessment.html"
	tmplDone       = "done.html"
)

var pageTemplateNames = [survey.PageCount]string{tmplPersonal, tmplQuiz, tmplAssessment}

type pageTemplates map[string]*template.Template

// parseTemplates pairs the layout with each page's "content" block.
func parseTemplates() (pageTemplates, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	pages := make(pageTemplates)
	for _, name := range []string{tmplPersonal, tmplQuiz, tmplAssessment, tmplDone} {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (h *Handler) render(w http.ResponseWriter, name string, view *pageView) {
	t, ok := h.pages[name]
	if !ok {
		h.logger.Error("unknown template", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view); err != nil {
		h.logger.Error("failed to render page", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

type pageView struct {
	SurveyTitle string
	Title       string
	Page        int
	PageNumber  int
	PageCount   int
	Progress    int
	First       bool
	Last        bool
	Notices     []session.Notice

	// personal
	Name           string
	Age            int
	MinAge, MaxAge int
	EducationTypes []string
	EducationType  string
	University     string
	Department     string
	College        string
	School         string
	Email          string
	Phone          string

	// quiz
	MultipleChoice []choiceView
	Descriptive    []textView

	// assessment
	Images          []imageView
	DistressTypes   []string
	LocationMethods []string
	LocationMethod  string
	LocationUpload  string
	LocationCapture string
	UploadedURL     string
	CapturedURL     string
	Coords          *coordsView
	DistressType    string
	Severity        int
	MinSeverity     int
	MaxSeverity     int
	MaxUploadMB     int64

	// done
	SubmissionID   string
	SubmittedAt    string
	SubmissionJSON string
}

type choiceView struct {
	Field    string
	Question string
	Options  []string
	Answer   string
}

type textView struct {
	Field  string
	Prompt string
	Answer string
}

type imageView struct {
	Number        int
	DisplayURL    string
	TypeField     string
	SeverityField string
	DistressType  string
	Severity      int
}

type coordsView struct {
	Latitude  string
	Longitude string
	Accuracy  string
	Source    string
	MapURL    string
}

// view builds the page for sess and drains its notices. The caller holds
// the session lock.
func (h *Handler) view(sess *session.Session) (string, *pageView) {
	page := survey.ClampPage(sess.Page)
	v := &pageView{
		SurveyTitle: h.bank.Title,
		Title:       survey.Title(page),
		Page:        page,
		PageNumber:  page + 1,
		PageCount:   survey.PageCount,
		Progress:    survey.Progress(page),
		First:       page == 0,
		Last:        page == survey.PageCount-1,
		Notices:     sess.TakeNotices(),
	}

	if sess.Submitted() {
		sub := sess.Submission
		v.Title = "Survey submitted"
		v.Progress = 100
		v.SubmissionID = sub.ID
		v.SubmittedAt = sub.SubmittedAt.Format("2006-01-02 15:04:05 MST")
		if body, err := json.MarshalIndent(sub.Data, "", "  "); err == nil {
			v.SubmissionJSON = string(body)
		} else {
			h.logger.Error("failed to encode submission", "submission", sub.ID, "error", err)
		}
		return tmplDone, v
	}

	d := sess.Data
	switch page {
	case survey.PagePersonal:
		v.Name = d.Name
		v.Age = max(d.Age, survey.MinAge)
		v.MinAge, v.MaxAge = survey.MinAge, survey.MaxAge
		v.EducationTypes = h.bank.EducationTypes
		v.EducationType = orFirst(d.EducationType, h.bank.EducationTypes)
		v.University, v.Department = d.University, d.Department
		v.College, v.School = d.College, d.School
		v.Email, v.Phone = d.Email, d.Phone

	case survey.PageQuiz:
		for i, q := range sess.Draw.MultipleChoice {
			v.MultipleChoice = append(v.MultipleChoice, choiceView{
				Field:    survey.MultipleChoiceField(i),
				Question: q.Question,
				Options:  q.Options,
				Answer:   orFirst(d.MultipleChoiceAnswers[q.Question], q.Options),
			})
		}
		for i, prompt := range sess.Draw.Descriptive {
			v.Descriptive = append(v.Descriptive, textView{
				Field:  survey.DescriptiveField(i),
				Prompt: prompt,
				Answer: d.DescriptiveAnswers[prompt],
			})
		}

	case survey.PageAssessment:
		for i, url := range sess.Draw.Images {
			a := d.ImageAssessments[survey.AssessmentKey(i)]
			v.Images = append(v.Images, imageView{
				Number:        i + 1,
				DisplayURL:    survey.DisplayURL(url, h.opts.CDNPrefix),
				TypeField:     survey.ImageTypeField(i),
				SeverityField: survey.ImageSeverityField(i),
				DistressType:  orFirst(a.DistressType, h.bank.DistressTypes),
				Severity:      max(a.Severity, survey.MinSeverity),
			})
		}
		v.DistressTypes = h.bank.DistressTypes
		v.LocationMethods = h.bank.LocationMethods
		v.LocationMethod = orFirst(d.LocationMethod, h.bank.LocationMethods)
		v.LocationUpload, v.LocationCapture = survey.LocationUpload, survey.LocationCapture
		if d.UploadedImageURL != nil {
			v.UploadedURL = *d.UploadedImageURL
		}
		if d.CapturedImageURL != nil {
			v.CapturedURL = *d.CapturedImageURL
		}
		if p, ok := d.GPSCoords.Point(); ok {
			c := &coordsView{
				Latitude:  geo.FormatDegrees(p.Lat),
				Longitude: geo.FormatDegrees(p.Lon),
				Source:    d.GPSCoords.Source,
				MapURL:    geo.OSMURL(p.Lat, p.Lon),
			}
			if d.GPSCoords.Accuracy != nil {
				c.Accuracy = fmt.Sprintf("%.2f meters", *d.GPSCoords.Accuracy)
			}
			v.Coords = c
		}
		v.DistressType = orFirst(d.DistressType, h.bank.DistressTypes)
		v.Severity = max(d.DistressSeverity, survey.MinSeverity)
		v.MinSeverity, v.MaxSeverity = survey.MinSeverity, survey.MaxSeverity
		v.MaxUploadMB = h.opts.MaxUploadBytes >> 20
	}

	return pageTemplateNames[page], v
}

func orFirst(value string, options []string) string {
	if value == "" && len(options) > 0 {
		return options[0]
	}
	return value
}
