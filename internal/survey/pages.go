package survey

import "strings"

// Page indexes.
const (
	PagePersonal = iota
	PageQuiz
	PageAssessment

	PageCount
)

var pageTitles = [PageCount]string{
	"Personal and Contact Information",
	"Road Distress Knowledge Test",
	"Image and GPS Test",
}

// Option values the page logic branches on.
const (
	EducationUniversity = "University"
	EducationCollege    = "College"
	EducationSchool     = "School"

	LocationUpload  = "Upload Image with GPS"
	LocationCapture = "Capture Image"
)

const (
	MinAge      = 18
	MaxAge      = 80
	MinSeverity = 1
	MaxSeverity = 5
)

// Title returns the heading of page, or "" when out of range.
func Title(page int) string {
	if page < 0 || page >= PageCount {
		return ""
	}
	return pageTitles[page]
}

// Progress is the percentage shown in the progress bar on page.
func Progress(page int) int {
	switch {
	case page < 0:
		return 0
	case page >= PageCount:
		return 100
	}
	return (page + 1) * 100 / PageCount
}

// ClampPage keeps page inside the survey.
func ClampPage(page int) int {
	return max(0, min(page, PageCount-1))
}

// ImageHost is the prefix of the study's photo URLs.
const ImageHost = "https://i.ibb.co.com/"

// DisplayURL rewrites a study photo URL onto cdnPrefix. Other URLs and an
// empty prefix leave the URL unchanged.
func DisplayURL(url, cdnPrefix string) string {
	if cdnPrefix == "" || !strings.HasPrefix(url, ImageHost) {
		return url
	}
	if !strings.HasSuffix(cdnPrefix, "/") {
		cdnPrefix += "/"
	}
	return cdnPrefix + strings.TrimPrefix(url, ImageHost)
}

// AssessmentKey is the image_assessments key of the i'th drawn photo.
func AssessmentKey(i int) string {
	return "image_assessment_" + itoa(i)
}
