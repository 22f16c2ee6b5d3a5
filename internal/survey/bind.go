package survey

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"roadsurvey/internal/models"
	"roadsurvey/pkg/geo"
)

// Values is the read side of url.Values.
type Values interface {
	Get(key string) string
}

// FieldError is a problem with one posted field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every rejected field of a page post.
type ValidationError []FieldError

func (v ValidationError) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "survey: invalid input: " + strings.Join(msgs, "; ")
}

func (v *ValidationError) add(field, format string, args ...any) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v ValidationError) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Form field names. Per-question fields carry the index of the drawn
// question.
const (
	FieldName           = "name"
	FieldAge            = "age"
	FieldEducationType  = "education_type"
	FieldUniversity     = "university"
	FieldDepartment     = "department"
	FieldCollege        = "college"
	FieldSchool         = "school"
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldLocationMethod = "location_method"
	FieldDistressType   = "distress_type"
	FieldSeverity       = "distress_severity"
	FieldLatitude       = "geo_latitude"
	FieldLongitude      = "geo_longitude"
	FieldAccuracy       = "geo_accuracy"
)

func MultipleChoiceField(i int) string { return "mc_" + itoa(i) }
func DescriptiveField(i int) string    { return "desc_" + itoa(i) }
func ImageTypeField(i int) string      { return "image_" + itoa(i) + "_type" }
func ImageSeverityField(i int) string  { return "image_" + itoa(i) + "_severity" }

func itoa(i int) string { return strconv.Itoa(i) }

// ApplyPersonal binds page 1. Education fields that the selected
// education type does not ask for are cleared.
func (b *Bank) ApplyPersonal(r *models.Response, v Values) error {
	var errs ValidationError

	r.Name = strings.TrimSpace(v.Get(FieldName))
	r.Email = strings.TrimSpace(v.Get(FieldEmail))
	r.Phone = strings.TrimSpace(v.Get(FieldPhone))

	if age, err := parseBounded(v.Get(FieldAge), MinAge, MinAge, MaxAge); err != nil {
		errs.add(FieldAge, "You must be between %d and %d years old", MinAge, MaxAge)
	} else {
		r.Age = age
	}

	edu, ok := choose(v.Get(FieldEducationType), b.EducationTypes)
	if !ok {
		errs.add(FieldEducationType, "unknown education status %q", v.Get(FieldEducationType))
	} else {
		r.EducationType = edu
	}

	r.University, r.Department, r.College, r.School = "", "", "", ""
	switch r.EducationType {
	case EducationUniversity:
		r.University = strings.TrimSpace(v.Get(FieldUniversity))
		r.Department = strings.TrimSpace(v.Get(FieldDepartment))
	case EducationCollege:
		r.College = strings.TrimSpace(v.Get(FieldCollege))
	case EducationSchool:
		r.School = strings.TrimSpace(v.Get(FieldSchool))
	}
	return errs.orNil()
}

// ApplyQuiz binds page 2. Both answer maps are replaced on every post.
func (b *Bank) ApplyQuiz(r *models.Response, d Draw, v Values) error {
	var errs ValidationError

	mc := make(map[string]string, len(d.MultipleChoice))
	for i, q := range d.MultipleChoice {
		answer, ok := choose(v.Get(MultipleChoiceField(i)), q.Options)
		if !ok {
			errs.add(MultipleChoiceField(i), "%q is not an option", v.Get(MultipleChoiceField(i)))
			continue
		}
		mc[q.Question] = answer
	}
	r.MultipleChoiceAnswers = mc

	desc := make(map[string]string, len(d.Descriptive))
	for i, q := range d.Descriptive {
		desc[q] = strings.TrimSpace(v.Get(DescriptiveField(i)))
	}
	r.DescriptiveAnswers = desc

	return errs.orNil()
}

// ApplyAssessment binds the non-file fields of page 3: the per-photo
// ratings, the location method and the distress point rating.
func (b *Bank) ApplyAssessment(r *models.Response, d Draw, v Values) error {
	var errs ValidationError

	assessments := make(map[string]models.ImageAssessment, len(d.Images))
	for i, url := range d.Images {
		kind, ok := choose(v.Get(ImageTypeField(i)), b.DistressTypes)
		if !ok {
			errs.add(ImageTypeField(i), "unknown distress type %q", v.Get(ImageTypeField(i)))
		}
		severity, err := parseBounded(v.Get(ImageSeverityField(i)), MinSeverity, MinSeverity, MaxSeverity)
		if err != nil {
			errs.add(ImageSeverityField(i), "severity must be between %d and %d", MinSeverity, MaxSeverity)
		}
		assessments[AssessmentKey(i)] = models.ImageAssessment{
			ImageURL:     url,
			DistressType: kind,
			Severity:     severity,
		}
	}
	r.ImageAssessments = assessments

	if method, ok := choose(v.Get(FieldLocationMethod), b.LocationMethods); ok {
		r.LocationMethod = method
	} else {
		errs.add(FieldLocationMethod, "unknown location method %q", v.Get(FieldLocationMethod))
	}

	if kind, ok := choose(v.Get(FieldDistressType), b.DistressTypes); ok {
		r.DistressType = kind
	} else {
		errs.add(FieldDistressType, "unknown distress type %q", v.Get(FieldDistressType))
	}
	if severity, err := parseBounded(v.Get(FieldSeverity), MinSeverity, MinSeverity, MaxSeverity); err == nil {
		r.DistressSeverity = severity
	} else {
		errs.add(FieldSeverity, "severity must be between %d and %d", MinSeverity, MaxSeverity)
	}

	return errs.orNil()
}

// DeviceLocation reads the browser geolocation fields. ok is false when
// they are missing, unparsable or off the globe.
func DeviceLocation(v Values) (*models.GPSCoords, bool) {
	latS, lonS := strings.TrimSpace(v.Get(FieldLatitude)), strings.TrimSpace(v.Get(FieldLongitude))
	if latS == "" || lonS == "" {
		return nil, false
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		return nil, false
	}
	if !geo.Valid(lat, lon) {
		return nil, false
	}
	c := models.NewGPSCoords(models.Coordinates{Lat: lat, Lon: lon}, models.SourceDevice)
	if acc, err := strconv.ParseFloat(strings.TrimSpace(v.Get(FieldAccuracy)), 64); err == nil && acc >= 0 {
		c.Accuracy = &acc
	}
	return c, true
}

// choose returns value if it is one of options. An empty value selects
// the first option, like an untouched radio group or select box.
func choose(value string, options []string) (string, bool) {
	if value == "" && len(options) > 0 {
		return options[0], true
	}
	if slices.Contains(options, value) {
		return value, true
	}
	return "", false
}

// parseBounded parses an integer in [lo, hi]; empty input yields def.
func parseBounded(s string, def, lo, hi int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}
