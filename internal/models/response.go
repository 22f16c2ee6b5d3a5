package models

// Response is the mapping collected across the three survey pages. JSON
// keys are the field names shown to the participant's data consumers.
// Each page overwrites only the fields it owns.
type Response struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	EducationType string `json:"education_type"`
	University    string `json:"university,omitempty"`
	Department    string `json:"department,omitempty"`
	College       string `json:"college,omitempty"`
	School        string `json:"school,omitempty"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`

	MultipleChoiceAnswers map[string]string `json:"multiple_choice_answers,omitempty"`
	DescriptiveAnswers    map[string]string `json:"descriptive_answers,omitempty"`

	ImageAssessments map[string]ImageAssessment `json:"image_assessments,omitempty"`
	LocationMethod   string                     `json:"location_method,omitempty"`
	UploadedImageURL *string                    `json:"uploaded_image_url,omitempty"`
	CapturedImageURL *string                    `json:"captured_image_url,omitempty"`
	GPSCoords        *GPSCoords                 `json:"gps_coords,omitempty"`
	DistressType     string                     `json:"distress_type,omitempty"`
	DistressSeverity int                        `json:"distress_severity,omitempty"`
}

// ImageAssessment is the participant's rating of one survey photo.
type ImageAssessment struct {
	ImageURL     string `json:"image_url"`
	DistressType string `json:"distress_type"`
	Severity     int    `json:"severity"`
}
