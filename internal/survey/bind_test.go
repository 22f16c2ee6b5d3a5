package survey

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsurvey/internal/models"
)

func testBankAndDraw(t *testing.T) (*Bank, Draw) {
	t.Helper()
	b, err := DefaultBank()
	require.NoError(t, err)
	return b, Draw{
		MultipleChoice: b.MultipleChoice[:3],
		Descriptive:    b.Descriptive[:2],
		Images:         b.Images[:4],
	}
}

func TestApplyPersonal(t *testing.T) {
	b, _ := testBankAndDraw(t)

	t.Run("university fields kept", func(t *testing.T) {
		var r models.Response
		err := b.ApplyPersonal(&r, url.Values{
			FieldName:          {"  Ada  "},
			FieldAge:           {"31"},
			FieldEducationType: {"University"},
			FieldUniversity:    {"BUET"},
			FieldDepartment:    {"Civil"},
			FieldSchool:        {"ignored"},
			FieldEmail:         {"ada@example.org"},
			FieldPhone:         {"+880"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Ada", r.Name)
		assert.Equal(t, 31, r.Age)
		assert.Equal(t, "BUET", r.University)
		assert.Equal(t, "Civil", r.Department)
		assert.Empty(t, r.School)
	})

	t.Run("switching education clears stale fields", func(t *testing.T) {
		r := models.Response{University: "BUET", Department: "Civil"}
		require.NoError(t, b.ApplyPersonal(&r, url.Values{
			FieldEducationType: {"College"},
			FieldCollege:       {"Notre Dame"},
		}))
		assert.Equal(t, "Notre Dame", r.College)
		assert.Empty(t, r.University)
		assert.Empty(t, r.Department)
	})

	t.Run("defaults", func(t *testing.T) {
		var r models.Response
		require.NoError(t, b.ApplyPersonal(&r, url.Values{}))
		assert.Equal(t, MinAge, r.Age)
		assert.Equal(t, "University", r.EducationType)
	})

	t.Run("age out of range", func(t *testing.T) {
		r := models.Response{Age: 40}
		err := b.ApplyPersonal(&r, url.Values{FieldAge: {"17"}})
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr, 1)
		assert.Equal(t, FieldAge, verr[0].Field)
		assert.Equal(t, 40, r.Age, "previous value kept")
	})

	t.Run("unknown education", func(t *testing.T) {
		var r models.Response
		err := b.ApplyPersonal(&r, url.Values{FieldEducationType: {"Astronaut"}, FieldAge: {"abc"}})
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr, 2)
	})
}

func TestApplyQuiz(t *testing.T) {
	b, d := testBankAndDraw(t)

	var r models.Response
	r.MultipleChoiceAnswers = map[string]string{"stale question": "stale"}
	err := b.ApplyQuiz(&r, d, url.Values{
		MultipleChoiceField(0): {d.MultipleChoice[0].Options[2]},
		MultipleChoiceField(2): {d.MultipleChoice[2].Options[4]},
		DescriptiveField(0):    {"  take a photo  "},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		d.MultipleChoice[0].Question: d.MultipleChoice[0].Options[2],
		d.MultipleChoice[1].Question: d.MultipleChoice[1].Options[0],
		d.MultipleChoice[2].Question: d.MultipleChoice[2].Options[4],
	}, r.MultipleChoiceAnswers)
	assert.Equal(t, map[string]string{
		d.Descriptive[0]: "take a photo",
		d.Descriptive[1]: "",
	}, r.DescriptiveAnswers)

	err = b.ApplyQuiz(&r, d, url.Values{MultipleChoiceField(1): {"not an option"}})
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MultipleChoiceField(1), verr[0].Field)
}

func TestApplyAssessment(t *testing.T) {
	b, d := testBankAndDraw(t)

	var r models.Response
	err := b.ApplyAssessment(&r, d, url.Values{
		ImageTypeField(0):     {"Raveling"},
		ImageSeverityField(0): {"4"},
		ImageTypeField(3):     {"Edge Crack"},
		FieldLocationMethod:   {LocationCapture},
		FieldDistressType:     {"Crack"},
		FieldSeverity:         {"5"},
	})
	require.NoError(t, err)

	require.Len(t, r.ImageAssessments, 4)
	assert.Equal(t, models.ImageAssessment{ImageURL: d.Images[0], DistressType: "Raveling", Severity: 4}, r.ImageAssessments["image_assessment_0"])
	assert.Equal(t, models.ImageAssessment{ImageURL: d.Images[1], DistressType: "Pothole", Severity: 1}, r.ImageAssessments["image_assessment_1"])
	assert.Equal(t, "Edge Crack", r.ImageAssessments["image_assessment_3"].DistressType)
	assert.Equal(t, LocationCapture, r.LocationMethod)
	assert.Equal(t, "Crack", r.DistressType)
	assert.Equal(t, 5, r.DistressSeverity)

	err = b.ApplyAssessment(&r, d, url.Values{FieldSeverity: {"9"}, ImageSeverityField(2): {"0"}})
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr, 2)
	assert.Equal(t, 5, r.DistressSeverity, "previous value kept")
}

func TestDeviceLocation(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		wantOK bool
	}{
		{"full fix", url.Values{FieldLatitude: {"23.81"}, FieldLongitude: {"90.41"}, FieldAccuracy: {"12.5"}}, true},
		{"no accuracy", url.Values{FieldLatitude: {"23.81"}, FieldLongitude: {"90.41"}}, true},
		{"missing", url.Values{}, false},
		{"garbage", url.Values{FieldLatitude: {"north"}, FieldLongitude: {"90"}}, false},
		{"off the globe", url.Values{FieldLatitude: {"123"}, FieldLongitude: {"90"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := DeviceLocation(tt.values)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				assert.Nil(t, c)
				return
			}
			p, located := c.Point()
			require.True(t, located)
			assert.InDelta(t, 23.81, p.Lat, 1e-9)
			assert.Equal(t, models.SourceDevice, c.Source)
		})
	}
}
