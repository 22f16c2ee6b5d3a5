package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsurvey/internal/imghost"
	"roadsurvey/internal/models"
	"roadsurvey/internal/session"
	"roadsurvey/internal/survey"
	"roadsurvey/internal/testutil"
)

var (
	dhakaLat = testutil.DMS{{23, 1}, {48, 1}, {3600, 100}}
	dhakaLon = testutil.DMS{{90, 1}, {24, 1}, {1800, 100}}
)

type fakeUploader struct {
	mu     sync.Mutex
	photos []imghost.Photo
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, p imghost.Photo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, p)
	if f.err != nil {
		return "", f.err
	}
	return "https://i.ibb.co.com/test/" + p.FileName, nil
}

type fakeArchiver struct {
	mu   sync.Mutex
	subs []*models.Submission
	err  error
}

func (f *fakeArchiver) StoreSubmission(_ context.Context, _ string, sub *models.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.subs = append(f.subs, sub)
	return "submissions/" + sub.ID + ".json", nil
}

type harness struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	uploader *fakeUploader
	archiver *fakeArchiver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLimit(t, 1<<20)
}

func newHarnessWithLimit(t *testing.T, maxUpload int64) *harness {
	t.Helper()
	logger := testutil.DiscardLogger()

	bank, err := survey.DefaultBank()
	require.NoError(t, err)
	store, err := session.NewStore(bank, session.Options{Secret: "test-secret"}, logger)
	require.NoError(t, err)

	up := &fakeUploader{}
	arch := &fakeArchiver{}
	h, err := NewHandler(bank, up, NewSubmissionPipeline(logger, arch, "survey"), Options{
		CDNPrefix:      "https://cdn.example.org/",
		MaxUploadBytes: maxUpload,
	}, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(h, store, logger))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		t:        t,
		srv:      srv,
		client:   &http.Client{Jar: jar},
		uploader: up,
		archiver: arch,
	}
}

type filePart struct {
	field, name string
	data        []byte
}

func (hs *harness) get(path string) (int, string) {
	hs.t.Helper()
	resp, err := hs.client.Get(hs.srv.URL + path)
	require.NoError(hs.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(hs.t, err)
	return resp.StatusCode, string(body)
}

func (hs *harness) post(page int, values map[string]string, files ...filePart) (int, string) {
	hs.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(hs.t, mw.WriteField("page", strconv.Itoa(page)))
	for k, v := range values {
		require.NoError(hs.t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(hs.t, err)
		_, err = fw.Write(f.data)
		require.NoError(hs.t, err)
	}
	require.NoError(hs.t, mw.Close())

	resp, err := hs.client.Post(hs.srv.URL+surveyPath, mw.FormDataContentType(), &buf)
	require.NoError(hs.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(hs.t, err)
	return resp.StatusCode, string(body)
}

func (hs *harness) data() models.Response {
	hs.t.Helper()
	code, body := hs.get(surveyPath + "/data")
	require.Equal(hs.t, http.StatusOK, code)
	var r models.Response
	require.NoError(hs.t, json.Unmarshal([]byte(body), &r))
	return r
}

// toAssessment walks through the first two pages with valid input.
func (hs *harness) toAssessment() {
	hs.t.Helper()
	hs.get(surveyPath)
	_, body := hs.post(survey.PagePersonal, map[string]string{
		"name": "Rahima Akter", "age": "27", "education_type": "University",
		"university": "BUET", "department": "Civil Engineering",
		"email": "rahima@example.org", "action": "next",
	})
	require.Contains(hs.t, body, "Road Distress Knowledge Test")
	_, body = hs.post(survey.PageQuiz, map[string]string{"action": "next"})
	require.Contains(hs.t, body, "Image and GPS Test")
}

func TestHealthz(t *testing.T) {
	hs := newHarness(t)
	code, body := hs.get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestIndexRedirectsToSurvey(t *testing.T) {
	hs := newHarness(t)
	code, body := hs.get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Personal and Contact Information")
	assert.Contains(t, body, `style="width: 33%"`)
}

func TestSurveyFlow(t *testing.T) {
	hs := newHarness(t)
	hs.toAssessment()

	d := hs.data()
	assert.Equal(t, "Rahima Akter", d.Name)
	assert.Equal(t, 27, d.Age)
	assert.Equal(t, "BUET", d.University)
	assert.Len(t, d.MultipleChoiceAnswers, 3)
	assert.Len(t, d.DescriptiveAnswers, 2)

	photo := testutil.JPEG(testutil.GPSTIFF("N", dhakaLat, "E", dhakaLon))
	_, body := hs.post(survey.PageAssessment, map[string]string{
		"location_method":   survey.LocationUpload,
		"image_0_type":      "Crack",
		"image_0_severity":  "4",
		"distress_type":     "Pothole",
		"distress_severity": "5",
		"action":            "save",
	}, filePart{field: fieldUploadImage, name: "road.jpg", data: photo})

	assert.Contains(t, body, "GPS coordinates found: 23.810000, 90.405000")
	assert.Contains(t, body, "23.810000")
	assert.Contains(t, body, "90.405000")
	assert.Contains(t, body, "https://cdn.example.org/")

	d = hs.data()
	require.NotNil(t, d.UploadedImageURL)
	assert.Equal(t, "https://i.ibb.co.com/test/road.jpg", *d.UploadedImageURL)
	p, ok := d.GPSCoords.Point()
	require.True(t, ok)
	assert.InDelta(t, 23.81, p.Lat, 1e-9)
	assert.InDelta(t, 90.405, p.Lon, 1e-9)
	assert.Equal(t, models.SourceEXIF, d.GPSCoords.Source)
	assert.Equal(t, "Crack", d.ImageAssessments["image_assessment_0"].DistressType)
	assert.Equal(t, 4, d.ImageAssessments["image_assessment_0"].Severity)
	assert.Equal(t, 5, d.DistressSeverity)

	// a post without a new photo keeps the stored url and coordinates
	_, body = hs.post(survey.PageAssessment, map[string]string{
		"location_method": survey.LocationUpload,
		"action":          "submit",
	})
	assert.Contains(t, body, "Survey submitted")
	assert.Contains(t, body, "Thank you! Your survey has been submitted.")
	assert.Contains(t, body, "&#34;uploaded_image_url&#34;: &#34;https://i.ibb.co.com/test/road.jpg&#34;")

	require.Len(t, hs.archiver.subs, 1)
	sub := hs.archiver.subs[0]
	assert.Equal(t, "Rahima Akter", sub.Data.Name)
	require.NotNil(t, sub.Data.GPSCoords)
	assert.Len(t, hs.uploader.photos, 1)

	// once submitted, further posts do not change the data
	hs.post(survey.PageAssessment, map[string]string{"action": "back"})
	_, body = hs.get(surveyPath)
	assert.Contains(t, body, "Survey submitted")
}

func TestValidationKeepsPage(t *testing.T) {
	hs := newHarness(t)
	hs.get(surveyPath)

	_, body := hs.post(survey.PagePersonal, map[string]string{"name": "Young", "age": "17", "action": "next"})
	assert.Contains(t, body, "Personal and Contact Information")
	assert.Contains(t, body, "You must be between 18 and 80 years old")
	assert.Equal(t, "Young", hs.data().Name)
}

func TestBackSkipsValidation(t *testing.T) {
	hs := newHarness(t)
	hs.toAssessment()

	_, body := hs.post(survey.PageAssessment, map[string]string{"distress_severity": "9", "action": "back"})
	assert.Contains(t, body, "Road Distress Knowledge Test")
	assert.NotContains(t, body, "severity must be between")
}

// firstAction is the action of the form's first submit button, the one a
// browser uses when Enter is pressed inside the form.
func firstAction(t *testing.T, body string) string {
	t.Helper()
	const marker = `name="action" value="`
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "no action button in page")
	rest := body[i+len(marker):]
	return rest[:strings.IndexByte(rest, '"')]
}

func TestEnterKeyDefaultAction(t *testing.T) {
	hs := newHarness(t)
	hs.get(surveyPath)
	_, body := hs.post(survey.PagePersonal, map[string]string{
		"name": "Rahima Akter", "age": "27", "education_type": "University",
		"university": "BUET", "department": "Civil Engineering",
		"email": "rahima@example.org", "action": "next",
	})
	assert.Equal(t, "next", firstAction(t, body))

	_, body = hs.post(survey.PageQuiz, map[string]string{"action": "next"})
	require.Contains(t, body, "Image and GPS Test")
	assert.Equal(t, "save", firstAction(t, body))
}

func TestStalePagePost(t *testing.T) {
	hs := newHarness(t)
	hs.get(surveyPath)

	_, body := hs.post(survey.PageAssessment, map[string]string{"action": "submit"})
	assert.Contains(t, body, "This page was out of date")
	assert.Contains(t, body, "Personal and Contact Information")
	assert.Empty(t, hs.archiver.subs)
}

func TestSubmitOnlyOnLastPage(t *testing.T) {
	hs := newHarness(t)
	hs.get(surveyPath)

	_, body := hs.post(survey.PagePersonal, map[string]string{"action": "submit"})
	assert.Contains(t, body, "Please complete every page before submitting.")
	assert.Empty(t, hs.archiver.subs)
}

func TestUploadFailureContinues(t *testing.T) {
	hs := newHarness(t)
	hs.uploader.err = errors.New("imgbb upload: unexpected status 502 Bad Gateway")
	hs.toAssessment()

	photo := testutil.JPEG(testutil.GPSTIFF("S", dhakaLat, "W", dhakaLon))
	_, body := hs.post(survey.PageAssessment, map[string]string{
		"location_method": survey.LocationUpload,
		"action":          "save",
	}, filePart{field: fieldUploadImage, name: "road.jpg", data: photo})

	assert.Contains(t, body, "Image upload error")
	d := hs.data()
	assert.Nil(t, d.UploadedImageURL)
	p, ok := d.GPSCoords.Point()
	require.True(t, ok)
	assert.InDelta(t, -23.81, p.Lat, 1e-9)
	assert.InDelta(t, -90.405, p.Lon, 1e-9)
}

func TestUploadWithoutGPS(t *testing.T) {
	hs := newHarness(t)
	hs.toAssessment()

	_, body := hs.post(survey.PageAssessment, map[string]string{
		"location_method": survey.LocationUpload,
		"action":          "save",
	}, filePart{field: fieldUploadImage, name: "plain.png", data: testutil.PNG(nil)})

	assert.Contains(t, body, "No GPS data found in the image")
	d := hs.data()
	require.NotNil(t, d.UploadedImageURL)
	_, ok := d.GPSCoords.Point()
	assert.False(t, ok)
}

func TestUploadWithUnconvertibleGPS(t *testing.T) {
	tests := []struct {
		name  string
		photo []byte
	}{
		{"unknown hemisphere", testutil.JPEG(testutil.GPSTIFF("X", dhakaLat, "E", dhakaLon))},
		{"latitude past the pole", testutil.JPEG(testutil.GPSTIFF("N", testutil.DMS{{95, 1}, {0, 1}, {0, 1}}, "E", dhakaLon))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness(t)
			hs.toAssessment()

			_, body := hs.post(survey.PageAssessment, map[string]string{
				"location_method": survey.LocationUpload,
				"action":          "save",
			}, filePart{field: fieldUploadImage, name: "road.jpg", data: tt.photo})

			assert.Contains(t, body, "Could not convert GPS coordinates")
			assert.NotContains(t, body, "GPS coordinates found")
			d := hs.data()
			require.NotNil(t, d.UploadedImageURL)
			require.NotNil(t, d.GPSCoords)
			assert.Nil(t, d.GPSCoords.Latitude)
			assert.Nil(t, d.GPSCoords.Longitude)
			assert.Equal(t, models.SourceEXIF, d.GPSCoords.Source)
		})
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	hs := newHarness(t)
	hs.toAssessment()

	_, body := hs.post(survey.PageAssessment, map[string]string{
		"location_method": survey.LocationUpload,
		"action":          "save",
	}, filePart{field: fieldUploadImage, name: "notes.png", data: []byte("plain text, not a photo")})

	assert.Contains(t, body, "Please upload a JPG or PNG image.")
	assert.Empty(t, hs.uploader.photos)
	assert.Nil(t, hs.data().UploadedImageURL)
}

func TestCaptureImage(t *testing.T) {
	t.Run("with device location", func(t *testing.T) {
		hs := newHarness(t)
		hs.toAssessment()

		_, body := hs.post(survey.PageAssessment, map[string]string{
			"location_method": survey.LocationCapture,
			"geo_latitude":    "23.7806",
			"geo_longitude":   "90.2794",
			"geo_accuracy":    "12.5",
			"action":          "save",
		}, filePart{field: fieldCameraImage, name: "camera.jpg", data: testutil.JPEG(nil)})

		assert.Contains(t, body, "12.50 meters")
		d := hs.data()
		require.NotNil(t, d.CapturedImageURL)
		p, ok := d.GPSCoords.Point()
		require.True(t, ok)
		assert.Equal(t, 23.7806, p.Lat)
		assert.Equal(t, models.SourceDevice, d.GPSCoords.Source)
		require.NotNil(t, d.GPSCoords.Accuracy)
		assert.Equal(t, 12.5, *d.GPSCoords.Accuracy)
	})

	t.Run("without device location", func(t *testing.T) {
		hs := newHarness(t)
		hs.toAssessment()

		_, body := hs.post(survey.PageAssessment, map[string]string{
			"location_method": survey.LocationCapture,
			"action":          "save",
		}, filePart{field: fieldCameraImage, name: "camera.jpg", data: testutil.JPEG(nil)})

		assert.Contains(t, body, "Getting location from image")
		d := hs.data()
		require.NotNil(t, d.GPSCoords)
		assert.Nil(t, d.GPSCoords.Latitude)
		assert.Nil(t, d.GPSCoords.Longitude)
		require.NotNil(t, d.CapturedImageURL)
	})
}

func TestArchiveFailureWarns(t *testing.T) {
	hs := newHarness(t)
	hs.archiver.err = errors.New("bucket unavailable")
	hs.toAssessment()

	_, body := hs.post(survey.PageAssessment, map[string]string{"action": "submit"})
	assert.Contains(t, body, "Survey submitted")
	assert.Contains(t, body, "could not be saved to the archive")
}

func TestRestart(t *testing.T) {
	hs := newHarness(t)
	hs.toAssessment()
	require.Equal(t, "Rahima Akter", hs.data().Name)

	resp, err := hs.client.Post(hs.srv.URL+surveyPath+"/restart", "application/x-www-form-urlencoded", strings.NewReader(""))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "Personal and Contact Information")
	assert.Empty(t, hs.data().Name)
}

func TestUploadTooLarge(t *testing.T) {
	hs := newHarnessWithLimit(t, 64<<10)
	hs.toAssessment()

	big := append(testutil.JPEG(nil), make([]byte, 100<<10)...)
	_, body := hs.post(survey.PageAssessment, map[string]string{"action": "save"},
		filePart{field: fieldUploadImage, name: "huge.jpg", data: big})

	assert.Contains(t, body, "The upload is too large.")
	assert.Empty(t, hs.uploader.photos)
}
