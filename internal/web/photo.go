package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"roadsurvey/internal/exifgps"
	"roadsurvey/internal/imghost"
	"roadsurvey/internal/models"
	"roadsurvey/internal/session"
	"roadsurvey/internal/survey"
	"roadsurvey/pkg/geo"
)

// File inputs of the assessment page.
const (
	fieldUploadImage = "upload_image"
	fieldCameraImage = "camera_image"
)

// applyLocation handles the photo of the chosen location method. Every
// failure becomes a notice and leaves the affected field null; a post
// without a new photo keeps what was stored before. The caller holds the
// session lock.
func (h *Handler) applyLocation(r *http.Request, sess *session.Session) {
	switch sess.Data.LocationMethod {
	case survey.LocationUpload:
		photo, ok := h.readPhoto(r, sess, fieldUploadImage)
		if !ok {
			return
		}
		sess.Data.UploadedImageURL = h.upload(r, sess, photo)

		coords, err := exifgps.Resolve(bytes.NewReader(photo.Data))
		switch {
		case err == nil:
			sess.Data.GPSCoords = models.NewGPSCoords(coords, models.SourceEXIF)
			sess.Notify(session.LevelSuccess, "GPS coordinates found: %s", geo.Format(coords.Lat, coords.Lon))
		case errors.Is(err, exifgps.ErrMalformed):
			h.logger.Warn("could not convert gps coordinates", "session", sess.ID, "error", err)
			sess.Data.GPSCoords = &models.GPSCoords{Source: models.SourceEXIF}
			sess.Notify(session.LevelWarning, "Could not convert GPS coordinates")
		default:
			h.logger.Warn("no gps data found in the image", "session", sess.ID, "error", err)
			sess.Data.GPSCoords = &models.GPSCoords{Source: models.SourceEXIF}
			sess.Notify(session.LevelWarning, "No GPS data found in the image")
		}

	case survey.LocationCapture:
		photo, ok := h.readPhoto(r, sess, fieldCameraImage)
		if !ok {
			return
		}
		if coords, ok := survey.DeviceLocation(r.PostForm); ok {
			sess.Data.GPSCoords = coords
		} else {
			sess.Data.GPSCoords = &models.GPSCoords{Source: models.SourceDevice}
			sess.Notify(session.LevelWarning, "Getting location from image")
		}
		sess.Data.CapturedImageURL = h.upload(r, sess, photo)
	}
}

// readPhoto returns the posted photo in field. ok is false when no file was
// sent or the file was rejected.
func (h *Handler) readPhoto(r *http.Request, sess *session.Session, field string) (imghost.Photo, bool) {
	if r.MultipartForm == nil {
		return imghost.Photo{}, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			h.logger.Warn("failed to read photo", "session", sess.ID, "field", field, "error", err)
			sess.Notify(session.LevelError, "Image upload error: %v", err)
		}
		return imghost.Photo{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Warn("failed to read photo", "session", sess.ID, "field", field, "error", err)
		sess.Notify(session.LevelError, "Image upload error: %v", err)
		return imghost.Photo{}, false
	}

	contentType, err := imghost.CheckImage(header.Filename, data)
	if err != nil {
		h.logger.Info("rejected photo", "session", sess.ID, "file", header.Filename, "error", err)
		sess.Notify(session.LevelError, "Please upload a JPG or PNG image.")
		return imghost.Photo{}, false
	}

	return imghost.Photo{
		SessionID:   sess.ID,
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, true
}

// upload hosts the photo and returns its URL, or nil with a notice when the
// image host fails.
func (h *Handler) upload(r *http.Request, sess *session.Session, photo imghost.Photo) *string {
	url, err := h.uploader.Upload(r.Context(), photo)
	if err != nil {
		h.logger.Error("image upload failed", "session", sess.ID, "file", photo.FileName, "error", err)
		if errors.Is(err, imghost.ErrDisabled) {
			sess.Notify(session.LevelWarning, "Image hosting is not configured, so the photo was not stored.")
		} else {
			sess.Notify(session.LevelError, "Image upload error: %v", err)
		}
		return nil
	}
	h.logger.Info("photo uploaded", "session", sess.ID, "url", url)
	return &url
}
