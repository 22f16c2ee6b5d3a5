package keys

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"roadsurvey/internal/models"
)

// sanitizeKey replaces spaces with hyphens and lowercases the string.
func sanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

// Submission returns the canonical object key of an archived submission,
// partitioned by submission date.
func Submission(s *models.Submission) string {
	return fmt.Sprintf("submissions/%s/%s.json",
		s.SubmittedAt.UTC().Format("2006/01/02"),
		sanitizeKey(s.ID),
	)
}

// Photo returns a fresh object key for a participant photo. The extension
// of fileName is kept so browsers can infer the type.
func Photo(sessionID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("photos/%s/%s%s", sanitizeKey(sessionID), uuid.NewString(), ext)
}
