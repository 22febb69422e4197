package response

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Attachment streams body as a file download of exactly size bytes.
// Once it returns the status line has been sent and no other response can be written.
func Attachment(w http.ResponseWriter, filename string, size int64, body io.Reader) error {
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.CopyN(w, body, size)
	if err != nil {
		return fmt.Errorf("copy %d of %d bytes: %w", n, size, err)
	}

	return nil
}
