// Package request holds HTTP request bodies and their validation.
package request

import (
	"tubefetch/internal/entity"
	"tubefetch/internal/errs"
	"tubefetch/pkg/urls"
)

// VideoInfo is the body of a video info request.
type VideoInfo struct {
	URL string `json:"url"`
}

// Validate checks that the URL is an absolute http(s) URL.
func (v *VideoInfo) Validate() error {
	v.URL = urls.Normalize(v.URL)
	if !urls.IsURLValid(v.URL) {
		return errs.ErrInvalidURL
	}

	return nil
}

// Download is the body of a download request.
type Download struct {
	URL    string `json:"url"`
	Format string `json:"format"` // format id from the video info response, empty selects the best quality
	Title  string `json:"title"`
	ID     string `json:"id"` // optional progress session id
}

// Validate checks that the URL is an absolute http(s) URL.
// The format id is validated by the service.
func (d *Download) Validate() error {
	d.URL = urls.Normalize(d.URL)
	if !urls.IsURLValid(d.URL) {
		return errs.ErrInvalidURL
	}

	return nil
}

// Entity converts the body to a download request.
func (d *Download) Entity() entity.DownloadRequest {
	return entity.DownloadRequest{
		URL:      d.URL,
		FormatID: d.Format,
		Title:    d.Title,
		ID:       d.ID,
	}
}

// Progress holds the query parameters of a progress stream.
type Progress struct {
	URL string
	ID  string
}

// Validate requires either a valid URL or an explicit id.
func (p *Progress) Validate() error {
	if p.ID != "" {
		return nil
	}

	p.URL = urls.Normalize(p.URL)
	if !urls.IsURLValid(p.URL) {
		return errs.ErrInvalidURL
	}

	return nil
}
