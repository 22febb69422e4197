package request_test

import (
	"errors"
	"testing"

	"tubefetch/internal/errs"
	"tubefetch/internal/infrastructure/delivery/http/request"
)

func TestDownloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      request.Download
		wantURL string
		wantErr error
	}{
		{
			name:    "valid",
			in:      request.Download{URL: " https://youtu.be/abc ", Format: "137"},
			wantURL: "https://youtu.be/abc",
		},
		{
			name:    "no scheme",
			in:      request.Download{URL: "youtu.be/abc"},
			wantErr: errs.ErrInvalidURL,
		},
		{
			name:    "unsupported scheme",
			in:      request.Download{URL: "ftp://example.com/file"},
			wantErr: errs.ErrInvalidURL,
		},
		{
			name:    "empty",
			in:      request.Download{},
			wantErr: errs.ErrInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}

			if err == nil && tt.in.URL != tt.wantURL {
				t.Errorf("got url %q, want %q", tt.in.URL, tt.wantURL)
			}
		})
	}
}

func TestDownloadEntity(t *testing.T) {
	in := request.Download{URL: "https://youtu.be/abc", Format: "22", Title: "clip", ID: "s1"}

	got := in.Entity()
	if got.URL != in.URL || got.FormatID != "22" || got.Title != "clip" || got.ID != "s1" {
		t.Errorf("unexpected entity: %+v", got)
	}
}

func TestProgressValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      request.Progress
		wantErr bool
	}{
		{name: "url", in: request.Progress{URL: "https://youtu.be/abc"}},
		{name: "id only", in: request.Progress{ID: "s1"}},
		{name: "neither", in: request.Progress{}, wantErr: true},
		{name: "bad url", in: request.Progress{URL: "not a url"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
