// Package model contains the upload record shared by the HTTP server and the
// audit ledger.
package model

import (
	"time"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// Upload describes one stored file. The expiration is also carried by ID
// itself; ExpiresAt is kept alongside for readers that cannot decode IDs.
type Upload struct {
	ID          uploadid.ID `json:"id"`
	Name        string      `json:"name"`
	Size        int64       `json:"size"`
	ContentType string      `json:"contentType,omitempty"`
	URL         string      `json:"url,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expires"`
	// ReclaimedAt is nil while the content is still stored.
	ReclaimedAt *time.Time `json:"reclaimedAt,omitempty"`
}

// NewUpload fills in the times derived from id.
func NewUpload(id uploadid.ID, name string, size int64) *Upload {
	return &Upload{
		ID:        id,
		Name:      name,
		Size:      size,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: id.ExpiresAt().UTC(),
	}
}

// Path is the download path of the upload, relative to the server root.
func (u *Upload) Path() string {
	return "/" + u.ID.String() + "/" + u.Name
}
