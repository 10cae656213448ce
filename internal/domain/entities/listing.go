package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Listing is an obituary listing as published on the site. SubjectID is the
// stable identifier for the deceased person the listing describes;
// ContentFingerprint is a content hash used by the ingest pipeline to
// recognize the same obituary arriving again from another source.
type Listing struct {
	SubjectID          string
	ContentFingerprint string
	FullName           string
	DateOfDeath        time.Time
	PublishedAt        time.Time
	SuppressedAt       null.Time
	SuppressedReason   null.String
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Suppressed reports whether the listing is currently withheld from the site.
func (l *Listing) Suppressed() bool {
	return l.SuppressedAt.Valid
}
