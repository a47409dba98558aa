package domain

import "time"

// Template is a reusable reply scaffold managed outside the pipeline.
// The generator treats a matched template as a style hint, not a literal body.
type Template struct {
	ID        string
	Name      string
	Category  MessageType
	Product   ProductInterest
	Subject   string
	BodyText  string
	BodyHTML  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
