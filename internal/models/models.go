// internal/models/models.go
package models

import "time"

type Image struct {
	ID         int64     `db:"id"`
	Photo      []byte    `db:"photo"`
	Width      int       `db:"width"`
	Length     int       `db:"length"` // height in pixels
	Private    bool      `db:"private"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// Vote is unique per (IP, ImageID).
type Vote struct {
	ID      int64  `db:"id"`
	ImageID int64  `db:"image_id"`
	IP      string `db:"ip"`
}
