// model.go this code defines the data model for the classification history
package datastore

import "time"

// Capture is a single classified photo.
type Capture struct {
	ID             uint   `gorm:"primaryKey"`
	RequestID      string `gorm:"uniqueIndex:idx_captures_request_id;size:36"`
	Source         string `gorm:"size:16"` // cli or http
	FileName       string
	Orientation    int
	Model          string
	TopLabel       string        `gorm:"index:idx_captures_top_label;index:idx_captures_created_label,priority:2"`
	TopConfidence  float32       // confidence of TopLabel
	ProcessingTime time.Duration // wall time spent in recognition
	CreatedAt      time.Time     `gorm:"index:idx_captures_created_at;index:idx_captures_created_label,priority:1"`
	Results        []Results     `gorm:"foreignKey:CaptureID;constraint:OnDelete:CASCADE"`
}

// Results is one ranked recognition belonging to a Capture.
type Results struct {
	ID         uint `gorm:"primaryKey"`
	CaptureID  uint `gorm:"index;not null"`
	Position   int
	Label      string
	Confidence float32
}

// LabelCount is the number of captures whose top label was Label.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}
