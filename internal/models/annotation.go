// Package models defines the domain types for skylabel.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Box is a normalized bounding box: center and size as fractions of the
// image dimensions.
type Box struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Validate checks every component lies in [0,1] and the box has area.
func (b Box) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.CenterX, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&b.CenterY, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&b.Width, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
		validation.Field(&b.Height, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
	)
}

// Annotation is a committed label for one image.
type Annotation struct {
	ID               int64     `json:"id"`
	AssignedFilename string    `json:"assigned_filename"`
	SourceFilename   string    `json:"source_filename"`
	AircraftTypeCode string    `json:"aircraft_type_code"`
	AircraftTypeName string    `json:"aircraft_type_name"`
	AirlineCode      string    `json:"airline_code"`
	AirlineName      string    `json:"airline_name"`
	Clarity          float64   `json:"clarity"`
	Occlusion        float64   `json:"occlusion"`
	RegistrationText string    `json:"registration_text"`
	RegistrationBox  Box       `json:"registration_box"`
	CreatedBy        string    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SkipRecord marks an image as permanently excluded from labeling.
type SkipRecord struct {
	Filename  string    `json:"filename"`
	SkippedBy string    `json:"skipped_by"`
	SkippedAt time.Time `json:"skipped_at"`
}

// IDRange is an inclusive id filter. A nil bound is open.
type IDRange struct {
	Start *int64
	End   *int64
}

// ReferenceEntry is one aircraft type or airline in the lookup tables.
type ReferenceEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// GroupCount is one bucket of a group-by count.
type GroupCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes labeling progress.
type Stats struct {
	TotalLabeled int          `json:"total_labeled"`
	Unlabeled    int          `json:"unlabeled"`
	Skipped      int          `json:"skipped"`
	ByType       []GroupCount `json:"by_type"`
	ByAirline    []GroupCount `json:"by_airline"`
}

// Inventory is the per-requester view of the unlabeled pool.
type Inventory struct {
	// Available lists images the requester may work on: free ones plus
	// the ones it already holds.
	Available       []string `json:"available"`
	Held            []string `json:"held"`
	LeasedElsewhere []string `json:"leased_elsewhere"`
	LabeledCount    int      `json:"labeled_count"`
	SkippedCount    int      `json:"skipped_count"`
}

// ReferenceKind selects a reference data table.
type ReferenceKind string

const (
	KindAircraftType ReferenceKind = "aircraft_types"
	KindAirline      ReferenceKind = "airlines"
)
