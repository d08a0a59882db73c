package labeling

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skylabel/internal/models"
)

// typeCodePattern keeps type codes safe to embed in a filename.
var typeCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]*$`)

// Submission is the set of fields an annotator provides for one image.
// Names are optional when the code exists in the reference tables.
type Submission struct {
	AircraftTypeCode string      `json:"aircraft_type_code"`
	AircraftTypeName string      `json:"aircraft_type_name,omitempty"`
	AirlineCode      string      `json:"airline_code"`
	AirlineName      string      `json:"airline_name,omitempty"`
	Clarity          float64     `json:"clarity"`
	Occlusion        float64     `json:"occlusion"`
	RegistrationText string      `json:"registration_text"`
	RegistrationBox  *models.Box `json:"registration_box"`
}

func (s *Submission) normalize() {
	s.AircraftTypeCode = strings.TrimSpace(s.AircraftTypeCode)
	s.AircraftTypeName = strings.TrimSpace(s.AircraftTypeName)
	s.AirlineCode = strings.TrimSpace(s.AirlineCode)
	s.AirlineName = strings.TrimSpace(s.AirlineName)
	s.RegistrationText = strings.TrimSpace(s.RegistrationText)
}

// Validate checks every field. The error, if any, is a validation.Errors
// keyed by JSON field name.
func (s Submission) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.AircraftTypeCode, validation.Required, validation.Length(1, 32), validation.Match(typeCodePattern)),
		validation.Field(&s.AirlineCode, validation.Required, validation.Length(1, 32)),
		validation.Field(&s.Clarity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&s.Occlusion, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&s.RegistrationText, validation.Required, validation.Length(1, 32)),
		validation.Field(&s.RegistrationBox, validation.Required),
	)
}
