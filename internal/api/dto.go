package api

import (
	"github.com/starford/skylabel/internal/labeling"
	"github.com/starford/skylabel/internal/lease"
	"github.com/starford/skylabel/internal/models"
)

// SubmitAnnotationRequest is the request body for committing an annotation.
type SubmitAnnotationRequest struct {
	SourceFilename string `json:"source_filename" example:"IMG_0042.jpg" validate:"required"`
	labeling.Submission
}

// SkipRequest is the request body for marking an image unusable.
type SkipRequest struct {
	Filename string `json:"filename" example:"IMG_0042.jpg" validate:"required"`
}

// HolderResponse is returned when a new holder id is issued.
type HolderResponse struct {
	HolderID string `json:"holder_id" example:"0b5e7f0e-5b0a-4f57-9c3e-8b6a1d2f4e11" validate:"required"`
}

// LeaseResponse describes a live lease.
type LeaseResponse = lease.Lease

// ReleaseAllResponse reports how many leases were dropped.
type ReleaseAllResponse struct {
	Released int `json:"released" example:"2"`
}

// InventoryResponse is a holder's view of the unlabeled pool.
type InventoryResponse = models.Inventory

// AnnotationListResponse wraps paginated annotation listings.
type AnnotationListResponse = labeling.AnnotationPage

// ReferenceListResponse wraps reference data entries.
type ReferenceListResponse struct {
	Entries []models.ReferenceEntry `json:"entries" validate:"required"`
}
