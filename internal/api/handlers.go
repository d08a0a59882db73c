package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/skylabel/internal/apperr"
	"github.com/starford/skylabel/internal/checksum"
	"github.com/starford/skylabel/internal/labeling"
	"github.com/starford/skylabel/internal/models"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *labeling.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *labeling.Service) *Handler {
	return &Handler{svc: svc}
}

// pathParam returns a decoded URL parameter. Clients may percent-encode
// filenames containing spaces or other reserved characters.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func annotationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid annotation id"))
		return 0, false
	}
	return id, true
}

// IssueHolder handles POST /api/holders.
//
//	@Summary		Issue a fresh holder id for a new annotator session
//	@Tags			holders
//	@Produce		json
//	@Success		201	{object}	HolderResponse
//	@Router			/holders [post]
func (h *Handler) IssueHolder(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, HolderResponse{HolderID: uuid.NewString()})
}

// Inventory handles GET /api/inventory.
//
//	@Summary		List the unlabeled pool as seen by the caller
//	@Tags			inventory
//	@Produce		json
//	@Param			X-Holder-ID	header		string	true	"Holder id"
//	@Success		200			{object}	InventoryResponse
//	@Router			/inventory [get]
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.ListInventory(r.Context(), HolderFrom(r.Context()))
	if err != nil {
		writeError(w, "list inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// AcquireLease handles POST /api/leases/{filename}.
//
//	@Summary		Lease an image for annotation
//	@Tags			leases
//	@Produce		json
//	@Param			filename	path		string	true	"Image filename"
//	@Param			X-Holder-ID	header		string	true	"Holder id"
//	@Success		200			{object}	LeaseResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/leases/{filename} [post]
func (h *Handler) AcquireLease(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.AcquireLease(r.Context(), pathParam(r, "filename"), HolderFrom(r.Context()))
	if err != nil {
		writeError(w, "acquire lease", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Heartbeat handles PUT /api/leases/{filename}/heartbeat.
//
//	@Summary		Extend a live lease
//	@Tags			leases
//	@Produce		json
//	@Param			filename	path		string	true	"Image filename"
//	@Param			X-Holder-ID	header		string	true	"Holder id"
//	@Success		200			{object}	LeaseResponse
//	@Failure		409			{object}	errResponse
//	@Router			/leases/{filename}/heartbeat [put]
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Heartbeat(r.Context(), pathParam(r, "filename"), HolderFrom(r.Context()))
	if err != nil {
		writeError(w, "heartbeat", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ReleaseLease handles DELETE /api/leases/{filename}.
//
//	@Summary		Release a lease (idempotent)
//	@Tags			leases
//	@Param			filename	path	string	true	"Image filename"
//	@Param			X-Holder-ID	header	string	true	"Holder id"
//	@Success		204			"Lease released"
//	@Router			/leases/{filename} [delete]
func (h *Handler) ReleaseLease(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReleaseLease(r.Context(), pathParam(r, "filename"), HolderFrom(r.Context())); err != nil {
		writeError(w, "release lease", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReleaseAll handles POST /api/holders/{holder}/release. It is shaped for
// navigator.sendBeacon on page unload, which can only POST.
//
//	@Summary		Release every lease held by a holder
//	@Tags			holders
//	@Produce		json
//	@Param			holder	path		string	true	"Holder id"
//	@Success		200		{object}	ReleaseAllResponse
//	@Router			/holders/{holder}/release [post]
func (h *Handler) ReleaseAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ReleaseAll(r.Context(), pathParam(r, "holder"))
	if err != nil {
		writeError(w, "release all", err)
		return
	}
	writeJSON(w, http.StatusOK, ReleaseAllResponse{Released: n})
}

// LeaseInfo handles GET /api/leases/{filename}.
//
//	@Summary		Show the live lease on an image
//	@Tags			leases
//	@Produce		json
//	@Param			filename	path		string	true	"Image filename"
//	@Success		200			{object}	LeaseResponse
//	@Failure		404			{object}	errResponse
//	@Router			/leases/{filename} [get]
func (h *Handler) LeaseInfo(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.LeaseInfo(r.Context(), pathParam(r, "filename"))
	if err != nil {
		writeError(w, "lease info", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// SubmitAnnotation handles POST /api/annotations.
//
//	@Summary		Commit an annotation for a leased image
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			X-Holder-ID	header		string					true	"Holder id"
//	@Param			body		body		SubmitAnnotationRequest	true	"Annotation"
//	@Success		201			{object}	models.Annotation
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		410			{object}	errResponse
//	@Router			/annotations [post]
func (h *Handler) SubmitAnnotation(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnnotationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := h.svc.SubmitAnnotation(r.Context(), req.SourceFilename, HolderFrom(r.Context()), req.Submission)
	if err != nil {
		writeError(w, "submit annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// MarkSkip handles POST /api/skips.
//
//	@Summary		Exclude an unusable image from labeling
//	@Tags			inventory
//	@Accept			json
//	@Param			X-Holder-ID	header	string		true	"Holder id"
//	@Param			body		body	SkipRequest	true	"Image to skip"
//	@Success		204			"Skipped"
//	@Failure		409			{object}	errResponse
//	@Router			/skips [post]
func (h *Handler) MarkSkip(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.MarkSkip(r.Context(), strings.TrimSpace(req.Filename), HolderFrom(r.Context())); err != nil {
		writeError(w, "mark skip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAnnotations handles GET /api/annotations.
//
//	@Summary		List annotations, newest first
//	@Tags			annotations
//	@Produce		json
//	@Param			page		query		int	false	"Page (1-based)"
//	@Param			per_page	query		int	false	"Page size"
//	@Success		200			{object}	AnnotationListResponse
//	@Router			/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	res, err := h.svc.ListAnnotations(r.Context(), page, perPage)
	if err != nil {
		writeError(w, "list annotations", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetAnnotation handles GET /api/annotations/{id}.
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := annotationID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetAnnotation(r.Context(), id)
	if err != nil {
		writeError(w, "get annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAnnotation handles PUT /api/annotations/{id}. The assigned filename
// is not editable.
func (h *Handler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := annotationID(w, r)
	if !ok {
		return
	}
	var sub labeling.Submission
	if !decodeBody(w, r, &sub) {
		return
	}
	a, err := h.svc.UpdateAnnotation(r.Context(), id, sub)
	if err != nil {
		writeError(w, "update annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := annotationID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAnnotation(r.Context(), id); err != nil {
		writeError(w, "delete annotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRange reads the optional inclusive start_id/end_id filter.
func parseRange(r *http.Request) (models.IDRange, error) {
	var rng models.IDRange
	for name, dst := range map[string]**int64{"start_id": &rng.Start, "end_id": &rng.End} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.IDRange{}, fmt.Errorf("%s must be an integer", name)
		}
		*dst = &v
	}
	if rng.Start != nil && rng.End != nil && *rng.Start > *rng.End {
		return models.IDRange{}, errors.New("start_id must not exceed end_id")
	}
	return rng, nil
}

// writeExport renders an export into memory so it can carry an ETag and a
// proper error status; export sets are small text files.
func (h *Handler) writeExport(w http.ResponseWriter, r *http.Request, contentType, filename string, render func(io.Writer, models.IDRange) error) {
	rng, err := parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var buf bytes.Buffer
	if err := render(&buf, rng); err != nil {
		writeError(w, "export "+filename, err)
		return
	}

	etag := `"` + checksum.Sum(buf.Bytes()) + `"`
	w.Header().Set("ETag", etag)
	if strings.Trim(r.Header.Get("If-None-Match"), " ") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ExportCSV handles GET /api/export/csv.
//
//	@Summary		Export annotations as CSV
//	@Tags			export
//	@Produce		text/csv
//	@Param			start_id	query	int	false	"First id (inclusive)"
//	@Param			end_id		query	int	false	"Last id (inclusive)"
//	@Success		200
//	@Router			/export/csv [get]
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.writeExport(w, r, "text/csv; charset=utf-8", "annotations.csv", func(out io.Writer, rng models.IDRange) error {
		return h.svc.ExportCSV(r.Context(), out, rng)
	})
}

// ExportYOLO handles GET /api/export/yolo.
//
//	@Summary		Export registration boxes as a YOLO label archive
//	@Tags			export
//	@Produce		application/zip
//	@Param			start_id	query	int	false	"First id (inclusive)"
//	@Param			end_id		query	int	false	"Last id (inclusive)"
//	@Success		200
//	@Router			/export/yolo [get]
func (h *Handler) ExportYOLO(w http.ResponseWriter, r *http.Request) {
	h.writeExport(w, r, "application/zip", "labels.zip", func(out io.Writer, rng models.IDRange) error {
		return h.svc.ExportYOLO(r.Context(), out, rng)
	})
}

// Stats handles GET /api/stats.
//
//	@Summary		Labeling progress
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	models.Stats
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

var referenceKinds = map[string]models.ReferenceKind{
	"airlines":       models.KindAirline,
	"aircraft-types": models.KindAircraftType,
}

// ListReference handles GET /api/reference/{kind}, kind being "airlines"
// or "aircraft-types".
func (h *Handler) ListReference(w http.ResponseWriter, r *http.Request) {
	kind, ok := referenceKinds[chi.URLParam(r, "kind")]
	if !ok {
		writeError(w, "list reference", apperr.ErrNotFound)
		return
	}
	entries, err := h.svc.ListReference(r.Context(), kind)
	if err != nil {
		writeError(w, "list reference", err)
		return
	}
	if entries == nil {
		entries = []models.ReferenceEntry{}
	}
	writeJSON(w, http.StatusOK, ReferenceListResponse{Entries: entries})
}
