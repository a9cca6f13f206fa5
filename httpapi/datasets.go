package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"synapse/dataset"
)

// recordPayload is the wire shape of a dataset record.
type recordPayload struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ContentHash  string    `json:"content_hash"`
	MetadataHash string    `json:"metadata_hash,omitempty"`
	FileSize     int64     `json:"file_size"`
	FileType     string    `json:"file_type"`
	OwnerAddress string    `json:"owner_address"`
	Price        int64     `json:"price"`
	PoolID       *int64    `json:"pool_id"`
	CreationTx   *string   `json:"creation_tx,omitempty"`
	Purchasers   []string  `json:"purchasers"`
	Reconciled   bool      `json:"reconciled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toPayload(rec dataset.Record) recordPayload {
	purchasers := rec.Purchasers
	if purchasers == nil {
		purchasers = []string{}
	}
	return recordPayload{
		ID:           rec.ID,
		Name:         rec.Name,
		Description:  rec.Description,
		ContentHash:  rec.ContentHash,
		MetadataHash: rec.MetadataHash,
		FileSize:     rec.FileSize,
		FileType:     rec.FileType,
		OwnerAddress: rec.OwnerAddress,
		Price:        rec.Price,
		PoolID:       rec.PoolID,
		CreationTx:   rec.CreationTx,
		Purchasers:   purchasers,
		Reconciled:   rec.Linked(),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func toPayloads(recs []dataset.Record) []recordPayload {
	out := make([]recordPayload, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toPayload(rec))
	}
	return out
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

type registerDatasetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ContentHash string `json:"content_hash"`
	FileSize    int64  `json:"file_size"`
	FileType    string `json:"file_type"`
	Price       int64  `json:"price"`
}

func (s *Server) handleRegisterDataset(w http.ResponseWriter, r *http.Request) {
	var req registerDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	rec, err := s.reconciler.Register(r.Context(), dataset.CreateParams{
		Name:         req.Name,
		Description:  req.Description,
		ContentHash:  req.ContentHash,
		FileSize:     req.FileSize,
		FileType:     req.FileType,
		OwnerAddress: callerAddress(r.Context()),
		Price:        req.Price,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayload(rec))
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	recs, err := s.datasets.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": toPayloads(recs)})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}
	rec, err := s.datasets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(rec))
}

func (s *Server) handleOwnerView(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	view, err := s.datasets.ByOwner(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uploaded":  toPayloads(view.Uploaded),
		"purchased": toPayloads(view.Purchased),
	})
}

type updateDatasetRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}

	rec, err := s.datasets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !strings.EqualFold(rec.OwnerAddress, callerAddress(r.Context())) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only the owner may update a dataset"})
		return
	}

	var req updateDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	updated, err := s.datasets.UpdateDescriptive(r.Context(), id, dataset.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(updated))
}

// handleReconcile retries pool attachment for a pending dataset.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid dataset id"})
		return
	}

	rec, err := s.datasets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !strings.EqualFold(rec.OwnerAddress, callerAddress(r.Context())) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only the owner may reconcile a dataset"})
		return
	}

	linked, err := s.reconciler.AttachPool(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(linked))
}

// maxUploadBytes bounds a single dataset payload.
const maxUploadBytes = 512 << 20

// handleUpload stores the raw request body content-addressed and returns the
// hash to use as content_hash when registering the dataset.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "payload too large"})
		return
	}

	hash, err := s.content.Put(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"content_hash": hash,
		"size":         len(data),
	})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	data, err := s.content.Get(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
