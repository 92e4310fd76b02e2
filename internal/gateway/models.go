package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apierrors "chatgate/internal/errors"
	"chatgate/internal/models"
)

// modelsHandler serves the model-registry admin API under /api/models.
type modelsHandler struct {
	store *models.Store
}

// searchResult is the paged response of GET /api/models.
type searchResult struct {
	Items    []*models.Model `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (h *modelsHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	f := models.Filter{
		Query:     q.Get("query"),
		Tag:       q.Get("tag"),
		OrderBy:   q.Get("order_by"),
		Direction: q.Get("direction"),
		Page:      page,
	}
	items, total, err := h.store.Search(r.Context(), f)
	if err != nil {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*models.Model{}
	}
	writeJSON(w, http.StatusOK, searchResult{
		Items:    items,
		Total:    total,
		Page:     max(f.Page, 1),
		PageSize: models.PageSize,
	})
}

func (h *modelsHandler) create(w http.ResponseWriter, r *http.Request) {
	var m models.Model
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}
	if err := h.store.Create(r.Context(), &m); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, &m)
}

func (h *modelsHandler) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *modelsHandler) update(w http.ResponseWriter, r *http.Request) {
	var m models.Model
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}
	m.ID = r.PathValue("id")
	if err := h.store.Update(r.Context(), &m); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &m)
}

func (h *modelsHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *modelsHandler) toggle(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.Toggle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *modelsHandler) tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.Tags(r.Context())
	if err != nil {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		apierrors.WriteJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrExists):
		apierrors.WriteJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidID):
		apierrors.WriteJSONError(w, http.StatusBadRequest, err.Error())
	default:
		apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
