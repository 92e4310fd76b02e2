package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apierrors "chatgate/internal/errors"
	"chatgate/internal/logfile"
)

// logsHandler serves the log-file admin API under /api/logs.
type logsHandler struct {
	manager *logfile.Manager
}

func (h *logsHandler) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Info())
}

func (h *logsHandler) settings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Settings())
}

func (h *logsHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var s logfile.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}
	if s.MaxSize != "" {
		if _, err := logfile.ParseSize(s.MaxSize); err != nil {
			apierrors.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	h.manager.UpdateSettings(s)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "settings saved; restart required to take effect",
	})
}

func (h *logsHandler) files(w http.ResponseWriter, r *http.Request) {
	entries, err := h.manager.Files()
	if err != nil {
		writeLogError(w, err)
		return
	}
	if entries == nil {
		entries = []logfile.FileEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *logsHandler) content(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lines := 100
	if v := q.Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierrors.WriteJSONError(w, http.StatusBadRequest, "lines must be a non-negative integer")
			return
		}
		lines = n
	}
	index := 0
	if v := q.Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.WriteJSONError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
		index = n
	}
	content, err := h.manager.Read(lines, index)
	if err != nil {
		writeLogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (h *logsHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Clear(); err != nil {
		writeLogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *logsHandler) deleteBackup(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	if err := h.manager.DeleteBackup(index); err != nil {
		writeLogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeLogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, logfile.ErrDisabled):
		apierrors.WriteJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, logfile.ErrNoFiles):
		apierrors.WriteJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, logfile.ErrMainProtected):
		apierrors.WriteJSONError(w, http.StatusBadRequest, err.Error())
	default:
		apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
