package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/chatdf/chatdf/internal/executor"
	"github.com/chatdf/chatdf/internal/history"
)

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Queries == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", executor.ErrHistoryDisabled.Error(), false, nil)
		return
	}

	limit := history.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}

	entries, err := deps.Queries.History(r.Context(), limit)
	if err != nil {
		if errors.Is(err, executor.ErrHistoryDisabled) {
			writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load query history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "limit": history.ClampLimit(limit)})
}
