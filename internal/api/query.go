package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chatdf/chatdf/internal/executor"
	"github.com/chatdf/chatdf/internal/query"
)

const maxQueryBodyBytes = 1 << 20

type queryRequest struct {
	Engine     string `json:"engine"`
	Dataset    string `json:"dataset"`
	SQL        string `json:"sql"`
	TableAlias string `json:"table_alias"`
	RowLimit   int    `json:"row_limit"`
}

type queryResponse struct {
	QueryID     string         `json:"query_id"`
	Engine      string         `json:"engine"`
	Dataset     string         `json:"dataset"`
	TableAlias  string         `json:"table_alias,omitempty"`
	Columns     []string       `json:"columns"`
	ColumnTypes []string       `json:"column_types"`
	Rows        [][]any        `json:"rows"`
	Stats       map[string]any `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Queries == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query execution is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if !isAllowedSQL(request.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, nil)
		return
	}

	response, err := deps.Queries.Execute(r.Context(), executor.Request{
		Engine:     request.Engine,
		Dataset:    request.Dataset,
		SQL:        request.SQL,
		TableAlias: request.TableAlias,
		RowLimit:   request.RowLimit,
	})
	if err != nil {
		writeQueryError(r, w, err)
		return
	}

	result := response.Result
	writeJSON(w, http.StatusOK, queryResponse{
		QueryID:     response.ID,
		Engine:      string(result.Engine),
		Dataset:     response.Dataset,
		TableAlias:  response.TableAlias,
		Columns:     result.Columns,
		ColumnTypes: result.ColumnTypes,
		Rows:        result.Rows,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"row_count":   result.RowCount(),
		},
	})
}

func writeQueryError(r *http.Request, w http.ResponseWriter, err error) {
	details := map[string]any{"details": err.Error()}
	switch {
	case errors.Is(err, executor.ErrInvalidRequest):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "query request is invalid", false, details)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(r.Context(), w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query exceeded its time budget", true, details)
	case errors.Is(err, query.ErrDataset):
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "DATASET_UNREADABLE", "dataset could not be read", false, details)
	case errors.Is(err, query.ErrQuery):
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, details)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", "query could not be executed", true, details)
	}
}

// isAllowedSQL accepts SELECT and WITH statements, ignoring leading
// comments and parentheses.
func isAllowedSQL(sqlText string) bool {
	return query.IsSelect(sqlText)
}
