// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package api

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/launchdeck/viewtrack/internal/logging"
	"github.com/launchdeck/viewtrack/internal/models"
)

// respondJSON writes a success envelope. GET responses carry an ETag over
// the data payload; a matching If-None-Match short-circuits to 304.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any, start time.Time) {
	payload, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("marshaling response payload")
		respondError(w, http.StatusInternalServerError, models.CodeInternal, "internal error")
		return
	}

	if r.Method == http.MethodGet && status == http.StatusOK {
		etag := payloadETag(payload)
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	resp := models.APIResponse{
		Status: "success",
		Data:   json.RawMessage(payload),
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Debug().Err(err).Msg("writing response body")
	}
}

// respondError writes an error envelope with the boundary error code.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondAPIError(w, status, &models.APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Debug().Err(err).Msg("writing error response")
	}
}

// payloadETag computes the cache validator for a data payload. The envelope
// metadata is excluded so identical data revalidates across requests.
func payloadETag(payload []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}
