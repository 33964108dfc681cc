// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sigvoid/internal/logging"
	"github.com/tomtom215/sigvoid/internal/validation"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

// APIError is the machine-readable error body.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	w.Write(data)
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, &Response{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

func respondList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	respondJSON(w, http.StatusOK, &Response{
		Status:   "success",
		Data:     items,
		Metadata: Metadata{Timestamp: time.Now().UTC(), Count: &n},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}
	respondJSON(w, status, &Response{
		Status:   "error",
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    &APIError{Code: code, Message: message},
	})
}

// respondJSONError writes a 400 carrying a decode or validation error.
func respondJSONError(w http.ResponseWriter, apiErr *APIError) {
	respondJSON(w, http.StatusBadRequest, &Response{
		Status:   "error",
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error:    apiErr,
	})
}

// decodeAndValidate reads a JSON body into v and runs struct validation.
// The returned APIError is nil on success.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) *APIError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &APIError{Code: "INVALID_JSON", Message: "request body is not valid JSON"}
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return &APIError{Code: "VALIDATION_ERROR", Message: verr.Error(), Details: verr.Tags()}
	}
	return nil
}
