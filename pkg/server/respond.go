// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/credentials"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/docstore"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/pipeline"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/staging"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/token"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("failed to encode response")
	}
}

// writeSessionConflict tells the editor the field already has an active
// session and its new input was not staged.
func writeSessionConflict(w http.ResponseWriter) {
	writeJSON(w, http.StatusConflict, errorResponse{
		Error: "an upload session is already active for this field",
		Code:  "session_active",
	})
}

// writeError maps the pipeline error taxonomy onto HTTP statuses and
// stable error codes the editor frontend can branch on.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, staging.ErrInvalidInput):
		status = http.StatusBadRequest
		resp.Code = "invalid_input"
	case errors.Is(err, credentials.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		resp.Code = "invalid_credentials"
	case errors.Is(err, token.ErrMissingSigningKey):
		status = http.StatusPreconditionFailed
		resp.Code = "missing_signing_key"
	case errors.Is(err, pipeline.ErrRemoteInitiationFailed):
		status = http.StatusBadGateway
		resp.Code = "remote_initiation_failed"
	case errors.Is(err, pipeline.ErrTransferFailed):
		status = http.StatusBadGateway
		resp.Code = "transfer_failed"
	case errors.Is(err, pipeline.ErrUploadTimeout):
		status = http.StatusGatewayTimeout
		resp.Code = "upload_timeout"
	case errors.Is(err, docstore.ErrNotFound):
		status = http.StatusNotFound
		resp.Code = "not_found"
	}

	writeJSON(w, status, resp)
}
