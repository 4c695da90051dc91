// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "errors"

var (
	// ErrRemoteInitiationFailed marks a failed create-asset/create-upload
	// call. Fatal for the session; cleanup removes whatever was left.
	ErrRemoteInitiationFailed = errors.New("pipeline: remote initiation failed")

	// ErrTransferFailed marks a failed byte transfer or a remotely
	// errored upload. Fatal; cleanup includes a remote deletion attempt.
	ErrTransferFailed = errors.New("pipeline: transfer failed")

	// ErrUploadTimeout is reported when readiness polling exhausts its
	// attempt budget without the upload resolving to an asset.
	ErrUploadTimeout = errors.New("pipeline: timed out waiting for upload to become an asset")
)
