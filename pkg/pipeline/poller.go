// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"
)

// awaitAsset polls the upload until it resolves to a concrete asset id
// or the attempt budget is exhausted.
//
// Transient fetch errors consume an attempt and are retried within the
// same budget rather than failing the session immediately; only budget
// exhaustion reports ErrUploadTimeout.
func (p *Pipeline) awaitAsset(ctx context.Context, s *Session) (string, error) {
	uploadID := s.remoteUploadID

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		upload, err := p.svc.GetUpload(ctx, uploadID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Ctx(ctx).Warn().
				Err(err).
				Str("upload_id", uploadID).
				Int("attempt", attempt).
				Msg("readiness poll failed, retrying")
			continue
		}

		switch upload.Status {
		case muxapi.UploadStatusErrored, muxapi.UploadStatusCancelled, muxapi.UploadStatusTimedOut:
			return "", fmt.Errorf("%w: upload %s is %s", ErrTransferFailed, uploadID, upload.Status)
		}

		if upload.AssetID != "" {
			PollAttempts.Observe(float64(attempt))
			return upload.AssetID, nil
		}
	}

	PollAttempts.Observe(float64(p.pollMaxAttempts))
	return "", ErrUploadTimeout
}
