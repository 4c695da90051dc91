// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
)

// cleanupTimeout bounds the teardown calls, which run on a context
// detached from the (possibly cancelled) session context.
const cleanupTimeout = 15 * time.Second

// cleanup tears down an in-flight session: the transfer was already
// stopped by context cancellation, the placeholder record is deleted,
// and any remote upload/asset is best-effort removed. Remote failures
// are logged and swallowed; local state consistency takes priority.
// Invoking cleanup more than once is a no-op.
func (p *Pipeline) cleanup(ctx context.Context, s *Session) {
	s.cleanupOnce.Do(func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		s.mu.Lock()
		materialized := s.materialized
		uploadID := s.remoteUploadID
		assetID := s.remoteAssetID
		s.mu.Unlock()

		if materialized {
			if err := p.materializer.Remove(cleanupCtx, s.DocumentID); err != nil {
				logger.Ctx(cleanupCtx).Error().
					Err(err).
					Str("document_id", s.DocumentID).
					Msg("failed to delete asset record during cleanup")
			}
		}

		switch {
		case assetID != "":
			if err := p.svc.DeleteAsset(cleanupCtx, assetID); err != nil {
				CleanupRemoteFailuresTotal.Inc()
				logger.Ctx(cleanupCtx).Warn().
					Err(err).
					Str("remote_asset_id", assetID).
					Msg("remote asset deletion failed during cleanup")
			}
		case uploadID != "":
			if err := p.svc.CancelUpload(cleanupCtx, uploadID); err != nil {
				CleanupRemoteFailuresTotal.Inc()
				logger.Ctx(cleanupCtx).Warn().
					Err(err).
					Str("remote_upload_id", uploadID).
					Msg("remote upload cancellation failed during cleanup")
			}
		}
	})
}
