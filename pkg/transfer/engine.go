// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer streams staged file bytes to an upload destination in
// resumable, adaptively-sized chunks.
//
// Event contract: any number of progress/paused/resumed events followed
// by exactly one terminal event (success or error), after which the
// event channel is closed. Progress percentages are non-decreasing, and
// a pause/resume cycle never restarts the transfer from byte zero.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"

	"github.com/dustin/go-humanize"
)

// chunkQuantum is the alignment for chunk sizes; resumable upload
// endpoints require chunk boundaries on 256KiB multiples.
const chunkQuantum int64 = 256 << 10

// EventType classifies transfer events.
type EventType string

const (
	EventProgress EventType = "progress"
	EventPaused   EventType = "paused"
	EventResumed  EventType = "resumed"
	EventSuccess  EventType = "success"
	EventError    EventType = "error"
)

// Event is one externally observable transfer event.
type Event struct {
	Type    EventType
	Percent float64
	Err     error
}

// Terminal reports whether the event ends the transfer.
func (e Event) Terminal() bool {
	return e.Type == EventSuccess || e.Type == EventError
}

// Config tunes the engine.
type Config struct {
	HTTPClient *http.Client

	MinChunkSize     int64
	MaxChunkSize     int64
	InitialChunkSize int64

	// TargetChunkDuration steers adaptive sizing: chunk sizes grow or
	// shrink so one chunk takes roughly this long at measured throughput.
	TargetChunkDuration time.Duration

	// MaxChunkRetries bounds transient retries per chunk.
	MaxChunkRetries int
}

// Engine uploads file bytes in sequential resumable chunks. One Engine
// serves one transfer; connectivity changes are fed in via SetOnline.
type Engine struct {
	httpClient *http.Client
	minChunk   int64
	maxChunk   int64
	chunkSize  int64
	target     time.Duration
	maxRetries int

	mu      sync.Mutex
	offline bool
	resume  chan struct{}
}

// New creates an engine, applying defaults for anything unset.
func New(cfg Config) *Engine {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = chunkQuantum
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 64 << 20
	}
	if cfg.InitialChunkSize <= 0 {
		cfg.InitialChunkSize = 8 << 20
	}
	if cfg.TargetChunkDuration <= 0 {
		cfg.TargetChunkDuration = 8 * time.Second
	}
	if cfg.MaxChunkRetries <= 0 {
		cfg.MaxChunkRetries = 3
	}

	return &Engine{
		httpClient: cfg.HTTPClient,
		minChunk:   quantize(cfg.MinChunkSize),
		maxChunk:   quantize(cfg.MaxChunkSize),
		chunkSize:  quantize(cfg.InitialChunkSize),
		target:     cfg.TargetChunkDuration,
		maxRetries: cfg.MaxChunkRetries,
	}
}

// SetOnline feeds host connectivity into the engine. Going offline
// pauses the transfer at the next chunk boundary; coming back online
// resumes it from the bytes uploaded so far.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !online && !e.offline {
		e.offline = true
		e.resume = make(chan struct{})
	} else if online && e.offline {
		e.offline = false
		close(e.resume)
	}
}

// Upload streams src to uploadURL. Events arrive on the returned
// channel; the channel closes after the terminal event. Cancelling ctx
// aborts the transfer, interrupting an in-flight chunk.
func (e *Engine) Upload(ctx context.Context, uploadURL string, src io.ReadSeeker, size int64, contentType string) <-chan Event {
	events := make(chan Event, 16)
	go e.run(ctx, uploadURL, src, size, contentType, events)
	return events
}

func (e *Engine) run(ctx context.Context, uploadURL string, src io.ReadSeeker, size int64, contentType string, events chan<- Event) {
	defer close(events)

	var offset int64
	for offset < size {
		if err := e.waitOnline(ctx, events); err != nil {
			events <- Event{Type: EventError, Err: err}
			return
		}

		n := e.chunkSize
		if remaining := size - offset; n > remaining {
			n = remaining
		}

		start := time.Now()
		if err := e.putChunk(ctx, uploadURL, src, offset, n, size, contentType); err != nil {
			events <- Event{Type: EventError, Err: err}
			return
		}
		elapsed := time.Since(start)

		offset += n
		events <- Event{Type: EventProgress, Percent: float64(offset) / float64(size) * 100}

		e.adaptChunkSize(n, elapsed)

		logger.Ctx(ctx).Debug().
			Str("sent", humanize.IBytes(uint64(n))).
			Str("next_chunk", humanize.IBytes(uint64(e.chunkSize))).
			Dur("elapsed", elapsed).
			Int64("offset", offset).
			Msg("uploaded chunk")
	}

	events <- Event{Type: EventSuccess, Percent: 100}
}

// waitOnline blocks while the host is offline, emitting paused/resumed
// around the gap. Pause never discards uploaded-so-far state.
func (e *Engine) waitOnline(ctx context.Context, events chan<- Event) error {
	e.mu.Lock()
	offline := e.offline
	resume := e.resume
	e.mu.Unlock()

	if !offline {
		return ctx.Err()
	}

	events <- Event{Type: EventPaused}
	select {
	case <-resume:
		events <- Event{Type: EventResumed}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// putChunk sends one chunk, retrying transient failures. Each attempt
// re-seeks so a partial write never corrupts the byte order.
func (e *Engine) putChunk(ctx context.Context, uploadURL string, src io.ReadSeeker, offset, n, total int64, contentType string) error {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Second << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, err := src.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("transfer: seek to %d: %w", offset, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, io.LimitReader(src, n))
		if err != nil {
			return fmt.Errorf("transfer: build request: %w", err)
		}
		req.ContentLength = n
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+n-1, total))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusPermanentRedirect:
			// 308: chunk accepted, upload incomplete.
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("transfer: chunk at %d: status %d", offset, resp.StatusCode)
			continue
		default:
			return fmt.Errorf("transfer: chunk at %d: status %d", offset, resp.StatusCode)
		}
	}
	return fmt.Errorf("transfer: chunk at %d failed after %d attempts: %w", offset, e.maxRetries+1, lastErr)
}

// adaptChunkSize resizes the next chunk so it takes roughly the target
// duration at the throughput just measured.
func (e *Engine) adaptChunkSize(sent int64, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	throughput := float64(sent) / elapsed.Seconds()
	ideal := quantize(int64(throughput * e.target.Seconds()))

	if ideal < e.minChunk {
		ideal = e.minChunk
	}
	if ideal > e.maxChunk {
		ideal = e.maxChunk
	}
	e.chunkSize = ideal
}

// quantize rounds down to the chunk alignment, with a floor of one
// quantum.
func quantize(n int64) int64 {
	if n < chunkQuantum {
		return chunkQuantum
	}
	return n - n%chunkQuantum
}
