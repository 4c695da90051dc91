// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

// Package staging normalizes a file selection or a pasted/dropped URL
// into a single staged-upload value and sanitizes user-editable
// transcoding options before they go on the wire.
package staging

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// ErrInvalidInput marks staging rejections: a pasted value that is not a
// valid http/https URL, or a selection that is not a real file. These
// are recoverable; the caller re-prompts.
var ErrInvalidInput = errors.New("staging: invalid input")

// Kind discriminates the staged-upload union.
type Kind string

const (
	KindFile Kind = "file"
	KindURL  Kind = "url"
)

// StagedUpload is the normalized, not-yet-sent representation of a
// chosen file or pasted URL. It is immutable and consumed exactly once
// by the initiator.
type StagedUpload struct {
	Kind Kind

	// File case.
	Reader   io.ReadSeeker
	Name     string
	MIMEType string
	Size     int64

	// URL case.
	URL string

	consumed atomic.Bool
}

// StageURL validates a pasted/dropped string and stages it.
func StageURL(raw string) (*StagedUpload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidInput)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not an http(s) URL: %q", ErrInvalidInput, raw)
	}

	return &StagedUpload{Kind: KindURL, URL: u.String()}, nil
}

// StageFile stages a selected file. The file must be a regular file;
// anything else is rejected as InvalidInput.
func StageFile(f *os.File, mimeType string) (*StagedUpload, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidInput)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrInvalidInput, f.Name())
	}

	return &StagedUpload{
		Kind:     KindFile,
		Reader:   f,
		Name:     filepath.Base(f.Name()),
		MIMEType: mimeType,
		Size:     info.Size(),
	}, nil
}

// StageReader stages file bytes from an arbitrary seekable source, for
// callers that receive uploads over the wire rather than from disk.
func StageReader(r io.ReadSeeker, size int64, name, mimeType string) (*StagedUpload, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidInput)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidInput)
	}

	return &StagedUpload{
		Kind:     KindFile,
		Reader:   r,
		Name:     name,
		MIMEType: mimeType,
		Size:     size,
	}, nil
}

// Consume marks the staged upload as handed to the initiator. A staged
// upload may be consumed exactly once.
func (s *StagedUpload) Consume() error {
	if !s.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: staged upload already consumed", ErrInvalidInput)
	}
	return nil
}
