// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/credentials"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/logger"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/staging"
	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/token"
)

// maxFileUpload caps the in-request file size.
const maxFileUpload = 10 << 30

type stageURLRequest struct {
	URL      string              `json:"url"`
	Settings muxapi.AssetSettings `json:"settings"`
}

func (s *Server) handleStageURL(w http.ResponseWriter, r *http.Request) {
	fieldID := r.PathValue("field")

	var req stageURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
		return
	}

	if err := staging.SanitizeSettings(&req.Settings, "px", staging.DefaultBaseWidth); err != nil {
		writeError(w, err)
		return
	}

	staged, err := staging.StageURL(req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	session, started, err := s.cfg.Pipeline.Start(r.Context(), fieldID, staged, req.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	if !started {
		writeSessionConflict(w)
		return
	}

	writeJSON(w, http.StatusAccepted, session.Snapshot())
}

func (s *Server) handleStageFile(w http.ResponseWriter, r *http.Request) {
	fieldID := r.PathValue("field")

	r.Body = http.MaxBytesReader(w, r.Body, maxFileUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	var settings muxapi.AssetSettings
	if raw := r.FormValue("settings"); raw != "" {
		// Settings arrive pre-serialized here, so the sanitizer's raw
		// JSON form applies before decoding.
		sanitized := staging.SanitizeOverlayJSON([]byte(raw), "px", staging.DefaultBaseWidth)
		if err := json.Unmarshal(sanitized, &settings); err != nil {
			writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
			return
		}
	}

	// The session outlives this request, so spool the bytes to disk.
	tmp, err := os.CreateTemp("", "muxinput-upload-*")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}

	staged, err := staging.StageReader(tmp, header.Size, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}

	session, started, err := s.cfg.Pipeline.Start(r.Context(), fieldID, staged, settings)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}
	if !started {
		// The file was never staged; its spooled bytes go with it.
		tmp.Close()
		os.Remove(tmp.Name())
		writeSessionConflict(w)
		return
	}

	go func() {
		<-session.Done()
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			logger.Warn().Err(err).Str("path", tmp.Name()).Msg("failed to remove spooled upload")
		}
	}()

	writeJSON(w, http.StatusAccepted, session.Snapshot())
}

func (s *Server) handleSessionSnapshot(w http.ResponseWriter, r *http.Request) {
	session, ok := s.cfg.Pipeline.Session(r.PathValue("field"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no active session", Code: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Pipeline.Cancel(r.Context(), r.PathValue("field")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type connectivityRequest struct {
	Online bool `json:"online"`
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
		return
	}
	s.cfg.Pipeline.SetOnline(r.PathValue("field"), req.Online)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	rec, err := s.cfg.Store.Get(r.Context(), r.PathValue("doc"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Pipeline.DeleteAsset(r.Context(), r.PathValue("doc")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type patchAssetRequest struct {
	ThumbTime *float64 `json:"thumb_time,omitempty"`
	Filename  *string  `json:"filename,omitempty"`
}

func (s *Server) handlePatchAsset(w http.ResponseWriter, r *http.Request) {
	var req patchAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
		return
	}

	documentID := r.PathValue("doc")
	m := s.cfg.Pipeline.Materializer()

	if req.ThumbTime != nil {
		if err := m.PatchThumbTime(r.Context(), documentID, *req.ThumbTime); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Filename != nil {
		if err := m.PatchFilename(r.Context(), documentID, *req.Filename); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type signRequest struct {
	PlaybackID string            `json:"playback_id"`
	Policy     string            `json:"policy"`
	Audience   string            `json:"audience"`
	Params     map[string]string `json:"params,omitempty"`
}

type signResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
		return
	}

	builder := s.urlBuilder()
	params := token.Params(req.Params)

	var url string
	var err error
	switch req.Audience {
	case "thumbnail":
		url, err = builder.ThumbnailURL(req.PlaybackID, req.Policy, params)
	case "animated-thumbnail":
		url, err = builder.AnimatedThumbnailURL(req.PlaybackID, req.Policy, params)
	case "storyboard":
		url, err = builder.StoryboardURL(req.PlaybackID, req.Policy, params)
	case "video-stream":
		url, err = builder.StreamURL(req.PlaybackID, req.Policy, params)
	default:
		writeError(w, fmt.Errorf("%w: unknown audience %q", staging.ErrInvalidInput, req.Audience))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signResponse{URL: url})
}

type saveSecretsRequest struct {
	Token            string `json:"token"`
	SecretKey        string `json:"secret_key"`
	EnableSignedURLs bool   `json:"enable_signed_urls"`
}

func (s *Server) handleSaveSecrets(w http.ResponseWriter, r *http.Request) {
	var req saveSecretsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", staging.ErrInvalidInput, err))
		return
	}

	creds := &credentials.Credentials{
		Token:            req.Token,
		SecretKey:        req.SecretKey,
		EnableSignedURLs: req.EnableSignedURLs,
	}
	if err := s.cfg.Gate.Save(r.Context(), creds, s.cfg.Keys); err != nil {
		writeError(w, err)
		return
	}

	saved := s.cfg.Credentials.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"enable_signed_urls": saved.EnableSignedURLs,
		"signing_key_id":     saved.SigningKeyID,
	})
}
