// Copyright 2025 Sanity Mux Input Authors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sanity-io/sanity-plugin-mux-input-sub000/pkg/muxapi"
)

// DefaultBaseWidth is the reference video width used to resolve
// percentage geometry into pixels when no measured width is available.
const DefaultBaseWidth = 1920

var (
	dimensionRe = regexp.MustCompile(`^([+-]?[0-9]*\.?[0-9]+)(px|%)?$`)

	// overlayFieldRe matches serialized overlay geometry entries so the
	// same transform can run over raw JSON fallbacks.
	overlayFieldRe = regexp.MustCompile(`"(vertical_margin|horizontal_margin|width|height)"\s*:\s*"([^"]*)"`)
)

// SanitizeDimension normalizes one overlay geometry value. Percentages
// are resolved against baseWidth when targetUnit is "px". Results are
// rounded to the nearest whole unit, and a result of exactly zero is
// nudged to the smallest non-zero magnitude in the direction of the
// unrounded input: the remote service treats an on-the-wire zero as
// unset.
func SanitizeDimension(raw, targetUnit string, baseWidth float64) (string, error) {
	m := dimensionRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fmt.Errorf("%w: bad dimension %q", ErrInvalidInput, raw)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad dimension %q", ErrInvalidInput, raw)
	}
	negative := strings.HasPrefix(m[1], "-")

	unit := m[2]
	if unit == "" {
		unit = "px"
	}
	if targetUnit == "" {
		targetUnit = "px"
	}
	if baseWidth <= 0 {
		baseWidth = DefaultBaseWidth
	}

	outUnit := unit
	if targetUnit == "px" && unit == "%" {
		value = value / 100 * baseWidth
		outUnit = "px"
	}

	rounded := math.Round(value)
	if rounded == 0 {
		if value < 0 || negative {
			rounded = -1
		} else {
			rounded = 1
		}
	}

	return strconv.FormatInt(int64(rounded), 10) + outUnit, nil
}

// SanitizeOverlay applies SanitizeDimension to every geometry field of
// a structured overlay. Empty fields stay empty.
func SanitizeOverlay(o *muxapi.OverlaySettings, targetUnit string, baseWidth float64) error {
	if o == nil {
		return nil
	}
	for _, field := range []*string{&o.VerticalMargin, &o.HorizontalMargin, &o.Width, &o.Height} {
		if *field == "" {
			continue
		}
		sanitized, err := SanitizeDimension(*field, targetUnit, baseWidth)
		if err != nil {
			return err
		}
		*field = sanitized
	}
	return nil
}

// SanitizeSettings sanitizes every overlay in a settings value, in place.
func SanitizeSettings(settings *muxapi.AssetSettings, targetUnit string, baseWidth float64) error {
	if settings == nil {
		return nil
	}
	for i := range settings.Input {
		if err := SanitizeOverlay(settings.Input[i].OverlaySettings, targetUnit, baseWidth); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeOverlayJSON runs the same geometry transform over raw
// serialized JSON, for callers that carry settings as opaque strings.
// Values that do not parse as dimensions are left untouched.
func SanitizeOverlayJSON(raw []byte, targetUnit string, baseWidth float64) []byte {
	return overlayFieldRe.ReplaceAllFunc(raw, func(match []byte) []byte {
		parts := overlayFieldRe.FindSubmatch(match)
		sanitized, err := SanitizeDimension(string(parts[2]), targetUnit, baseWidth)
		if err != nil {
			return match
		}
		return []byte(fmt.Sprintf(`"%s":"%s"`, parts[1], sanitized))
	})
}
