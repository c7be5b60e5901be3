// Package dataurl parses and builds the base64 data URLs exchanged between
// the canvas page and the edit proxy.
//
// Only the shape the browser produces with canvas.toDataURL is recognised:
//
//	data:image/png;base64,iVBORw0KGgo...
//
// MIME detection is a substring match: anything mentioning image/png is PNG,
// everything else is treated as JPEG.
package dataurl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// ErrInvalid is returned when a string is not a data URL.
var ErrInvalid = errors.New("invalid image data URL format")

// DataURL is a parsed data URL. Base64 is the payload exactly as received.
type DataURL struct {
	MIMEType string
	Base64   string
}

// Parse checks the data URL shape and splits off the payload.
// The payload is everything after the first comma.
func Parse(s string) (DataURL, error) {
	if !strings.HasPrefix(s, "data:") {
		return DataURL{}, ErrInvalid
	}
	_, payload, ok := strings.Cut(s, ",")
	if !ok {
		return DataURL{}, ErrInvalid
	}
	return DataURL{MIMEType: DetectMIME(s), Base64: payload}, nil
}

// DetectMIME reports image/png when s mentions it and image/jpeg otherwise.
func DetectMIME(s string) string {
	if strings.Contains(s, MIMEPNG) {
		return MIMEPNG
	}
	return MIMEJPEG
}

// Bytes decodes the payload.
func (d DataURL) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(d.Base64)
	if err != nil {
		return nil, fmt.Errorf("dataurl: decode payload: %w", err)
	}
	return b, nil
}

// String rebuilds the data URL.
func (d DataURL) String() string {
	return "data:" + d.MIMEType + ";base64," + d.Base64
}

// Format encodes data as a data URL. An empty mimeType defaults to image/png.
func Format(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = MIMEPNG
	}
	return DataURL{MIMEType: mimeType, Base64: base64.StdEncoding.EncodeToString(data)}.String()
}

// Decode parses s and decodes its payload in one step.
func Decode(s string) (mimeType string, data []byte, err error) {
	d, err := Parse(s)
	if err != nil {
		return "", nil, err
	}
	data, err = d.Bytes()
	if err != nil {
		return "", nil, err
	}
	return d.MIMEType, data, nil
}
