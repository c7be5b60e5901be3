// Package canvas models the doodle editor on an 800x600 raster: pencil and
// eraser strokes, coordinate scaling from the displayed size, single-flight
// submission to the edit proxy and full-canvas replacement by the reply.
//
// The browser page implements the same rules in JavaScript; this package
// lets tools replay drawings without a browser.
package canvas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gg"
	_ "golang.org/x/image/webp"

	"github.com/hazyhaar/doodle/dataurl"
	"github.com/hazyhaar/doodle/editproxy"
)

const (
	Width       = 800
	Height      = 600
	Background  = "#ffffff"
	PencilWidth = 5
	EraserWidth = 20
)

// Tool is the active drawing tool.
type Tool int

const (
	Pencil Tool = iota
	Eraser
)

func (t Tool) String() string {
	if t == Eraser {
		return "eraser"
	}
	return "pencil"
}

// ParseTool accepts "pencil" or "eraser".
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(s) {
	case "pencil":
		return Pencil, nil
	case "eraser":
		return Eraser, nil
	default:
		return Pencil, fmt.Errorf("canvas: unknown tool %q", s)
	}
}

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("canvas: submission in flight")
	// ErrNoSubmitter is returned by Submit when no Submitter is configured.
	ErrNoSubmitter = errors.New("canvas: no submitter configured")
)

// Submitter sends one edit request to the proxy.
type Submitter interface {
	Submit(ctx context.Context, req editproxy.Request) (*editproxy.Response, error)
}

// Editor is one canvas. Drawing methods are safe for concurrent use; at most
// one Submit runs at a time.
type Editor struct {
	mu       sync.Mutex
	dc       *gg.Context
	tool     Tool
	color    string
	displayW float64
	displayH float64
	drawing  bool
	lastX    float64
	lastY    float64

	busy      atomic.Bool
	submitter Submitter
	logger    *slog.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithSubmitter sets the client used by Submit.
func WithSubmitter(s Submitter) Option {
	return func(e *Editor) { e.submitter = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// New returns a white canvas with the pencil selected in black.
func New(opts ...Option) *Editor {
	e := &Editor{
		dc:       gg.NewContext(Width, Height),
		color:    "#000000",
		displayW: Width,
		displayH: Height,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.dc.SetLineCap(gg.LineCapRound)
	e.dc.SetLineJoin(gg.LineJoinRound)
	e.dc.ClearWithColor(gg.Hex(Background))
	return e
}

// Close releases the raster.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dc.Close()
}

// SetTool selects the pencil or the eraser.
func (e *Editor) SetTool(t Tool) {
	e.mu.Lock()
	e.tool = t
	e.mu.Unlock()
}

// SetColor sets the pencil colour as #rgb or #rrggbb.
func (e *Editor) SetColor(hex string) error {
	h := strings.TrimPrefix(hex, "#")
	if (len(h) != 3 && len(h) != 6) || strings.Trim(strings.ToLower(h), "0123456789abcdef") != "" {
		return fmt.Errorf("canvas: invalid colour %q", hex)
	}
	e.mu.Lock()
	e.color = "#" + h
	e.mu.Unlock()
	return nil
}

// SetDisplaySize records the rendered size of the canvas. Pointer
// positions are rescaled from it to the logical 800x600 buffer.
func (e *Editor) SetDisplaySize(w, h float64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("canvas: invalid display size %gx%g", w, h)
	}
	e.mu.Lock()
	e.displayW, e.displayH = w, h
	e.mu.Unlock()
	return nil
}

// scale maps a position relative to the displayed canvas onto the buffer.
// Callers hold e.mu.
func (e *Editor) scale(x, y float64) (float64, float64) {
	return x * Width / e.displayW, y * Height / e.displayH
}

// StrokeStart begins a stroke at a position relative to the canvas bounds.
func (e *Editor) StrokeStart(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drawing = true
	e.lastX, e.lastY = e.scale(x, y)
}

// StrokeContinue draws a segment from the previous point. It does nothing
// when no stroke is active.
func (e *Editor) StrokeContinue(x, y float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drawing {
		return nil
	}
	x, y = e.scale(x, y)

	if e.tool == Eraser {
		e.dc.SetHexColor(Background)
		e.dc.SetLineWidth(EraserWidth)
	} else {
		e.dc.SetHexColor(e.color)
		e.dc.SetLineWidth(PencilWidth)
	}
	e.dc.DrawLine(e.lastX, e.lastY, x, y)
	e.lastX, e.lastY = x, y
	if err := e.dc.Stroke(); err != nil {
		return fmt.Errorf("canvas: stroke: %w", err)
	}
	return nil
}

// StrokeEnd closes the current stroke.
func (e *Editor) StrokeEnd() {
	e.mu.Lock()
	e.drawing = false
	e.mu.Unlock()
}

// Drawing reports whether a stroke is active.
func (e *Editor) Drawing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drawing
}

// Reset fills the canvas with the background colour.
func (e *Editor) Reset() {
	e.mu.Lock()
	e.dc.ClearWithColor(gg.Hex(Background))
	e.drawing = false
	e.mu.Unlock()
}

// Image returns a copy of the current pixels.
func (e *Editor) Image() image.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dc.Image()
}

// PNG encodes the canvas, as the download button does.
func (e *Editor) PNG() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var buf bytes.Buffer
	if err := e.dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("canvas: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Snapshot serializes the canvas as a PNG data URL.
func (e *Editor) Snapshot() (string, error) {
	b, err := e.PNG()
	if err != nil {
		return "", err
	}
	return dataurl.Format(dataurl.MIMEPNG, b), nil
}

// Apply replaces the canvas with a PNG, JPEG or WebP data URL, stretched to
// the full canvas bounds over a cleared background.
func (e *Editor) Apply(u string) error {
	_, data, err := dataurl.Decode(u)
	if err != nil {
		return fmt.Errorf("canvas: apply: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("canvas: decode image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dc.ClearWithColor(gg.Hex(Background))
	e.dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		DstWidth:  Width,
		DstHeight: Height,
	})
	e.logger.Debug("canvas: image applied", "format", format,
		"src_w", img.Bounds().Dx(), "src_h", img.Bounds().Dy())
	return nil
}

// Submit sends the snapshot and command to the proxy and applies the
// returned image, if any. A blank command is a no-op. A second call while
// one is in flight returns ErrBusy; there is no queueing.
func (e *Editor) Submit(ctx context.Context, command string) (*editproxy.Response, error) {
	if strings.TrimSpace(command) == "" {
		return nil, nil
	}
	if e.submitter == nil {
		return nil, ErrNoSubmitter
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	resp, err := e.submitter.Submit(ctx, editproxy.Request{Image: snap, Command: command})
	if err != nil {
		e.logger.Error("canvas: submit failed", "command", command, "error", err)
		return nil, err
	}
	if resp.EditedImage != nil {
		if err := e.Apply(*resp.EditedImage); err != nil {
			e.logger.Error("canvas: apply failed", "error", err)
			return resp, err
		}
	}
	return resp, nil
}

// Busy reports whether a submission is in flight.
func (e *Editor) Busy() bool { return e.busy.Load() }
