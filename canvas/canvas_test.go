package canvas

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/doodle/dataurl"
	"github.com/hazyhaar/doodle/editproxy"
)

func rgbAt(img image.Image, x, y int) (r, g, b uint8) {
	c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	return c.R, c.G, c.B
}

func isWhite(img image.Image, x, y int) bool {
	r, g, b := rgbAt(img, x, y)
	return r > 240 && g > 240 && b > 240
}

func isDark(img image.Image, x, y int) bool {
	r, g, b := rgbAt(img, x, y)
	return r < 60 && g < 60 && b < 60
}

func TestNew_WhiteBackground(t *testing.T) {
	e := New()
	defer e.Close()
	img := e.Image()
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("bounds = %v", b)
	}
	for _, p := range [][2]int{{0, 0}, {400, 300}, {799, 599}} {
		if !isWhite(img, p[0], p[1]) {
			t.Errorf("pixel %v not white", p)
		}
	}
}

func TestPencilThenEraser(t *testing.T) {
	e := New()
	defer e.Close()

	e.StrokeStart(100, 100)
	if err := e.StrokeContinue(300, 100); err != nil {
		t.Fatal(err)
	}
	e.StrokeEnd()
	if !isDark(e.Image(), 200, 100) {
		t.Fatal("pencil stroke not drawn")
	}
	if !isWhite(e.Image(), 200, 120) {
		t.Fatal("pencil stroke wider than expected")
	}

	e.SetTool(Eraser)
	e.StrokeStart(100, 100)
	e.StrokeContinue(300, 100)
	e.StrokeEnd()
	if !isWhite(e.Image(), 200, 100) {
		t.Fatal("eraser did not restore background")
	}
}

func TestStrokeContinue_WithoutStart(t *testing.T) {
	e := New()
	defer e.Close()
	if err := e.StrokeContinue(400, 300); err != nil {
		t.Fatal(err)
	}
	if !isWhite(e.Image(), 400, 300) {
		t.Fatal("segment drawn without an active stroke")
	}
	if e.Drawing() {
		t.Fatal("drawing should be false")
	}
}

func TestColor(t *testing.T) {
	e := New()
	defer e.Close()
	if err := e.SetColor("#ff0000"); err != nil {
		t.Fatal(err)
	}
	e.StrokeStart(10, 50)
	e.StrokeContinue(200, 50)
	e.StrokeEnd()
	r, g, b := rgbAt(e.Image(), 100, 50)
	if r < 200 || g > 60 || b > 60 {
		t.Fatalf("pixel = %d,%d,%d, want red", r, g, b)
	}

	for _, bad := range []string{"red", "#12", "#gggggg", "#1234567"} {
		if err := e.SetColor(bad); err == nil {
			t.Errorf("SetColor(%q) accepted", bad)
		}
	}
}

func TestScaling(t *testing.T) {
	// WHAT: Pointer positions on a half-size display land at double coordinates.
	// WHY: The rendered canvas is often smaller than the 800x600 buffer.
	e := New()
	defer e.Close()
	if err := e.SetDisplaySize(400, 300); err != nil {
		t.Fatal(err)
	}
	e.StrokeStart(50, 150)
	e.StrokeContinue(150, 150)
	e.StrokeEnd()
	img := e.Image()
	if !isDark(img, 200, 300) {
		t.Fatal("scaled stroke missing at (200,300)")
	}
	if !isWhite(img, 100, 150) {
		t.Fatal("unscaled position was drawn")
	}
	if err := e.SetDisplaySize(0, 300); err == nil {
		t.Fatal("zero display size accepted")
	}
}

func TestReset(t *testing.T) {
	e := New()
	defer e.Close()
	e.StrokeStart(0, 0)
	e.StrokeContinue(800, 600)
	e.Reset()
	if !isWhite(e.Image(), 400, 300) {
		t.Fatal("reset left pixels")
	}
}

func TestDownloadMatchesSnapshot(t *testing.T) {
	e := New()
	defer e.Close()
	e.StrokeStart(10, 10)
	e.StrokeContinue(500, 400)
	e.StrokeEnd()

	download, err := e.PNG()
	if err != nil {
		t.Fatal(err)
	}
	snap, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	mime, fromSnap, err := dataurl.Decode(snap)
	if err != nil {
		t.Fatal(err)
	}
	if mime != dataurl.MIMEPNG {
		t.Errorf("mime = %q", mime)
	}
	if !bytes.Equal(download, fromSnap) {
		t.Fatal("downloaded bytes differ from snapshot payload")
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestApply_StretchesPNG(t *testing.T) {
	e := New()
	defer e.Close()
	var buf bytes.Buffer
	png.Encode(&buf, solid(20, 15, color.RGBA{R: 255, A: 255}))

	if err := e.Apply(dataurl.Format(dataurl.MIMEPNG, buf.Bytes())); err != nil {
		t.Fatal(err)
	}
	img := e.Image()
	for _, p := range [][2]int{{5, 5}, {400, 300}, {790, 590}} {
		r, g, b := rgbAt(img, p[0], p[1])
		if r < 200 || g > 60 || b > 60 {
			t.Errorf("pixel %v = %d,%d,%d, want red", p, r, g, b)
		}
	}
}

func TestApply_JPEG(t *testing.T) {
	e := New()
	defer e.Close()
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(800, 600, color.RGBA{B: 255, A: 255}), &jpeg.Options{Quality: 95})
	if err := e.Apply(dataurl.Format(dataurl.MIMEJPEG, buf.Bytes())); err != nil {
		t.Fatal(err)
	}
	r, g, b := rgbAt(e.Image(), 400, 300)
	if b < 200 || r > 60 || g > 60 {
		t.Errorf("pixel = %d,%d,%d, want blue", r, g, b)
	}
}

func TestApply_Invalid(t *testing.T) {
	e := New()
	defer e.Close()
	if err := e.Apply("not a data url"); !errors.Is(err, dataurl.ErrInvalid) {
		t.Errorf("err = %v", err)
	}
	if err := e.Apply(dataurl.Format(dataurl.MIMEPNG, []byte("garbage"))); err == nil {
		t.Error("garbage image accepted")
	}
}

// fakeSubmitter returns a fixed reply, optionally blocking until released.
type fakeSubmitter struct {
	mu      sync.Mutex
	resp    *editproxy.Response
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
	last    editproxy.Request
}

func (f *fakeSubmitter) Submit(ctx context.Context, req editproxy.Request) (*editproxy.Response, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func greenDataURL() string {
	var buf bytes.Buffer
	png.Encode(&buf, solid(8, 6, color.RGBA{G: 255, A: 255}))
	return dataurl.Format(dataurl.MIMEPNG, buf.Bytes())
}

func TestSubmit_AppliesImage(t *testing.T) {
	u := greenDataURL()
	text := "made it green"
	sub := &fakeSubmitter{resp: &editproxy.Response{EditedImage: &u, ResponseText: &text}}
	e := New(WithSubmitter(sub))
	defer e.Close()

	resp, err := e.Submit(context.Background(), "make it green")
	if err != nil {
		t.Fatal(err)
	}
	if *resp.ResponseText != text {
		t.Errorf("text = %q", *resp.ResponseText)
	}
	if _, err := dataurl.Parse(sub.last.Image); err != nil {
		t.Errorf("snapshot sent is not a data URL: %v", err)
	}
	if sub.last.Command != "make it green" {
		t.Errorf("command = %q", sub.last.Command)
	}
	r, g, b := rgbAt(e.Image(), 400, 300)
	if g < 200 || r > 60 || b > 60 {
		t.Errorf("pixel = %d,%d,%d, want green", r, g, b)
	}
}

func TestSubmit_NoImageLeavesCanvas(t *testing.T) {
	text := "I cannot do that"
	sub := &fakeSubmitter{resp: &editproxy.Response{ResponseText: &text}}
	e := New(WithSubmitter(sub))
	defer e.Close()
	e.StrokeStart(100, 100)
	e.StrokeContinue(300, 100)
	e.StrokeEnd()
	before, _ := e.PNG()

	if _, err := e.Submit(context.Background(), "do something"); err != nil {
		t.Fatal(err)
	}
	after, _ := e.PNG()
	if !bytes.Equal(before, after) {
		t.Fatal("canvas changed on a text-only reply")
	}
}

func TestSubmit_BlankCommandIsNoop(t *testing.T) {
	sub := &fakeSubmitter{resp: &editproxy.Response{}}
	e := New(WithSubmitter(sub))
	defer e.Close()
	resp, err := e.Submit(context.Background(), "   ")
	if err != nil || resp != nil {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	if sub.calls != 0 {
		t.Fatal("blank command was submitted")
	}
}

func TestSubmit_SingleFlight(t *testing.T) {
	// WHAT: A second Submit while one is pending is refused, not queued.
	// WHY: Two replies racing to repaint the canvas would be last-writer-wins.
	sub := &fakeSubmitter{
		resp:    &editproxy.Response{},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := New(WithSubmitter(sub))
	defer e.Close()

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), "first")
		done <- err
	}()
	select {
	case <-sub.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first submit never reached the submitter")
	}
	if !e.Busy() {
		t.Fatal("editor should be busy")
	}
	if _, err := e.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit err = %v, want ErrBusy", err)
	}
	close(sub.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if e.Busy() {
		t.Fatal("busy flag not cleared")
	}
	if sub.calls != 1 {
		t.Fatalf("calls = %d, want 1", sub.calls)
	}
}

func TestSubmit_FailureLeavesCanvas(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("status 500")}
	e := New(WithSubmitter(sub))
	defer e.Close()
	if _, err := e.Submit(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if e.Busy() {
		t.Fatal("busy flag not cleared after failure")
	}
	if !isWhite(e.Image(), 400, 300) {
		t.Fatal("canvas changed after failure")
	}
}

func TestSubmit_NoSubmitter(t *testing.T) {
	e := New()
	defer e.Close()
	if _, err := e.Submit(context.Background(), "x"); !errors.Is(err, ErrNoSubmitter) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseTool(t *testing.T) {
	if tool, err := ParseTool("Eraser"); err != nil || tool != Eraser {
		t.Errorf("ParseTool(Eraser) = %v, %v", tool, err)
	}
	if _, err := ParseTool("brush"); err == nil {
		t.Error("unknown tool accepted")
	}
	if Pencil.String() != "pencil" {
		t.Errorf("String = %q", Pencil.String())
	}
}
