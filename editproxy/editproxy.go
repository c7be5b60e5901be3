// Package editproxy forwards a canvas snapshot and an edit command to an
// image model and relays back at most one image and one text fragment.
//
// Both historical endpoints are served by the same code path; a Variant
// selects image validation, part selection and local persistence:
//
//	svc := editproxy.New(editproxy.Config{Generator: gen, SaveDir: "data/edits"})
//	r.Post("/edit", svc.Handler(editproxy.VariantEdit))
//	r.Post("/edit2", svc.Handler(editproxy.VariantEdit2))
package editproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/doodle/dataurl"
	"github.com/hazyhaar/doodle/idgen"
	"github.com/hazyhaar/doodle/imagegen"
	"github.com/hazyhaar/doodle/kit"
	"github.com/hazyhaar/doodle/observability"
	"github.com/hazyhaar/doodle/shield"
)

// AuditSink receives one entry per handled request. *observability.AuditLogger
// satisfies it.
type AuditSink interface {
	LogAsync(entry *observability.AuditEntry)
}

// Config configures a Service.
type Config struct {
	// Generator is the model client. Required.
	Generator imagegen.Generator

	// SaveDir receives images for variants with PersistLocally.
	// Default: "edited_images".
	SaveDir string

	// NewFileName names saved images (without extension).
	// Default: edited_image_<epoch-millis>.
	NewFileName idgen.Generator

	// SanitizeText strips markup from model text before it is returned.
	SanitizeText bool

	// Audit is optional.
	Audit AuditSink

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service handles edit requests. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	gen      imagegen.Generator
	store    *imageStore
	sanitize *bluemonday.Policy
	audit    AuditSink
	logger   *slog.Logger
}

// New creates a Service. It panics if cfg.Generator is nil.
func New(cfg Config) *Service {
	if cfg.Generator == nil {
		panic("editproxy: nil Generator")
	}
	if cfg.SaveDir == "" {
		cfg.SaveDir = "edited_images"
	}
	if cfg.NewFileName == nil {
		cfg.NewFileName = idgen.Prefixed("edited_image_", idgen.EpochMillis(nil))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		gen:    cfg.Generator,
		store:  &imageStore{dir: cfg.SaveDir, newName: cfg.NewFileName},
		audit:  cfg.Audit,
		logger: cfg.Logger,
	}
	if cfg.SanitizeText {
		s.sanitize = bluemonday.StrictPolicy()
	}
	return s
}

// Edit validates req, performs one model round trip and extracts the reply.
// Validation failures return before any model call.
func (s *Service) Edit(ctx context.Context, v Variant, req *Request) (res *Result, err error) {
	start := time.Now()
	defer func() { s.record(ctx, v, req, res, err, time.Since(start)) }()

	if strings.TrimSpace(req.Command) == "" {
		return nil, ErrMissingCommand
	}
	if req.Image == "" && v.RequireImage {
		return nil, ErrMissingImage
	}

	genReq := &imagegen.Request{Prompt: req.Command}
	if req.Image != "" {
		d, err := dataurl.Parse(req.Image)
		if err != nil {
			return nil, fmt.Errorf("editproxy: %w", err)
		}
		data, err := d.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
		}
		genReq.Image = &imagegen.Image{MIMEType: d.MIMEType, Data: data}
	}

	reply, err := s.gen.Generate(ctx, genReq)
	if err != nil {
		return nil, fmt.Errorf("editproxy: %s: %w", v.Name, err)
	}

	img, text := pickParts(reply.Parts, v.KeepFirstMatch)
	res = &Result{}
	if img != nil {
		u := dataurl.Format(img.MIMEType, img.Data)
		res.EditedImage = &u
	}
	if text != nil {
		t := *text
		if s.sanitize != nil {
			t = s.sanitize.Sanitize(t)
		}
		res.ResponseText = &t
	}
	if v.PersistLocally {
		res.SavedFilePath = s.persist(ctx, reply.Parts, img)
	}
	return res, nil
}

// persist saves every image part. Failures are logged and never returned.
// It reports the path of the kept image when that save succeeded.
func (s *Service) persist(ctx context.Context, parts []imagegen.Part, kept *imagegen.Image) *string {
	var keptPath *string
	for _, p := range parts {
		if !p.IsImage() {
			continue
		}
		path, err := s.store.save(p.Image.Data)
		if err != nil {
			s.log(ctx).Error("editproxy: save image failed", "dir", s.store.dir, "error", err)
			continue
		}
		s.log(ctx).Info("editproxy: image saved", "path", path, "bytes", len(p.Image.Data))
		if p.Image == kept {
			pp := path
			keptPath = &pp
		}
	}
	return keptPath
}

func (s *Service) record(ctx context.Context, v Variant, req *Request, res *Result, err error, d time.Duration) {
	log := s.log(ctx)
	if err != nil {
		log.Warn("editproxy: edit failed", "variant", v.Name, "error", err, "duration_ms", d.Milliseconds())
	} else {
		log.Info("editproxy: edit done", "variant", v.Name,
			"image", res.EditedImage != nil, "text", res.ResponseText != nil, "duration_ms", d.Milliseconds())
	}
	if s.audit == nil {
		return
	}

	params := map[string]any{
		"command":   req.Command,
		"has_image": req.Image != "",
		"transport": kit.GetTransport(ctx),
	}
	var result any
	if err == nil {
		result = map[string]any{
			"image":      res.EditedImage != nil,
			"text":       res.ResponseText != nil,
			"saved_path": res.SavedFilePath,
			"model":      s.gen.Model(),
		}
	}
	entry := observability.NewAuditEntry("editproxy", v.Name, params, result, err, d)
	entry.RequestID = kit.GetRequestID(ctx)
	switch {
	case err != nil && statusFor(err) < 500:
		entry.Status = "rejected"
		entry.ErrorCode = "bad_request"
	case err != nil:
		entry.Status = "error"
		entry.ErrorCode = errorCode(err)
	default:
		entry.Status = "success"
	}
	s.audit.LogAsync(entry)
}

func errorCode(err error) string {
	if errors.Is(err, ErrMalformedImage) {
		return "malformed_image"
	}
	return "upstream"
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(shield.LoggerKey).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

// Model returns the generator's model name.
func (s *Service) Model() string { return s.gen.Model() }
