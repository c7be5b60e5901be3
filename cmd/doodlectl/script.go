package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/doodle/canvas"
)

// Script is a recorded drawing session.
//
//	display: {width: 400, height: 300}
//	steps:
//	  - tool: pencil
//	    color: "#ff0000"
//	  - stroke: [[10, 10], [120, 80], [200, 40]]
//	  - submit: "add clouds"
type Script struct {
	Display *Size  `yaml:"display"`
	Steps   []Step `yaml:"steps"`
}

// Size is the rendered canvas size the stroke coordinates refer to.
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Step is one action. Fields are applied in the order tool, color, reset,
// stroke, submit; unset fields are skipped.
type Step struct {
	Tool   string      `yaml:"tool"`
	Color  string      `yaml:"color"`
	Reset  bool        `yaml:"reset"`
	Stroke [][]float64 `yaml:"stroke"`
	Submit string      `yaml:"submit"`
}

// LoadScript reads and validates a YAML script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return &sc, sc.Validate()
}

// Validate checks tools and stroke lengths.
func (sc *Script) Validate() error {
	if sc.Display != nil && (sc.Display.Width <= 0 || sc.Display.Height <= 0) {
		return fmt.Errorf("display: width and height must be > 0")
	}
	for i, st := range sc.Steps {
		if st.Tool != "" {
			if _, err := canvas.ParseTool(st.Tool); err != nil {
				return fmt.Errorf("step[%d]: %w", i, err)
			}
		}
		if len(st.Stroke) == 1 {
			return fmt.Errorf("step[%d]: stroke needs at least two points", i)
		}
		for j, p := range st.Stroke {
			if len(p) != 2 {
				return fmt.Errorf("step[%d]: point %d: want [x, y], got %v", i, j, p)
			}
		}
	}
	return nil
}

// Replay applies the script to ed. Submissions go through ed.Submit and
// stop the replay on error.
func (sc *Script) Replay(ctx context.Context, ed *canvas.Editor, logger *slog.Logger) error {
	if sc.Display != nil {
		if err := ed.SetDisplaySize(sc.Display.Width, sc.Display.Height); err != nil {
			return err
		}
	}
	for i, st := range sc.Steps {
		if st.Tool != "" {
			tool, _ := canvas.ParseTool(st.Tool)
			ed.SetTool(tool)
		}
		if st.Color != "" {
			if err := ed.SetColor(st.Color); err != nil {
				return fmt.Errorf("step[%d]: %w", i, err)
			}
		}
		if st.Reset {
			ed.Reset()
		}
		if len(st.Stroke) > 0 {
			ed.StrokeStart(st.Stroke[0][0], st.Stroke[0][1])
			for _, p := range st.Stroke[1:] {
				if err := ed.StrokeContinue(p[0], p[1]); err != nil {
					return fmt.Errorf("step[%d]: %w", i, err)
				}
			}
			ed.StrokeEnd()
		}
		if st.Submit != "" {
			resp, err := ed.Submit(ctx, st.Submit)
			if err != nil {
				return fmt.Errorf("step[%d]: submit %q: %w", i, st.Submit, err)
			}
			if resp != nil && resp.ResponseText != nil {
				logger.Info("model replied", "step", i, "text", *resp.ResponseText)
			}
			logger.Info("submitted", "step", i, "command", st.Submit,
				"image", resp != nil && resp.EditedImage != nil)
		}
	}
	return nil
}
