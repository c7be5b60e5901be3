package editproxy

import (
	"fmt"
	"os"

	"github.com/hazyhaar/doodle/idgen"
	"github.com/hazyhaar/doodle/safe"
)

// imageStore writes returned images as <dir>/<name>.png. Names come from
// the configured generator, by default edited_image_<epoch-millis>, so two
// saves in the same millisecond overwrite each other.
type imageStore struct {
	dir     string
	newName idgen.Generator
}

func (s *imageStore) save(data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("editproxy: create save dir: %w", err)
	}
	name := s.newName() + ".png"
	if err := safe.ValidateFileName(name); err != nil {
		return "", fmt.Errorf("editproxy: image name: %w", err)
	}
	path, err := safe.SafePath(s.dir, name)
	if err != nil {
		return "", fmt.Errorf("editproxy: image path: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("editproxy: write image: %w", err)
	}
	return path, nil
}
