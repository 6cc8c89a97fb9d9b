// Package frames handles the still images sampled from a source video.
// Sampling itself happens upstream; this package loads pre-sampled frame
// files and turns them into the self-describing payloads the provider
// client consumes.
package frames

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Frame is one sampled still, ready to send.
type Frame struct {
	Path     string
	MIMEType string
	// DataURI is the frame as data:<mime>;base64,<payload>.
	DataURI string
}

// DataURI encodes raw image bytes as a self-describing payload.
func DataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// Load reads one image file and sniffs its MIME type from content, not
// the file extension.
func Load(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%s is not an image (detected %s)", path, mtype.String())
	}

	return &Frame{
		Path:     path,
		MIMEType: mtype.String(),
		DataURI:  DataURI(mtype.String(), data),
	}, nil
}

// LoadDir loads every image file in dir, in lexical filename order so
// frames keep their sampling order (frame sampling writes zero-padded
// timestamps into filenames).
func LoadDir(dir string) ([]*Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var frames []*Frame
	for _, name := range names {
		frame, err := Load(filepath.Join(dir, name))
		if err != nil {
			// Non-image files (reports, notes) living next to frames
			// are skipped, not fatal.
			continue
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("no image files found in %s", dir)
	}
	return frames, nil
}
