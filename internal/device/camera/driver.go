// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"fmt"
	"strings"

	"github.com/ManuGH/rigrec/internal/device"
)

// Driver is the camera vendor contract the recorder depends on.
type Driver interface {
	// Enumerate lists attached cameras, one descriptor per physical device.
	Enumerate(ctx context.Context) ([]device.Descriptor, error)
	// Open binds to the camera with the shared settings.
	Open(ctx context.Context, desc device.Descriptor, s Settings) (Handle, error)
	// Extension is the artifact file extension without the dot.
	Extension() string
}

// Handle is an opened camera.
type Handle interface {
	// EnableRecording arms encoding into the artifact at path.
	EnableRecording(path string) error
	// Grab blocks until one frame is captured or the driver's timeout expires.
	Grab(ctx context.Context) error
	// Close releases the camera and finalizes the artifact.
	Close() error
}

// Settings are shared by every camera in a session.
type Settings struct {
	Resolution Resolution
	FPS        int
}

// Resolution is a named per-eye frame size.
type Resolution struct {
	Name   string
	Width  int
	Height int
}

// StereoWidth is the width of the side-by-side frame carrying both eyes.
func (r Resolution) StereoWidth() int { return 2 * r.Width }

// VideoSize renders the side-by-side frame size as WxH.
func (r Resolution) VideoSize() string {
	return fmt.Sprintf("%dx%d", r.StereoWidth(), r.Height)
}

var resolutions = map[string]Resolution{
	"HD2K":   {Name: "HD2K", Width: 2208, Height: 1242},
	"HD1080": {Name: "HD1080", Width: 1920, Height: 1080},
	"HD1200": {Name: "HD1200", Width: 1920, Height: 1200},
	"HD720":  {Name: "HD720", Width: 1280, Height: 720},
	"SVGA":   {Name: "SVGA", Width: 960, Height: 600},
	"VGA":    {Name: "VGA", Width: 672, Height: 376},
}

// ParseResolution looks up a resolution preset by name, case-insensitively.
func ParseResolution(name string) (Resolution, error) {
	r, ok := resolutions[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Resolution{}, fmt.Errorf("unknown camera resolution %q", name)
	}
	return r, nil
}

// ArtifactName returns camera_<id>.<ext> with path separators in id replaced.
func ArtifactName(id, ext string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(id)
	return "camera_" + safe + "." + ext
}
