// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session creates the on-disk directory tree for one recording run.
//
// A session root is named recording_<YYYYMMDD_HHMMSS> and holds one
// subdirectory per device family. Roots are never reused: a second Create in
// the same second under the same base directory fails.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/rigrec/internal/log"
)

// ErrDirectoryCreation is returned when any part of the layout cannot be created.
var ErrDirectoryCreation = errors.New("session directory creation failed")

const (
	// DefaultBaseName is the base directory used when none is given, relative
	// to the working directory.
	DefaultBaseName = "results"

	// RootPrefix prefixes every session root name.
	RootPrefix = "recording_"
	// TimestampLayout formats the creation time in the root name.
	TimestampLayout = "20060102_150405"

	CameraSubdir      = "camera"
	PositioningSubdir = "positioning"

	dirPerm = 0o755
)

// Layout is the directory tree of one session. It is immutable once created.
type Layout struct {
	root           string
	cameraDir      string
	positioningDir string
	createdAt      time.Time
}

// Create builds <baseDir>/recording_<ts>/{camera,positioning}. An empty
// baseDir means <cwd>/results. A partially created tree is left on disk
// when a later step fails.
func Create(baseDir string, now time.Time) (*Layout, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("%w: resolve working directory: %w", ErrDirectoryCreation, err)
		}
		baseDir = filepath.Join(wd, DefaultBaseName)
	}

	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: base %s: %w", ErrDirectoryCreation, baseDir, err)
	}

	l := &Layout{
		root:      filepath.Join(baseDir, RootPrefix+now.Format(TimestampLayout)),
		createdAt: now,
	}
	l.cameraDir = filepath.Join(l.root, CameraSubdir)
	l.positioningDir = filepath.Join(l.root, PositioningSubdir)

	// Mkdir, not MkdirAll: an existing entry means a collision.
	if err := os.Mkdir(l.root, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: root %s: %w", ErrDirectoryCreation, l.root, err)
	}
	for _, dir := range []string{l.cameraDir, l.positioningDir} {
		if err := os.Mkdir(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDirectoryCreation, dir, err)
		}
	}

	lg := log.WithComponent("session")
	lg.Info().
		Str(log.FieldEvent, "session.created").
		Str(log.FieldSessionRoot, l.root).
		Time("created_at", now).
		Msg("session layout created")

	return l, nil
}

// Root returns the session root directory.
func (l *Layout) Root() string { return l.root }

// CameraDir returns the directory for camera artifacts.
func (l *Layout) CameraDir() string { return l.cameraDir }

// PositioningDir returns the directory for positioning artifacts.
func (l *Layout) PositioningDir() string { return l.positioningDir }

// CreatedAt returns the timestamp the root was named after.
func (l *Layout) CreatedAt() time.Time { return l.createdAt }

// ID returns the root's base name, used as the session identifier in logs.
func (l *Layout) ID() string { return filepath.Base(l.root) }

// DirFor returns the subdirectory for a device family name.
func (l *Layout) DirFor(family string) (string, bool) {
	switch family {
	case CameraSubdir:
		return l.cameraDir, true
	case PositioningSubdir:
		return l.positioningDir, true
	default:
		return "", false
	}
}
