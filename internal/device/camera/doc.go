// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package camera records stereo cameras.
//
// A Recorder binds one camera descriptor to an artifact under the session's
// camera directory and drives it through a Driver. Two drivers are provided:
// FFmpegDriver captures V4L2 nodes with an ffmpeg subprocess per camera, and
// SimDriver fakes cameras for tests and hardware-free runs.
package camera
