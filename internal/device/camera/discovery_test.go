// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ManuGH/rigrec/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	number int
	index  string
	name   string
	usb    string // USB device dir name; empty means no device link
	serial string
}

// buildFakeV4L2 lays out /dev/videoN files and a sysfs tree like the kernel's.
func buildFakeV4L2(t *testing.T, nodes []fakeNode) (devGlob, sysfsRoot string) {
	t.Helper()
	root := t.TempDir()
	dev := filepath.Join(root, "dev")
	sysfsRoot = filepath.Join(root, "sys", "class", "video4linux")
	usbRoot := filepath.Join(root, "sys", "devices", "usb1")
	require.NoError(t, os.MkdirAll(dev, 0o755))
	require.NoError(t, os.MkdirAll(sysfsRoot, 0o755))

	write := func(path, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content+"\n"), 0o644))
	}

	for _, n := range nodes {
		base := "video" + strconv.Itoa(n.number)
		write(filepath.Join(dev, base), "")
		nodeDir := filepath.Join(sysfsRoot, base)
		write(filepath.Join(nodeDir, "index"), n.index)
		write(filepath.Join(nodeDir, "name"), n.name)
		if n.usb != "" {
			usbDev := filepath.Join(usbRoot, n.usb)
			iface := filepath.Join(usbDev, n.usb+":1.0")
			require.NoError(t, os.MkdirAll(iface, 0o755))
			if n.serial != "" {
				write(filepath.Join(usbDev, "serial"), n.serial)
			}
			link := filepath.Join(nodeDir, "device")
			if _, err := os.Lstat(link); os.IsNotExist(err) {
				require.NoError(t, os.Symlink(iface, link))
			}
		}
	}
	return filepath.Join(dev, "video*"), sysfsRoot
}

func TestV4L2Discovery_OneDescriptorPerCamera(t *testing.T) {
	devGlob, sysfs := buildFakeV4L2(t, []fakeNode{
		{number: 0, index: "0", name: "ZED 2i", usb: "1-1", serial: "1001"},
		{number: 1, index: "1", name: "ZED 2i", usb: "1-1", serial: "1001"},
		{number: 2, index: "0", name: "ZED 2i", usb: "1-2", serial: "1002"},
		{number: 3, index: "1", name: "ZED 2i", usb: "1-2", serial: "1002"},
		{number: 4, index: "0", name: "Webcam"},
	})

	got, err := v4l2Discovery{devGlob: devGlob, sysfsRoot: sysfs}.scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "1001", got[0].ID)
	assert.Equal(t, device.FamilyCamera, got[0].Family)
	assert.Equal(t, "ZED 2i", got[0].Name)
	assert.Equal(t, "video0", filepath.Base(got[0].Path))

	assert.Equal(t, "1002", got[1].ID)
	assert.Equal(t, "video2", filepath.Base(got[1].Path))

	// No serial available: the node name stands in.
	assert.Equal(t, "video4", got[2].ID)
	assert.Equal(t, "Webcam", got[2].Name)
}

func TestV4L2Discovery_Empty(t *testing.T) {
	devGlob, sysfs := buildFakeV4L2(t, nil)
	got, err := v4l2Discovery{devGlob: devGlob, sysfsRoot: sysfs}.scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestV4L2Discovery_Cancelled(t *testing.T) {
	devGlob, sysfs := buildFakeV4L2(t, []fakeNode{{number: 0, index: "0"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v4l2Discovery{devGlob: devGlob, sysfsRoot: sysfs}.scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
