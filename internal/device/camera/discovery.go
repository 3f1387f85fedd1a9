// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuGH/rigrec/internal/device"
)

const (
	defaultDevGlob   = "/dev/video*"
	defaultSysfsRoot = "/sys/class/video4linux"
)

var videoNodeRe = regexp.MustCompile(`^video(\d+)$`)

// v4l2Discovery lists V4L2 capture nodes and collapses the several nodes a
// UVC camera exposes into one descriptor per physical device.
type v4l2Discovery struct {
	devGlob   string
	sysfsRoot string
}

type videoNode struct {
	path   string
	base   string
	number int
}

func (d v4l2Discovery) scan(ctx context.Context) ([]device.Descriptor, error) {
	matches, err := filepath.Glob(d.devGlob)
	if err != nil {
		return nil, fmt.Errorf("scan video nodes: %w", err)
	}

	nodes := make([]videoNode, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		sub := videoNodeRe.FindStringSubmatch(base)
		if sub == nil {
			continue
		}
		n, _ := strconv.Atoi(sub[1])
		nodes = append(nodes, videoNode{path: m, base: base, number: n})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].number < nodes[j].number })

	seen := make(map[string]struct{})
	var out []device.Descriptor
	for _, node := range nodes {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		// Metadata nodes report a non-zero index.
		if idx, ok := d.readAttr(node.base, "index"); ok && idx != "0" {
			continue
		}

		id := d.serial(node.base)
		if id == "" {
			id = node.base
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		name, _ := d.readAttr(node.base, "name")
		out = append(out, device.Descriptor{
			ID:     id,
			Family: device.FamilyCamera,
			Name:   name,
			Path:   node.path,
		})
	}
	return out, nil
}

func (d v4l2Discovery) readAttr(node, attr string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(d.sysfsRoot, node, attr))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// serial reads the USB serial of the device owning node. The node's device
// link points at the USB interface; the serial lives on its parent.
func (d v4l2Discovery) serial(node string) string {
	iface, err := filepath.EvalSymlinks(filepath.Join(d.sysfsRoot, node, "device"))
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(iface), "serial"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
