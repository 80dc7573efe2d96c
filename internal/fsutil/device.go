package fsutil

import (
	"os"
	"path/filepath"
	"syscall"
)

// Device returns the device identifier of path's filesystem, the same value
// os.SameFile compares internally. It is used to decide hard-link
// eligibility: two paths can only be hard-linked if they share a device.
func Device(path string) (uint64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Dev), true
}

// DeviceOfNearestAncestor walks up from path until it finds a directory
// that exists, and returns its device identifier. Used to test hard-link
// eligibility against a game directory that may not have been created yet.
func DeviceOfNearestAncestor(path string) (uint64, bool) {
	dir := path
	for {
		if dev, ok := Device(dir); ok {
			return dev, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return 0, false
		}
		dir = parent
	}
}
