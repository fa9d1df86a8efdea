package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VolumeMount represents a Docker volume mount.
type VolumeMount struct {
	Type       string // "bind" or "volume"
	Source     string // host path or volume name
	Target     string // container path
	ReadOnly   bool
	CreateHost bool // whether to create host directory if it doesn't exist
}

// WorkspaceMounts returns the read-write workspace bind mount, or nil when
// either side of the mapping is unset.
func WorkspaceMounts(hostPath, sandboxPath string) []VolumeMount {
	if hostPath == "" || sandboxPath == "" {
		return nil
	}
	return []VolumeMount{
		{
			Type:       "bind",
			Source:     hostPath,
			Target:     sandboxPath,
			CreateHost: true,
		},
	}
}

// PrepareVolumeMounts prepares volume mounts, creating host directories as needed.
func PrepareVolumeMounts(mounts []VolumeMount) error {
	for _, mount := range mounts {
		if mount.Type == "bind" && mount.CreateHost {
			source := expandPath(mount.Source)

			if err := os.MkdirAll(source, 0755); err != nil {
				return fmt.Errorf("failed to create bind mount directory %s: %w", source, err)
			}
		}
	}

	return nil
}

// expandPath expands ~ to home directory in paths.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}
