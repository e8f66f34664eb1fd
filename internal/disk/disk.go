// Package disk measures how much space a server installation uses.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
)

// ErrWalkFailed is returned when any entry under the root cannot be read.
// No partial size is reported in that case.
var ErrWalkFailed = errors.New("disk: directory walk failed")

// InstallRoot returns the server installation directory for a stats
// directory laid out as <install_root>/<world>/stats.
func InstallRoot(statsRoot string) string {
	return filepath.Dir(filepath.Dir(filepath.Clean(statsRoot)))
}

// Size returns the total byte length of every regular file under root.
// Symbolic links are not followed.
func Size(ctx context.Context, root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWalkFailed, root, err)
	}
	return total, nil
}

// Family renders a directory size as the minecraft_directory_size gauge.
func Family(server string, bytes int64) exposition.Family {
	f := exposition.Family{
		Name: "minecraft_directory_size",
		Help: "Bytes used by the server installation on disk.",
		Kind: exposition.Gauge,
	}
	f.Add(float64(bytes), exposition.Label{Name: "server", Value: server})
	return f
}
