package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/banshee-data/hillshader/internal/lidar/pipeline"
)

// expandInputs turns the argument list into the file list for a batch.
// Files are kept in argument order; a directory contributes its supported
// files (not recursively) in name order. A file with an unknown extension
// named explicitly is kept so the batch reports it.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || pipeline.KindOf(e.Name()) == pipeline.InputUnknown {
				continue
			}
			found = append(found, filepath.Join(arg, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
