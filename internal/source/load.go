package source

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"melodypath/internal/safeio"
)

// Supported reports whether Load understands the file extension of path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".json":
		return true
	}
	return false
}

// Load reads a .mid/.midi or .json file under fs. The track ID defaults to
// the file name without extension.
func Load(fs *safeio.SafeFS, path string, opts SMFOptions) (Track, error) {
	var (
		tr  Track
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		f, openErr := fs.SafeOpen(path)
		if openErr != nil {
			return Track{}, fmt.Errorf("source: open %s: %w", path, openErr)
		}
		defer f.Close()
		tr, err = DecodeSMF(f, opts)
	case ".json":
		data, readErr := fs.SafeReadFile(path)
		if readErr != nil {
			return Track{}, fmt.Errorf("source: read %s: %w", path, readErr)
		}
		tr, err = DecodeJSON(data)
	default:
		return Track{}, fmt.Errorf("source: unsupported input %s", path)
	}
	if err != nil {
		return Track{}, fmt.Errorf("%s: %w", path, err)
	}
	if tr.ID == "" {
		base := filepath.Base(path)
		tr.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return tr, nil
}

// List returns the supported input files directly inside dir, sorted.
func List(fs *safeio.SafeFS, dir string) ([]string, error) {
	entries, err := fs.SafeReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("source: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
