// Package assets carries the files the tracker container image is built from.
package assets

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed tracker/Dockerfile tracker/requirements.txt tracker/eyetracker.py
var trackerFS embed.FS

// Names lists the launch assets in hashing order.
var Names = []string{"Dockerfile", "requirements.txt", "eyetracker.py"}

// HashLen is the number of hex characters kept from the content hash.
const HashLen = 12

// File is one launch asset.
type File struct {
	Name string
	Data []byte
}

// Files returns the embedded assets in hashing order.
func Files() ([]File, error) {
	out := make([]File, 0, len(Names))
	for _, name := range Names {
		data, err := trackerFS.ReadFile("tracker/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded %s: %w", name, err)
		}
		out = append(out, File{Name: name, Data: data})
	}
	return out, nil
}

// Hash is the short content hash over files, used as the image tag.
func Hash(files []File) string {
	h := sha256.New()
	for _, f := range files {
		h.Write(f.Data)
	}
	return hex.EncodeToString(h.Sum(nil))[:HashLen]
}

// Stage writes files into dir, creating it if needed.
func Stage(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating build context: %w", err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644); err != nil {
			return fmt.Errorf("staging %s: %w", f.Name, err)
		}
	}
	return nil
}
