package layers

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadManifest reads and parses the manifest JSON at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetMissing, path, err)
	}

	var raw struct {
		Width  int             `json:"width"`
		Height int             `json:"height"`
		Layers []ManifestLayer `json:"layers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	return &Manifest{
		Width:  raw.Width,
		Height: raw.Height,
		Layers: raw.Layers,
	}, nil
}

func kindVisible(ml ManifestLayer) bool {
	if ml.Visible == nil {
		return true
	}
	return *ml.Visible
}
