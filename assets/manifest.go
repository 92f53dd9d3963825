// Package assets materializes the image and sound files a game's
// data manifest references. Missing images are fetched from an AI
// image endpoint when possible and fall back to generated
// placeholders; missing sounds are copied from a stock directory.
// Scaffolding is best-effort: it never fails the generation flow.
package assets

import (
	"encoding/json"
	"fmt"
)

// ImageAsset is one image entry of the data manifest.
type ImageAsset struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SoundAsset is one sound entry of the data manifest.
type SoundAsset struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Manifest is the asset-bearing slice of a game's data.json.
type Manifest struct {
	Assets struct {
		Images []ImageAsset `json:"images"`
		Sounds []SoundAsset `json:"sounds"`
	} `json:"assets"`
}

// ParseManifest decodes the asset manifest out of generated data.
func ParseManifest(data string) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return Manifest{}, fmt.Errorf("error parsing asset manifest: %w", err)
	}
	return m, nil
}
