package assets

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"

	"gamesmith/fs"
	"gamesmith/logger"
)

const fetchAttempts = 3

// Scaffolder creates the asset files a manifest references but the
// project does not yet have.
type Scaffolder struct {
	fs            *fs.FileSystem
	fetcher       Fetcher
	stockSoundDir string
	logger        logger.Logger
}

// NewScaffolder builds a scaffolder. fetcher may be nil, in which
// case every missing image becomes a placeholder.
func NewScaffolder(fsys *fs.FileSystem, fetcher Fetcher, stockSoundDir string, l logger.Logger) *Scaffolder {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Scaffolder{fs: fsys, fetcher: fetcher, stockSoundDir: stockSoundDir, logger: l}
}

// Materialize fills in every asset the manifest names that is absent
// on disk. Individual failures are logged and skipped.
func (s *Scaffolder) Materialize(ctx context.Context, projectDir, theme string, m Manifest) {
	for _, img := range m.Assets.Images {
		s.materializeImage(ctx, projectDir, theme, img)
	}
	for _, snd := range m.Assets.Sounds {
		s.materializeSound(projectDir, snd)
	}
}

func (s *Scaffolder) materializeImage(ctx context.Context, projectDir, theme string, img ImageAsset) {
	target, ok := assetTarget(projectDir, img.Path)
	if !ok {
		s.logger.WithField("path", img.Path).Warn("rejected unsafe asset path")
		return
	}
	if s.fs.FileExists(target) {
		return
	}

	width, height := img.Width, img.Height
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 64
	}

	if s.fetcher != nil {
		prompt := imagePrompt(theme, img.Name)
		for attempt := 1; attempt <= fetchAttempts; attempt++ {
			data, err := s.fetcher.Fetch(ctx, prompt, max(width, 512), max(height, 512))
			if err != nil {
				s.logger.WithField("asset", img.Name).WithField("attempt", attempt).Debug("image fetch failed")
				continue
			}
			if err := s.fs.WriteFile(target, data); err != nil {
				s.logger.WithField("asset", img.Name).Warn("failed to write fetched image")
				return
			}
			return
		}
	}

	if err := s.fs.WriteFile(target, placeholderPNG(img.Name, width, height)); err != nil {
		s.logger.WithField("asset", img.Name).Warn("failed to write placeholder image")
	}
}

func (s *Scaffolder) materializeSound(projectDir string, snd SoundAsset) {
	target, ok := assetTarget(projectDir, snd.Path)
	if !ok {
		s.logger.WithField("path", snd.Path).Warn("rejected unsafe asset path")
		return
	}
	if s.fs.FileExists(target) || s.stockSoundDir == "" {
		return
	}

	entries, err := s.fs.ReadDir(s.stockSoundDir)
	if err != nil {
		return
	}
	var stock []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".mp3") {
			stock = append(stock, e.Name())
		}
	}
	if len(stock) == 0 {
		return
	}

	// Prefer a stock file with the same name; otherwise pick one
	// deterministically so regeneration stays stable.
	chosen := filepath.Base(target)
	if !s.fs.FileExists(filepath.Join(s.stockSoundDir, chosen)) {
		chosen = stock[int(hash32(snd.Name))%len(stock)]
	}

	if err := s.fs.CopyFile(filepath.Join(s.stockSoundDir, chosen), target); err != nil {
		s.logger.WithField("asset", snd.Name).Warn("failed to copy stock sound")
	}
}

// assetTarget resolves a manifest path against the project directory
// and rejects anything escaping the assets subtree.
func assetTarget(projectDir, rel string) (string, bool) {
	rel = filepath.ToSlash(rel)
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", false
	}
	if !strings.HasPrefix(filepath.ToSlash(clean), "assets/") {
		clean = filepath.Join("assets", filepath.Base(clean))
	}
	return filepath.Join(projectDir, clean), true
}

func imagePrompt(theme, name string) string {
	clean := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	base := clean
	if theme != "" {
		base = fmt.Sprintf("%s style, %s", theme, clean)
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, "background") || strings.Contains(lower, "bg") {
		return base + ", full scenery, game background, highly detailed, no characters"
	}
	return base + ", game sprite, isolated object, simple white background, vector art"
}

// placeholderPNG renders a solid-color stand-in with a border so the
// game stays playable before real art exists. The color is derived
// from the asset name, which keeps regeneration deterministic.
func placeholderPNG(name string, width, height int) []byte {
	h := hash32(name)
	fill := color.RGBA{
		R: uint8(100 + h%100),
		G: uint8(100 + (h>>8)%100),
		B: uint8(100 + (h>>16)%100),
		A: 255,
	}
	border := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				img.SetRGBA(x, y, border)
			} else {
				img.SetRGBA(x, y, fill)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
