package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

type trailRenderer interface {
	RenderTrail(ctx context.Context, info serverInfo, trail []trailPoint) (string, error)
}

type mapRenderer struct {
	cfg    MapsConfig
	client *http.Client
	mu     sync.Mutex
}

func newMapRenderer(cfg MapsConfig) *mapRenderer {
	return &mapRenderer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *mapRenderer) mapPath(info serverInfo) string {
	return filepath.Join(m.cfg.CacheDir, fmt.Sprintf("map_%d_%d.jpg", info.Seed, info.Size))
}

func (m *mapRenderer) ensureMap(ctx context.Context, info serverInfo) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.mapPath(info)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	url := fmt.Sprintf(m.cfg.URLTemplate, info.Seed, info.Size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching map: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching map: status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", fmt.Errorf("reading map: %w", err)
	}

	if err := os.MkdirAll(m.cfg.CacheDir, 0o755); err != nil {
		return "", err
	}
	if err := atomicWrite(path, data, 0o644); err != nil {
		return "", err
	}
	log.Info().Str("url", url).Str("path", path).Msg("map cached")
	return path, nil
}

// RenderTrail writes a PNG of the map with the trail drawn in red and
// returns its path. The caller owns the file.
func (m *mapRenderer) RenderTrail(ctx context.Context, info serverInfo, trail []trailPoint) (string, error) {
	if info.Size <= 0 {
		return "", fmt.Errorf("invalid map size %d", info.Size)
	}
	path, err := m.ensureMap(ctx, info)
	if err != nil {
		return "", err
	}
	img, err := gg.LoadImage(path)
	if err != nil {
		return "", fmt.Errorf("decoding map: %w", err)
	}
	if m.cfg.MaxWidth > 0 && img.Bounds().Dx() > m.cfg.MaxWidth {
		img = downscale(img, m.cfg.MaxWidth)
	}

	dc := gg.NewContextForImage(img)
	width := dc.Width()
	dc.SetRGBA(1, 0, 0, 1)
	dc.SetLineWidth(3)
	var px, py float64
	for i, p := range trail {
		px, py = worldToImage(float64(p.Pos.X), float64(p.Pos.Y), info.Size, width)
		if i == 0 {
			dc.MoveTo(px, py)
			continue
		}
		dc.LineTo(px, py)
	}
	dc.Stroke()
	if len(trail) > 0 {
		dc.DrawCircle(px, py, 5)
		dc.Fill()
	}

	if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(m.cfg.OutputDir, "trail_"+uuid.NewString()+".png")
	if err := dc.SavePNG(out); err != nil {
		return "", fmt.Errorf("writing trail image: %w", err)
	}
	return out, nil
}

// worldToImage maps world coordinates (origin at the map centre, y up) to
// pixel coordinates on a square map image of the given width.
func worldToImage(x, y float64, mapSize, width int) (float64, float64) {
	scale := float64(width) / float64(mapSize)
	half := float64(mapSize) / 2
	return (x + half) * scale, (half - y) * scale
}

func downscale(src image.Image, maxWidth int) image.Image {
	b := src.Bounds()
	h := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
