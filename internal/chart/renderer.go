// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chart renders the per-country statistics bar chart and stores it
// under a deterministic file name so repeated identical requests reuse the
// same artifact.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Renderer writes chart PNGs into a storage directory.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer storing charts under dir. The directory is
// created on first render if it does not exist.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// ArtifactName returns the deterministic file name for a country + range.
// Identical inputs always map to the same file; concurrent identical requests
// race on it and last-writer-wins is acceptable.
func ArtifactName(country, start, end string) string {
	return fmt.Sprintf("%s-%s-%s.png", country, start, end)
}

// Render draws a grouped bar chart of confirmed/recovered/deaths per day and
// writes it to the artifact path. Returns the artifact file name.
func (r *Renderer) Render(country, start, end string, dates []string, confirmed, recovered, deaths []int64) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart directory %s: %w", r.dir, err)
	}

	name := ArtifactName(country, start, end)
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file %s: %w", path, err)
	}
	defer f.Close()

	if len(dates) == 0 {
		// Nothing to plot: write a blank canvas so the artifact still
		// exists and the mail attachment is valid.
		if err := writeBlank(f); err != nil {
			return "", fmt.Errorf("render empty chart: %w", err)
		}
		return name, nil
	}

	bars := make([]gochart.Value, 0, len(dates)*3)
	for i, date := range dates {
		bars = append(bars,
			gochart.Value{Label: date, Value: float64(confirmed[i]), Style: barStyle(colorConfirmed)},
			gochart.Value{Label: "", Value: float64(recovered[i]), Style: barStyle(colorRecovered)},
			gochart.Value{Label: "", Value: float64(deaths[i]), Style: barStyle(colorDeaths)},
		)
	}

	graph := gochart.BarChart{
		Title:    fmt.Sprintf("%s - COVID Analysis (%s to %s)", country, start, end),
		Width:    1280,
		Height:   640,
		BarWidth: 18,
		Bars:     bars,
		XAxis:    gochart.Style{TextRotationDegrees: 45},
	}

	if err := graph.Render(gochart.PNG, f); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	return name, nil
}

var (
	colorConfirmed = drawing.Color{R: 99, G: 110, B: 250, A: 255}
	colorRecovered = drawing.Color{R: 0, G: 204, B: 150, A: 255}
	colorDeaths    = drawing.Color{R: 239, G: 85, B: 59, A: 255}
)

func barStyle(c drawing.Color) gochart.Style {
	return gochart.Style{FillColor: c, StrokeColor: c}
}

// writeBlank encodes a white PNG canvas. go-chart refuses to render a chart
// with zero bars, so the empty-range case is drawn by hand.
func writeBlank(f *os.File) error {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 640))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < 640; y++ {
		for x := 0; x < 1280; x++ {
			img.SetRGBA(x, y, white)
		}
	}
	return png.Encode(f, img)
}
