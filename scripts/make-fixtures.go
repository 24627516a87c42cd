//go:build ignore

// Generate a synthetic ground-truth file and a noisy detector output for
// trying omr-eval without a trained model.
// Usage: go run ./scripts/make-fixtures.go -out testdata
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
)

type record struct {
	ImageID    int64      `json:"image_id"`
	BBox       [4]float64 `json:"bbox"`
	CategoryID int64      `json:"category_id"`
	Score      *float64   `json:"score,omitempty"`
}

type dataset struct {
	Images      []map[string]int64 `json:"images"`
	Annotations []record           `json:"annotations"`
}

func main() {
	out := flag.String("out", "testdata", "output directory")
	images := flag.Int("images", 50, "number of images")
	labels := flag.Int("labels", 20, "number of categories")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed))

	var gt dataset
	var pred []record
	for img := int64(1); img <= int64(*images); img++ {
		gt.Images = append(gt.Images, map[string]int64{"id": img})

		x := 10.0
		for col := 0; col < 5+rng.IntN(20); col++ {
			// One to three stacked symbols share a column.
			for n := 1 + rng.IntN(3); n > 0; n-- {
				r := record{
					ImageID:    img,
					BBox:       [4]float64{x + rng.Float64()*2, float64(20 * n), 12, 12},
					CategoryID: 1 + rng.Int64N(int64(*labels)),
				}
				gt.Annotations = append(gt.Annotations, r)

				// Drop some detections and mislabel others.
				if rng.Float64() < 0.1 {
					continue
				}
				p := r
				if rng.Float64() < 0.1 {
					p.CategoryID = 1 + rng.Int64N(int64(*labels))
				}
				score := 0.4 + rng.Float64()*0.6
				p.Score = &score
				pred = append(pred, p)
			}
			x += 30
		}
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := writeJSON(filepath.Join(*out, "gt.json"), gt); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := writeJSON(filepath.Join(*out, "bbox.json"), pred); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d images, %d truth and %d predicted annotations to %s\n",
		*images, len(gt.Annotations), len(pred), *out)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
