package bench

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// CacheFile stores a checkpoint's average distance so reruns can skip
// evaluation.
const CacheFile = "average_distance.pb"

// CachedScore is the content of a cache file.
type CachedScore struct {
	Score     float64
	Images    int
	Excluded  int
	Threshold float64
	BoxFormat string // empty in caches written without it
}

// WriteCache stores s in dir.
func WriteCache(dir string, s CachedScore) error {
	msg, err := structpb.NewStruct(map[string]any{
		"score":      s.Score,
		"images":     float64(s.Images),
		"excluded":   float64(s.Excluded),
		"threshold":  s.Threshold,
		"box_format": s.BoxFormat,
	})
	if err != nil {
		return fmt.Errorf("building cache message: %w", err)
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	path := filepath.Join(dir, CacheFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadCache loads the cache in dir. ok is false when no cache exists.
func ReadCache(dir string) (s CachedScore, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, CacheFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CachedScore{}, false, nil
		}
		return CachedScore{}, false, fmt.Errorf("reading cache: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return CachedScore{}, false, fmt.Errorf("decoding cache: %w", err)
	}

	fields := msg.GetFields()
	score, found := fields["score"]
	if !found {
		return CachedScore{}, false, errors.New("cache has no score")
	}

	return CachedScore{
		Score:     score.GetNumberValue(),
		Images:    int(fields["images"].GetNumberValue()),
		Excluded:  int(fields["excluded"].GetNumberValue()),
		Threshold: fields["threshold"].GetNumberValue(),
		BoxFormat: fields["box_format"].GetStringValue(),
	}, true, nil
}
