package annotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// BoxFormat describes how a record's bbox array is laid out.
type BoxFormat int

const (
	// XYWH is the COCO convention: [x, y, width, height].
	XYWH BoxFormat = iota
	// XYXY is [x1, y1, x2, y2].
	XYXY
)

func (f BoxFormat) String() string {
	switch f {
	case XYWH:
		return "xywh"
	case XYXY:
		return "xyxy"
	default:
		return "unknown"
	}
}

// ParseBoxFormat parses "xywh" or "xyxy".
func ParseBoxFormat(s string) (BoxFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xywh", "coco":
		return XYWH, nil
	case "xyxy":
		return XYXY, nil
	default:
		return 0, fmt.Errorf("unknown box format %q", s)
	}
}

// Box converts a raw bbox array into a BoundingBox.
func (f BoxFormat) Box(raw []float64) (BoundingBox, error) {
	if len(raw) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox has %d coordinates, want 4", len(raw))
	}
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BoundingBox{}, fmt.Errorf("bbox coordinate %v is not finite", v)
		}
	}
	switch f {
	case XYWH:
		return BoundingBox{X1: raw[0], Y1: raw[1], X2: raw[0] + raw[2], Y2: raw[1] + raw[3]}, nil
	case XYXY:
		return BoundingBox{X1: raw[0], Y1: raw[1], X2: raw[2], Y2: raw[3]}, nil
	default:
		return BoundingBox{}, fmt.Errorf("unknown box format %d", f)
	}
}

// dataset is the subset of a COCO dataset document we read.
type dataset struct {
	Annotations []json.RawMessage `json:"annotations"`
}

// Decode parses either a JSON array of records (detector output) or a COCO
// dataset object carrying an "annotations" array (ground truth).
// Malformed records are skipped and reported as exclusions; only a
// document that cannot be parsed at all returns an error.
func Decode(data []byte, format BoxFormat) ([]Record, Exclusions, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, errors.New("empty document")
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, fmt.Errorf("parsing record array: %w", err)
		}
	case '{':
		var ds dataset
		if err := json.Unmarshal(trimmed, &ds); err != nil {
			return nil, nil, fmt.Errorf("parsing dataset: %w", err)
		}
		if ds.Annotations == nil {
			return nil, nil, errors.New("dataset has no annotations array")
		}
		items = ds.Annotations
	default:
		return nil, nil, fmt.Errorf("unexpected document start %q", trimmed[0])
	}

	records := make([]Record, 0, len(items))
	var excluded Exclusions
	for i, item := range items {
		rec, ex, ok := decodeRecord(i, item, format)
		if !ok {
			excluded = append(excluded, ex)
			continue
		}
		records = append(records, rec)
	}
	return records, excluded, nil
}

func decodeRecord(pos int, item json.RawMessage, format BoxFormat) (Record, Exclusion, bool) {
	ex := Exclusion{Record: pos}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		ex.Reason = "record is not an object"
		return Record{}, ex, false
	}

	var rec Record
	if err := decodeField(fields, "image_id", &rec.ImageID); err != nil {
		ex.Reason = err.Error()
		return Record{}, ex, false
	}
	ex.ImageID, ex.Known = rec.ImageID, true

	var bbox []float64
	if err := decodeField(fields, "bbox", &bbox); err != nil {
		ex.Reason = err.Error()
		return Record{}, ex, false
	}
	box, err := format.Box(bbox)
	if err != nil {
		ex.Reason = err.Error()
		return Record{}, ex, false
	}
	rec.Box = box

	if err := decodeField(fields, "category_id", &rec.Label); err != nil {
		ex.Reason = err.Error()
		return Record{}, ex, false
	}

	if raw, ok := fields["score"]; ok && string(raw) != "null" {
		var score float64
		if err := json.Unmarshal(raw, &score); err != nil {
			ex.Reason = "score is not a number"
			return Record{}, ex, false
		}
		rec.Score = &score
	}

	return rec, ex, true
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("missing %s", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid %s: %s", name, raw)
	}
	return nil
}

// Load reads and decodes an annotation file.
func Load(path string, format BoxFormat) ([]Record, Exclusions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading annotations: %w", err)
	}
	records, excluded, err := Decode(data, format)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, excluded, nil
}
