package annotation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func score(v float64) *float64 { return &v }

func TestBuildIndex(t *testing.T) {
	records := []Record{
		{ImageID: 1, Box: BoundingBox{X1: 0, X2: 5}, Label: 10, Score: score(0.9)},
		{ImageID: 1, Box: BoundingBox{X1: 6, X2: 8}, Label: 11, Score: score(0.5)},
		{ImageID: 2, Box: BoundingBox{X1: 0, X2: 5}, Label: 12, Score: score(0.2)},
		{ImageID: 3, Box: BoundingBox{X1: 0, X2: 5}, Label: 13, Score: score(0.7)},
	}

	tests := []struct {
		name      string
		threshold *float64
		want      map[ImageID]int
	}{
		{
			name:      "no threshold keeps everything",
			threshold: nil,
			want:      map[ImageID]int{1: 2, 2: 1, 3: 1},
		},
		{
			name:      "threshold drops low scores and empty images",
			threshold: score(0.7),
			want:      map[ImageID]int{1: 1, 3: 1},
		},
		{
			name:      "threshold above every score",
			threshold: score(1.0),
			want:      map[ImageID]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := BuildIndex(records, tt.threshold)
			if len(idx) != len(tt.want) {
				t.Fatalf("got %d images, want %d: %v", len(idx), len(tt.want), idx)
			}
			for id, n := range tt.want {
				if len(idx[id]) != n {
					t.Errorf("image %d: got %d annotations, want %d", id, len(idx[id]), n)
				}
			}
		})
	}
}

func TestBuildIndex_ScoreEqualToThresholdKept(t *testing.T) {
	records := []Record{{ImageID: 4, Label: 1, Score: score(0.7)}}
	idx := BuildIndex(records, score(0.7))
	if len(idx[4]) != 1 {
		t.Errorf("record at threshold was dropped")
	}
}

func TestBuildIndex_MissingScoreWithThreshold(t *testing.T) {
	records := []Record{{ImageID: 4, Label: 1}}
	idx := BuildIndex(records, score(0.1))
	if len(idx) != 0 {
		t.Errorf("unscored record passed a threshold: %v", idx)
	}
}

func TestIndex_Images(t *testing.T) {
	idx := Index{3: nil, 1: nil, 2: nil}
	got := idx.Images()
	want := []ImageID{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Images() = %v, want %v", got, want)
		}
	}
}

func TestValidateThreshold(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		if err := ValidateThreshold(v); err != nil {
			t.Errorf("ValidateThreshold(%v) = %v", v, err)
		}
	}
	for _, v := range []float64{-0.1, 1.5} {
		if err := ValidateThreshold(v); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("ValidateThreshold(%v) = %v, want ErrInvalidThreshold", v, err)
		}
	}
}

func TestBoxFormat_Box(t *testing.T) {
	tests := []struct {
		name    string
		format  BoxFormat
		raw     []float64
		want    BoundingBox
		wantErr bool
	}{
		{
			name:   "xywh",
			format: XYWH,
			raw:    []float64{10, 20, 5, 7},
			want:   BoundingBox{X1: 10, Y1: 20, X2: 15, Y2: 27},
		},
		{
			name:   "xyxy",
			format: XYXY,
			raw:    []float64{10, 20, 15, 27},
			want:   BoundingBox{X1: 10, Y1: 20, X2: 15, Y2: 27},
		},
		{
			name:   "inverted box tolerated",
			format: XYXY,
			raw:    []float64{15, 20, 10, 27},
			want:   BoundingBox{X1: 15, Y1: 20, X2: 10, Y2: 27},
		},
		{
			name:    "short bbox",
			format:  XYWH,
			raw:     []float64{1, 2, 3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.format.Box(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Box() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Box() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseBoxFormat(t *testing.T) {
	if f, err := ParseBoxFormat("XYXY"); err != nil || f != XYXY {
		t.Errorf("ParseBoxFormat(XYXY) = %v, %v", f, err)
	}
	if f, err := ParseBoxFormat("coco"); err != nil || f != XYWH {
		t.Errorf("ParseBoxFormat(coco) = %v, %v", f, err)
	}
	if _, err := ParseBoxFormat("cxcywh"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDecode_Array(t *testing.T) {
	data := `[
		{"image_id": 1, "bbox": [0, 0, 5, 10], "category_id": 3, "score": 0.9},
		{"image_id": 1, "bbox": [6, 0, 2, 10], "category_id": 4, "score": 0.8},
		{"image_id": 2, "bbox": [0, 0, 5], "category_id": 3, "score": 0.9},
		{"image_id": 3, "bbox": [0, 0, 5, 10], "category_id": "sharp", "score": 0.9},
		{"bbox": [0, 0, 5, 10], "category_id": 3}
	]`

	records, excluded, err := Decode([]byte(data), XYWH)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Box.X2 != 5 || records[1].Box.X1 != 6 || records[1].Box.X2 != 8 {
		t.Errorf("unexpected boxes: %+v", records)
	}
	if records[0].Score == nil || *records[0].Score != 0.9 {
		t.Errorf("score not decoded: %+v", records[0])
	}

	if len(excluded) != 3 {
		t.Fatalf("got %d exclusions, want 3: %v", len(excluded), excluded)
	}
	bad := excluded.Images()
	if _, ok := bad[2]; !ok {
		t.Error("image 2 should be excluded for a short bbox")
	}
	if _, ok := bad[3]; !ok {
		t.Error("image 3 should be excluded for a non-numeric label")
	}
	if excluded[2].Known {
		t.Error("record without image_id should have an unknown image")
	}

	err = excluded.Err()
	if !errors.Is(err, ErrMalformedAnnotation) {
		t.Fatalf("Err() = %v, want ErrMalformedAnnotation", err)
	}
	if !strings.Contains(err.Error(), "image 2") || !strings.Contains(err.Error(), "image 3") {
		t.Errorf("aggregate error does not name images: %v", err)
	}
}

func TestDecode_Dataset(t *testing.T) {
	data := `{
		"images": [{"id": 7}],
		"categories": [{"id": 1, "name": "notehead"}],
		"annotations": [
			{"id": 1, "image_id": 7, "bbox": [1, 2, 3, 4], "category_id": 1}
		]
	}`

	records, excluded, err := Decode([]byte(data), XYWH)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(excluded) != 0 {
		t.Errorf("unexpected exclusions: %v", excluded)
	}
	if len(records) != 1 || records[0].ImageID != 7 || records[0].Score != nil {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, data := range []string{"", "nope", `{"images": []}`, `[1, 2`} {
		if _, _, err := Decode([]byte(data), XYWH); err == nil {
			t.Errorf("Decode(%q) expected error", data)
		}
	}
}

func TestFilter(t *testing.T) {
	records := []Record{{ImageID: 1}, {ImageID: 2}, {ImageID: 1}, {ImageID: 3}}
	ex := Exclusions{{ImageID: 1, Known: true, Reason: "bad"}}

	got := Filter(records, ex)
	if len(got) != 2 {
		t.Fatalf("Filter() kept %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.ImageID == 1 {
			t.Errorf("excluded image 1 survived")
		}
	}
}

func TestRequireScores(t *testing.T) {
	records := []Record{{ImageID: 1, Score: score(0.5)}, {ImageID: 2}}
	ex := RequireScores(records)
	if len(ex) != 1 || ex[0].ImageID != 2 {
		t.Errorf("RequireScores() = %v", ex)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbox.json")
	content := `[{"image_id": 1, "bbox": [0, 0, 1, 1], "category_id": 2, "score": 0.99}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, _, err := Load(path, XYWH)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}

	if _, _, err := Load(filepath.Join(dir, "missing.json"), XYWH); err == nil {
		t.Error("expected error for missing file")
	}
}
