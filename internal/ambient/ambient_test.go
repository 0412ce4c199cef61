/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ambient

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/signals"
)

func TestCuesFor(t *testing.T) {
	tests := []struct {
		name    string
		pois    []signals.POI
		terrain signals.Terrain
		want    []Cue
	}{
		{
			name: "first category only",
			pois: []signals.POI{
				{Name: "Parc des Princes", Categories: []string{"stadium", "park"}},
				{Name: "Louvre", Categories: []string{"museum"}},
			},
			terrain: signals.TerrainNone,
			want:    []Cue{CueStadium, CueMuseum},
		},
		{
			name: "substring match and duplicates",
			pois: []signals.POI{
				{Name: "A", Categories: []string{"amusement_park"}},
				{Name: "B", Categories: []string{"park"}},
				{Name: "C", Categories: []string{"primary_school"}},
			},
			terrain: signals.TerrainForest,
			want:    []Cue{CuePark, CueSchool, CueForest},
		},
		{
			name:    "terrain only",
			terrain: signals.TerrainWater,
			want:    []Cue{CueWater},
		},
		{
			name:    "nothing",
			pois:    []signals.POI{{Name: "Shop", Categories: []string{"store"}}, {Name: "Empty"}},
			terrain: signals.TerrainNone,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CuesFor(tt.pois, tt.terrain)
			if len(got) != len(tt.want) {
				t.Fatalf("CuesFor() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("CuesFor() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPrimary(t *testing.T) {
	tests := []struct {
		cues []Cue
		want Cue
		ok   bool
	}{
		{[]Cue{CueWater, CuePark, CueChurch}, CueChurch, true},
		{[]Cue{CueForest, CueWater}, CueForest, true},
		{[]Cue{CueSchool, CueStadium}, CueStadium, true},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := Primary(tt.cues)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Primary(%v) = %v, %v; want %v, %v", tt.cues, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFileMapping(t *testing.T) {
	for cue, want := range map[Cue]string{CueStadium: "psg.mp3", CuePark: "forest.mp3", CueWater: "water.mp3"} {
		if got, ok := File(cue); !ok || got != want {
			t.Errorf("File(%s) = %q, %v", cue, got, ok)
		}
	}
	if _, ok := File("volcano"); ok {
		t.Error("unknown cue should have no file")
	}
}

func TestDirBank(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "forest.mp3"), []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	bank, err := NewDirBank(dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	uri, err := bank.Locate(ctx, CuePark)
	if err != nil {
		t.Fatalf("Locate(park) error = %v", err)
	}
	if !strings.HasPrefix(uri, "file://") || !strings.HasSuffix(uri, "/forest.mp3") {
		t.Errorf("Locate(park) = %q", uri)
	}

	if _, err := bank.Locate(ctx, CueMuseum); err == nil {
		t.Error("Locate(museum) should fail when the file is missing")
	}
	if err := bank.CheckAccess(ctx); err != nil {
		t.Errorf("CheckAccess() error = %v", err)
	}
}

func TestS3BankPresigns(t *testing.T) {
	bank, err := NewS3Bank(context.Background(), S3Config{
		Bucket:          "sounds",
		Prefix:          "ambient",
		Region:          "eu-west-3",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewS3Bank() error = %v", err)
	}

	uri, err := bank.Locate(context.Background(), CueStadium)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if !strings.HasPrefix(uri, "http://127.0.0.1:9000/sounds/ambient/psg.mp3?") {
		t.Errorf("Locate() = %q", uri)
	}
	if !strings.Contains(uri, "X-Amz-Signature=") || !strings.Contains(uri, "X-Amz-Expires=900") {
		t.Errorf("URL is not presigned: %q", uri)
	}
}

func TestS3BankRequiresBucket(t *testing.T) {
	if _, err := NewS3Bank(context.Background(), S3Config{}, zerolog.Nop()); err == nil {
		t.Error("NewS3Bank() should require a bucket")
	}
}
