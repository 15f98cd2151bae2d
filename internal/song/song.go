// SPDX-License-Identifier: MIT
//
// Package song reads song files and renders them to audio.
//
// A song file is YAML:
//
//	title: Smoke
//	bpm: 112
//	speed: 1.0          # optional playback rate
//	backing: smoke.wav  # optional, relative to the song file
//	notes:
//	  - {tab: D3, fret: 0, beat: 4}
//	  - {tab: D3, fret: 3, beat: 5}
package song

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fretcheck/internal/score"

	"gopkg.in/yaml.v3"
)

// Extension is the conventional file extension of song files.
const Extension = ".song.yaml"

type noteEntry struct {
	Tab  string  `yaml:"tab"`
	Fret int     `yaml:"fret"`
	Beat float64 `yaml:"beat"`
}

type songFile struct {
	Title   string      `yaml:"title"`
	BPM     float64     `yaml:"bpm"`
	Speed   float64     `yaml:"speed"`
	Backing string      `yaml:"backing"`
	Notes   []noteEntry `yaml:"notes"`
}

// Parse decodes and validates a song. Unknown keys are rejected.
func Parse(data []byte) (*score.Song, error) {
	var f songFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse song: %w", err)
	}

	s := &score.Song{
		Title:   f.Title,
		BPM:     f.BPM,
		Speed:   f.Speed,
		Backing: f.Backing,
		Notes:   make([]score.Note, 0, len(f.Notes)),
	}
	var errs []error
	for i, n := range f.Notes {
		tab, err := score.ParseTab(n.Tab)
		if err != nil {
			errs = append(errs, fmt.Errorf("note %d: %w", i, err))
			continue
		}
		s.Notes = append(s.Notes, score.Note{Tab: tab, Fret: n.Fret, Beat: n.Beat})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid song: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid song: %w", err)
	}
	return s, nil
}

// Load reads a song file. The title defaults to the file name and a
// relative backing track is resolved against the song's directory.
func Load(path string) (*score.Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read song file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Title == "" {
		s.Title = titleFromPath(path)
	}
	if s.Backing != "" && !filepath.IsAbs(s.Backing) {
		s.Backing = filepath.Join(filepath.Dir(path), s.Backing)
	}
	return s, nil
}

// Marshal encodes s in the song file format.
func Marshal(s *score.Song) ([]byte, error) {
	f := songFile{
		Title:   s.Title,
		BPM:     s.BPM,
		Speed:   s.Speed,
		Backing: s.Backing,
		Notes:   make([]noteEntry, len(s.Notes)),
	}
	for i, n := range s.Notes {
		f.Notes[i] = noteEntry{Tab: n.Tab.String(), Fret: n.Fret, Beat: n.Beat}
	}
	return yaml.Marshal(&f)
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, Extension) {
		return strings.TrimSuffix(base, Extension)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
