package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const artifactPrefix = "tts-"

// Scratch hands out unique artifact paths inside one directory.
type Scratch struct {
	Dir string
}

func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "voicebot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	return &Scratch{Dir: dir}, nil
}

// Path returns a fresh file name with the given extension (".mp3", ".wav").
func (s *Scratch) Path(ext string) string {
	return filepath.Join(s.Dir, artifactPrefix+uuid.NewString()+ext)
}

// Write stores b under a fresh path.
func (s *Scratch) Write(ext string, b []byte) (string, error) {
	p := s.Path(ext)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return "", err
	}
	ttsArtifactBytes.Observe(float64(len(b)))
	return p, nil
}

// Remove deletes an artifact; a missing file is not an error.
func (s *Scratch) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Purge removes every artifact left in the directory and returns how many.
func (s *Scratch) Purge() (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), artifactPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, e.Name())); err == nil {
			n++
		}
	}
	return n, nil
}
