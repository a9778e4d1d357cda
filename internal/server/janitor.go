package server

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

func writeDeadline() time.Time {
	return time.Now().Add(5 * time.Second)
}

// Janitor periodically removes generated audio files older than TTL from
// the temp directory, so synthesized responses don't accumulate forever.
type Janitor struct {
	Dir      string
	TTL      time.Duration
	Interval time.Duration

	stop chan struct{}
}

func NewJanitor(dir string, ttl time.Duration) *Janitor {
	return &Janitor{
		Dir:      dir,
		TTL:      ttl,
		Interval: ttl / 4,
		stop:     make(chan struct{}),
	}
}

// Run blocks, sweeping every Interval until Stop is called. Meant to be
// started in its own goroutine.
func (j *Janitor) Run() {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *Janitor) Stop() {
	close(j.stop)
}

// Sweep removes expired files. Subdirectories are left alone.
func (j *Janitor) Sweep() {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", j.Dir).Msg("janitor sweep failed")
		return
	}
	cutoff := time.Now().Add(-j.TTL)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(j.Dir, e.Name())); err != nil {
				log.Warn().Err(err).Str("file", e.Name()).Msg("janitor failed to remove file")
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("janitor swept temp audio")
	}
}
