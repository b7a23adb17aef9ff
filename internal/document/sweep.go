package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
)

// MediaExtension is the extension picked up from the media folder.
const MediaExtension = ".pdf"

var (
	// ErrInvalidName is returned for media names that are not a plain PDF
	// file name.
	ErrInvalidName = errors.New("invalid media name")

	// ErrMediaNotFound is returned when a media file does not exist.
	ErrMediaNotFound = errors.New("media file not found")
)

// SweepFailure is a media file that could not be loaded.
type SweepFailure struct {
	Name string
	Err  error
}

// SweepReport is the outcome of a media sweep.
type SweepReport struct {
	Added   []string
	Failed  []SweepFailure
	Skipped []string
}

// Sweep loads every PDF of dir, in name order, that is neither skip-listed
// nor already loaded from media. A failing file is reported and the sweep
// moves on. A missing dir is not an error.
func (s *Store) Sweep(ctx context.Context, dir string) (SweepReport, error) {
	var report SweepReport

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("read media dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), MediaExtension) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if s.IsSkipped(name) {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if s.Has(name, model.SourceMedia) {
			continue
		}
		if err := s.LoadMedia(ctx, dir, name); err != nil {
			s.logger.Warn("media document not loaded", zap.String("name", name), zap.Error(err))
			report.Failed = append(report.Failed, SweepFailure{Name: name, Err: err})
			continue
		}
		report.Added = append(report.Added, name)
	}

	return report, nil
}

// LoadMedia reads, extracts and adds one media file. Adding clears a
// skip-list entry for name.
func (s *Store) LoadMedia(ctx context.Context, dir, name string) error {
	if filepath.Base(name) != name || name == ".." || !strings.EqualFold(filepath.Ext(name), MediaExtension) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	content, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMediaNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	text, err := s.extractMedia(content)
	if err != nil {
		return err
	}
	_, err = s.Add(ctx, name, text, model.SourceMedia, content)
	return err
}
