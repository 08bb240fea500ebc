// Package csvdir reads order uploads dropped as CSV files into a directory.
package csvdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fairroute/internal/integrations"
)

const (
	doneSuffix   = ".done"
	failedSuffix = ".failed"
)

// Adapter serves the *.csv files of Dir oldest first. Settled files are
// renamed so they are never fetched twice.
type Adapter struct {
	Dir string
}

var _ integrations.OrderSource = (*Adapter)(nil)

func New(dir string) *Adapter { return &Adapter{Dir: dir} }

func (a *Adapter) Name() string { return "csv-dir" }

func (a *Adapter) FetchBatch(ctx context.Context) (integrations.Batch, bool, error) {
	if err := ctx.Err(); err != nil {
		return integrations.Batch{}, false, err
	}
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return integrations.Batch{}, false, fmt.Errorf("csvdir: list %s: %w", a.Dir, err)
	}
	type candidate struct {
		name string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		files = append(files, candidate{name: e.Name(), mod: info.ModTime()})
	}
	if len(files) == 0 {
		return integrations.Batch{}, false, nil
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].mod.Equal(files[j].mod) {
			return files[i].mod.Before(files[j].mod)
		}
		return files[i].name < files[j].name
	})
	f, err := os.Open(filepath.Join(a.Dir, files[0].name))
	if err != nil {
		return integrations.Batch{}, false, fmt.Errorf("csvdir: open: %w", err)
	}
	return integrations.Batch{Ref: files[0].name, Body: f}, true, nil
}

func (a *Adapter) Ack(ctx context.Context, ref string) error {
	return a.settle(ref, doneSuffix)
}

// Reject parks the file and writes the reason next to it.
func (a *Adapter) Reject(ctx context.Context, ref string, reason string) error {
	if err := a.settle(ref, failedSuffix); err != nil {
		return err
	}
	return os.WriteFile(a.path(ref)+failedSuffix+".txt", []byte(reason+"\n"), 0o644)
}

func (a *Adapter) settle(ref, suffix string) error {
	if ref == "" || filepath.Base(ref) != ref {
		return fmt.Errorf("csvdir: bad ref %q", ref)
	}
	if err := os.Rename(a.path(ref), a.path(ref)+suffix); err != nil {
		return fmt.Errorf("csvdir: settle %s: %w", ref, err)
	}
	return nil
}

func (a *Adapter) path(ref string) string { return filepath.Join(a.Dir, ref) }
