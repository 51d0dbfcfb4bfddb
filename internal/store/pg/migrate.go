package pg

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

// Direction de una migración.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate aplica los archivos *_up.sql (orden ascendente) o *_down.sql
// (orden descendente) de fsys. steps <= 0 aplica todos.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS, dir Direction, steps int) (int, error) {
	suffix := "_" + string(dir) + ".sql"
	files, err := listSQL(fsys, suffix)
	if err != nil {
		return 0, fmt.Errorf("migrate: list: %w", err)
	}
	sort.Strings(files)
	if dir == Down {
		reverseInPlace(files)
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	log := logger.From(ctx).With(logger.Component("store.migrate"))
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return 0, fmt.Errorf("migrate: read %s: %w", f, err)
		}
		start := time.Now()
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return 0, fmt.Errorf("migrate: exec %s: %w", f, err)
		}
		log.Info("migration applied", logger.String("file", path.Base(f)), logger.Duration(time.Since(start)))
	}
	return len(files), nil
}

func listSQL(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}
