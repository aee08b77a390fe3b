package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/air23zj/pal-sub001/internal/item"
)

// JSONLSource reads pre-normalized items from *.jsonl files in a
// directory, one NormalizedItem per line. It is the drop point for
// connectors that run elsewhere (mail exporters, task syncs) and for
// fixtures in development.
type JSONLSource struct {
	name string
	dir  string
}

// NewJSONLSource creates a connector over a directory of JSONL exports.
func NewJSONLSource(name, dir string) *JSONLSource {
	return &JSONLSource{name: name, dir: dir}
}

// Name implements Source.
func (s *JSONLSource) Name() string { return s.name }

// Fetch implements Source. A malformed line is skipped with a log line;
// an unreadable directory fails the module.
func (s *JSONLSource) Fetch(ctx context.Context) ([]item.NormalizedItem, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading export directory %s: %w", s.dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)

	var items []item.NormalizedItem
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := s.readFile(path)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (s *JSONLSource) readFile(path string) ([]item.NormalizedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var items []item.NormalizedItem
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var it item.NormalizedItem
		if err := json.Unmarshal([]byte(line), &it); err != nil {
			log.Printf("skipping %s:%d: %v", filepath.Base(path), lineNo, err)
			continue
		}
		if it.Module == "" {
			it.Module = s.name
		}
		items = append(items, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return items, nil
}
