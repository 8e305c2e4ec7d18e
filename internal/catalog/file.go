package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"quizroom/internal/apperr"
	"quizroom/internal/logger"
	"quizroom/internal/quiz"
)

var extensions = []string{".yaml", ".yml", ".json"}

// FileCatalog serves quizzes from a directory; the id is the file name
// without its extension. Files are read on every lookup so edits show up
// without a restart.
type FileCatalog struct {
	Dir string
}

func NewFileCatalog(dir string) *FileCatalog {
	return &FileCatalog{Dir: dir}
}

func (c *FileCatalog) Get(_ context.Context, id string) (quiz.Definition, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return quiz.Definition{}, notFound(id)
	}
	for _, ext := range extensions {
		data, err := os.ReadFile(filepath.Join(c.Dir, id+ext))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return quiz.Definition{}, fmt.Errorf("reading quiz %s: %w", id, err)
		}
		return Decode(data)
	}
	return quiz.Definition{}, notFound(id)
}

func (c *FileCatalog) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading quiz dir: %w", err)
	}
	var list []Summary
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || !isQuizFile(ext) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		def, err := c.Get(ctx, id)
		if err != nil {
			logger.Log.Warnf("[Catalog] skipping %s: %v", e.Name(), err)
			continue
		}
		list = append(list, Summary{ID: id, Title: def.Title, Questions: def.Len()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func isQuizFile(ext string) bool {
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Decode accepts YAML or JSON quiz content in any of the shapes quiz.Parse
// understands.
func Decode(data []byte) (quiz.Definition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return quiz.Definition{}, fmt.Errorf("decoding quiz yaml: %w: %v", apperr.ErrConfiguration, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return quiz.Definition{}, fmt.Errorf("converting quiz yaml: %w: %v", apperr.ErrConfiguration, err)
	}
	return quiz.Parse(js)
}

func notFound(id string) error {
	return fmt.Errorf("quiz %q: %w", id, apperr.ErrNotFound)
}
