package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cadforge/meshgen/internal/document"
	"github.com/cadforge/meshgen/internal/document/fcstd"

	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	modelExtension = ".FCStd"
	sidecarSuffix  = ".params.yaml"

	scanWorkers = 4
)

// Entry is one model in the catalog: a name, the read-only source document
// behind it, and any constraint metadata declared in its sidecar file.
type Entry struct {
	Name        string
	Path        string
	Constraints map[string]document.Constraint
}

// Catalog is the process-wide model set. It is populated once at startup and
// immutable afterwards, so any number of request goroutines may read it
// without locking.
type Catalog struct {
	entries map[string]Entry
}

type sidecar struct {
	Parameters map[string]document.Constraint `yaml:"parameters"`
}

// Scan builds the catalog from every .FCStd file in modelsDir, keyed by file
// stem. Each candidate's parameter schema is read once up front, on a worker
// pool; documents whose schema cannot be read are skipped, not fatal.
func Scan(modelsDir string, logger *zap.Logger) (*Catalog, error) {
	dirEntries, err := os.ReadDir(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list models directory %s: %w", modelsDir, err)
	}

	var (
		mu      sync.Mutex
		entries = map[string]Entry{}
	)

	pool := workerpool.New(scanWorkers)
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), modelExtension) {
			continue
		}

		name := strings.TrimSuffix(dirEntry.Name(), modelExtension)
		path := filepath.Join(modelsDir, dirEntry.Name())

		pool.Submit(func() {
			schema, err := fcstd.ReadSchema(path)
			if err != nil {
				logger.Warn("skipping unreadable model",
					zap.String("model", name), zap.Error(err))
				return
			}

			constraints, err := loadSidecar(path)
			if err != nil {
				logger.Warn("skipping model with malformed sidecar",
					zap.String("model", name), zap.Error(err))
				return
			}

			logger.Info("found model",
				zap.String("model", name),
				zap.String("path", path),
				zap.Int("parameters", len(schema)))

			mu.Lock()
			entries[name] = Entry{Name: name, Path: path, Constraints: constraints}
			mu.Unlock()
		})
	}
	pool.StopWait()

	logger.Info("catalog initialized", zap.Int("models", len(entries)))
	return &Catalog{entries: entries}, nil
}

// loadSidecar reads the optional <model>.params.yaml next to the source
// document. A missing sidecar means no declared bounds.
func loadSidecar(modelPath string) (map[string]document.Constraint, error) {
	path := strings.TrimSuffix(modelPath, modelExtension) + sidecarSuffix

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sc sidecar
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return sc.Parameters, nil
}

func (c *Catalog) Get(name string) (Entry, bool) {
	entry, ok := c.entries[name]
	return entry, ok
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Names returns the model names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
