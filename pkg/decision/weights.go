package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

// DefaultWeightsVersion marks candidates fused with the built-in matrix.
const DefaultWeightsVersion = "builtin"

// DefaultWeights returns the built-in weight matrix, keyed by specialist id.
// Specialists without an entry weigh 0.1.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"metrics-analyst":      0.4,
		"log-inspector":        0.3,
		"graph-context":        0.1,
		"embedding-similarity": 0.1,
		"correlator":           0.1,
	}
}

// fallbackWeight applies to specialists absent from the matrix.
const fallbackWeight = 0.1

// LoadWeightsFile reads a YAML weight matrix and returns it together with
// its version, the truncated SHA-256 of the file contents.
func LoadWeightsFile(path string) (map[string]float64, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", faults.Wrap(faults.KindValidationFailed, "decision.LoadWeightsFile",
			"reading weights file", err)
	}
	var weights map[string]float64
	if err := yaml.Unmarshal(raw, &weights); err != nil {
		return nil, "", faults.Wrap(faults.KindValidationFailed, "decision.LoadWeightsFile",
			"parsing weights file", err)
	}
	if len(weights) == 0 {
		return nil, "", faults.New(faults.KindValidationFailed, "decision.LoadWeightsFile",
			"weights file defines no specialists")
	}
	for id, w := range weights {
		if w <= 0 {
			return nil, "", faults.Newf(faults.KindValidationFailed, "decision.LoadWeightsFile",
				"weight for %q must be positive, got %v", id, w)
		}
	}
	sum := sha256.Sum256(raw)
	return weights, hex.EncodeToString(sum[:])[:12], nil
}

// Weights returns a copy of the active weight matrix and its version.
func (e *Engine) Weights() (map[string]float64, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.weights))
	for id, w := range e.weights {
		out[id] = w
	}
	return out, e.weightsVersion
}

// SetWeights replaces the active weight matrix. Replay uses this to pin a
// frozen matrix.
func (e *Engine) SetWeights(weights map[string]float64, version string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = weights
	e.weightsVersion = version
}

// Watch starts watching the configured weights file and hot-reloads the
// matrix on change. A failed reload keeps the previous matrix. No-op when
// no weights file is configured.
func (e *Engine) Watch() error {
	if e.cfg.WeightsFile == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating weights watcher: %w", err)
	}
	// Watch the directory: editors replace the file on save, which would
	// drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(e.cfg.WeightsFile)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching weights directory: %w", err)
	}
	e.watcher = watcher
	go e.watchWeights()
	return nil
}

func (e *Engine) watchWeights() {
	target := filepath.Base(e.cfg.WeightsFile)
	var reload *time.Timer
	for {
		select {
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: editors fire several events per save.
			if reload != nil {
				reload.Stop()
			}
			reload = time.AfterFunc(200*time.Millisecond, e.reloadWeights)
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Warn("Weights watcher error", "error", err)
		}
	}
}

func (e *Engine) reloadWeights() {
	weights, version, err := LoadWeightsFile(e.cfg.WeightsFile)
	if err != nil {
		e.logger.Warn("Weights reload failed, keeping previous matrix",
			"file", e.cfg.WeightsFile, "error", err)
		return
	}
	e.SetWeights(weights, version)
	e.logger.Info("Weights reloaded", "file", e.cfg.WeightsFile, "version", version)
}

// Close stops the weights watcher.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.watcher != nil {
			e.watcher.Close()
		}
	})
}
