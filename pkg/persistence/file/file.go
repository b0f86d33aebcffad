// Package file provides a file-system backed record store, used for local
// development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
)

// Persistence implements the record store over JSON files, one file per
// record, one directory per collection. Conditional operations are guarded
// by a process-wide mutex, which is enough for a single-process store.
type Persistence struct {
	root string
	mu   sync.Mutex

	workflows   *WorkflowRepository
	executions  *ExecutionRepository
	approvals   *ApprovalRepository
	breakpoints *BreakpointRepository
}

// NewPersistence creates a file-backed store rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflows = &WorkflowRepository{store: p}
	p.executions = &ExecutionRepository{store: p}
	p.approvals = &ApprovalRepository{store: p}
	p.breakpoints = &BreakpointRepository{store: p}

	return p
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return p.approvals
}

func (p *Persistence) BreakpointRepository() persistence.BreakpointRepository {
	return p.breakpoints
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup; nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// validateID rejects IDs that are empty or attempt path traversal.
func validateID(id string) error {
	if id == "" {
		return errors.New("record ID cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("record ID contains invalid characters")
	}

	return nil
}

func (p *Persistence) write(collection, id string, record any) error {
	if err := validateID(id); err != nil {
		return err
	}

	dir := filepath.Join(p.root, collection)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	return nil
}

func (p *Persistence) read(collection, id string, record any, notFound error) error {
	if err := validateID(id); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(p.root, collection, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", collection, id, err)
	}

	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", collection, id, err)
	}

	return nil
}

func (p *Persistence) remove(collection, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	err := os.Remove(filepath.Join(p.root, collection, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}

	return true, nil
}

func (p *Persistence) list(collection string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
