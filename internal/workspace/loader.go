// Package workspace loads requests, collections, environments and flows from
// a directory of YAML, JSON or JSONC documents.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/restflow/internal/types"
)

// document is the on-disk shape of one workspace file. Every section is
// optional; a workspace is the union of all its files.
type document struct {
	Requests     []types.Request      `yaml:"requests"`
	Collections  []collectionDocument `yaml:"collections"`
	Environments []types.Environment  `yaml:"environments"`
	Flows        []flowDocument       `yaml:"flows"`
}

// collectionDocument lets requests be declared inside their collection
type collectionDocument struct {
	types.Collection `yaml:",inline"`
	Requests         []types.Request `yaml:"requests"`
}

type flowDocument struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	EnvironmentID string         `yaml:"environmentId"`
	Steps         []stepDocument `yaml:"steps"`
}

// stepDocument distinguishes a missing enabled flag (true) from false
type stepDocument struct {
	Order            int               `yaml:"order"`
	RequestID        string            `yaml:"requestId"`
	Enabled          *bool             `yaml:"enabled"`
	ContinueOnError  bool              `yaml:"continueOnError"`
	Extract          map[string]string `yaml:"extract"`
	SaveToCollection bool              `yaml:"saveToCollection"`
}

// IsWorkspaceFile reports whether path has a supported extension
func IsWorkspaceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".jsonc":
		return true
	}
	return false
}

// Load reads every workspace file under dir, recursively, in lexical order.
// Duplicate ids across files are an error.
func Load(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", dir)
	}

	store := NewStore()
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsWorkspaceFile(path) {
			return nil
		}
		if err := store.loadFile(path); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// LoadFile reads a single workspace file
func LoadFile(path string) (*Store, error) {
	store := NewStore()
	if err := store.loadFile(path); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	doc, err := parseDocument(path, data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := s.add(doc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// parseDocument decodes data. JSON and JSONC are converted to plain JSON
// first; YAML decoding then handles every format.
func parseDocument(path string, data []byte) (*document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workspace file: %w", err)
	}
	return &doc, nil
}

func (s *Store) add(doc *document) error {
	for _, env := range doc.Environments {
		if err := s.AddEnvironment(env); err != nil {
			return err
		}
	}
	for _, col := range doc.Collections {
		if err := s.AddCollection(col.Collection); err != nil {
			return err
		}
		for _, req := range col.Requests {
			if req.CollectionID == "" {
				req.CollectionID = col.ID
			}
			if err := s.AddRequest(req); err != nil {
				return err
			}
		}
	}
	for _, req := range doc.Requests {
		if err := s.AddRequest(req); err != nil {
			return err
		}
	}
	for _, fd := range doc.Flows {
		if err := s.AddFlow(fd.toFlow()); err != nil {
			return err
		}
	}
	return nil
}

func (fd flowDocument) toFlow() types.Flow {
	flow := types.Flow{
		ID:            fd.ID,
		Name:          fd.Name,
		EnvironmentID: fd.EnvironmentID,
		Steps:         make([]types.FlowStep, 0, len(fd.Steps)),
	}
	for _, sd := range fd.Steps {
		enabled := true
		if sd.Enabled != nil {
			enabled = *sd.Enabled
		}
		flow.Steps = append(flow.Steps, types.FlowStep{
			Order:            sd.Order,
			RequestID:        sd.RequestID,
			Enabled:          enabled,
			ContinueOnError:  sd.ContinueOnError,
			Extract:          sd.Extract,
			SaveToCollection: sd.SaveToCollection,
		})
	}
	return flow
}
