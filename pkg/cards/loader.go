package cards

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const loaderLogPrefix = "cards:loader"

// ParseCard decodes one card document. YAML is a superset of JSON, but JSON documents
// go through encoding/json so number types match what SaveCard writes.
func ParseCard(data []byte, path string) (*AgentCard, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s - card document is empty", loaderLogPrefix)
	}
	var card AgentCard
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &card); err != nil {
			return nil, fmt.Errorf("%s - decode json card: %w", loaderLogPrefix, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &card); err != nil {
			return nil, fmt.Errorf("%s - decode yaml card: %w", loaderLogPrefix, err)
		}
	}
	if err := Validate(&card); err != nil {
		return nil, err
	}
	return &card, nil
}

// LoadFile reads and parses a card document from disk.
func LoadFile(path string) (*AgentCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - read %s: %w", loaderLogPrefix, path, err)
	}
	card, err := ParseCard(data, path)
	if err != nil {
		return nil, fmt.Errorf("%s - %s: %w", loaderLogPrefix, path, err)
	}
	return card, nil
}

// LoadDir parses every *.json, *.yaml and *.yml document in dir, sorted by file name.
// A missing or empty dir yields no cards.
func LoadDir(dir string) ([]*AgentCard, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s - read %s: %w", loaderLogPrefix, trimmed, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isCardFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]*AgentCard, 0, len(names))
	for _, name := range names {
		card, err := LoadFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		out = append(out, card)
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d agent cards from %s", loaderLogPrefix, len(out), trimmed))
	return out, nil
}

// LoadDir adds every card document in dir to the registry and returns how many were added.
// Loading stops at the first invalid or conflicting card.
func (r *Registry) LoadDir(dir string) (int, error) {
	loaded, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	for i, c := range loaded {
		if err := r.Add(c); err != nil {
			return i, fmt.Errorf("%s - register %s: %w", loaderLogPrefix, c.AgentID, err)
		}
	}
	return len(loaded), nil
}

// CardFileName returns the document name SaveCard uses for agentID.
func CardFileName(agentID string) string {
	return agentID + "_card.json"
}

// SaveCard writes card as indented JSON to dir/{agent_id}_card.json and returns the path.
func SaveCard(dir string, card *AgentCard) (string, error) {
	if err := Validate(card); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%s - create %s: %w", loaderLogPrefix, dir, err)
	}
	data, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s - encode card %s: %w", loaderLogPrefix, card.AgentID, err)
	}
	path := filepath.Join(dir, CardFileName(card.AgentID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%s - write %s: %w", loaderLogPrefix, path, err)
	}
	slog.Info(fmt.Sprintf("%s - Saved agent card to %s", loaderLogPrefix, path))
	return path, nil
}

// Save persists the registered card for agentID into dir.
func (r *Registry) Save(dir, agentID string) (string, error) {
	card, ok := r.Get(agentID)
	if !ok {
		return "", newCardError(ErrCodeNotFound, "card not found: %s", agentID)
	}
	return SaveCard(dir, card)
}

func isCardFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
