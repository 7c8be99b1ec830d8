package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileArea is a durable area backed by a JSON file shared by all profiles:
// {"<profile>": {"access_token": "...", "refresh_token": "..."}}.
type FileArea struct {
	path    string
	profile string
	mu      sync.Mutex
}

func NewFileArea(path string, profile string) (*FileArea, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("token file path is required")
	}
	if strings.TrimSpace(profile) == "" {
		return nil, errors.New("profile is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}

	return &FileArea{path: path, profile: profile}, nil
}

func (a *FileArea) Name() string { return "file" }

func (a *FileArea) Get(_ context.Context, key string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.loadLocked()
	if err != nil {
		return "", false, err
	}

	v, ok := all[a.profile][key]
	return v, ok && v != "", nil
}

func (a *FileArea) Set(_ context.Context, key string, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.loadLocked()
	if err != nil {
		return err
	}

	entry := all[a.profile]
	if entry == nil {
		entry = map[string]string{}
		all[a.profile] = entry
	}

	if value == "" {
		delete(entry, key)
	} else {
		entry[key] = value
	}

	return a.saveLocked(all)
}

func (a *FileArea) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.loadLocked()
	if err != nil {
		return err
	}

	entry, ok := all[a.profile]
	if !ok {
		return nil
	}
	if _, ok := entry[key]; !ok {
		return nil
	}

	delete(entry, key)
	if len(entry) == 0 {
		delete(all, a.profile)
	}

	return a.saveLocked(all)
}

func (a *FileArea) loadLocked() (map[string]map[string]string, error) {
	data, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	all := map[string]map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return all, nil
	}

	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}

	return all, nil
}

// saveLocked replaces the file atomically so a crash never leaves half a
// credential set on disk.
func (a *FileArea) saveLocked(all map[string]map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp token file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp token file: %w", err)
	}

	if err := os.Rename(tmpName, a.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace token file: %w", err)
	}

	return nil
}
