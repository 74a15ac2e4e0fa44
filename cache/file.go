package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileCache persists the key in a small JSON document so that it survives
// restarts, the way browser local storage survives page loads. Other keys
// in the document are preserved.
// errCorrupt marks a cache document that is not valid JSON. Writers
// replace it with a fresh document.
var errCorrupt = errors.New("session cache is corrupt")

type FileCache struct {
	path string
	key  string
	mu   sync.Mutex
}

func NewFileCache(path, key string) *FileCache {
	return &FileCache{path: path, key: key}
}

func (c *FileCache) Get(context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if err != nil {
		return "", false, err
	}
	chatID := doc[c.key]
	return chatID, chatID != "", nil
}

func (c *FileCache) Set(_ context.Context, chatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.loadForWrite()
	if err != nil {
		return err
	}
	doc[c.key] = chatID
	return c.store(doc)
}

func (c *FileCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if errors.Is(err, errCorrupt) {
		return c.store(map[string]string{})
	}
	if err != nil {
		return err
	}
	if _, ok := doc[c.key]; !ok {
		return nil
	}
	delete(doc, c.key)
	return c.store(doc)
}

func (c *FileCache) load() (map[string]string, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorrupt, c.path, err)
	}
	return doc, nil
}

func (c *FileCache) loadForWrite() (map[string]string, error) {
	doc, err := c.load()
	if errors.Is(err, errCorrupt) {
		return map[string]string{}, nil
	}
	return doc, err
}

func (c *FileCache) store(doc map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create session cache dir: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}
