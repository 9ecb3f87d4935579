package devices

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/KevinKickass/PowerInsight/internal/types"
	"gopkg.in/yaml.v3"
)

var boardExts = []string{".yaml", ".yml"}

// BoardLoader finds, validates and decodes board files.
type BoardLoader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewBoardLoader(searchPaths []string) (*BoardLoader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &BoardLoader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

// Load resolves name against the search paths, trying each board extension.
func (l *BoardLoader) Load(name string) (*types.BoardFile, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*types.BoardFile), nil
	}

	var data []byte
	var foundPath string

	for _, searchPath := range l.searchPaths {
		for _, ext := range boardExts {
			fullPath := filepath.Join(searchPath, name+ext)
			b, err := os.ReadFile(fullPath)
			if err == nil {
				data, foundPath = b, fullPath
				break
			}
		}
		if data != nil {
			break
		}
	}

	if data == nil {
		return nil, fmt.Errorf("board not found: %s (searched in: %v)", name, l.searchPaths)
	}

	board, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", foundPath, err)
	}

	l.cache.Store(name, board)

	return board, nil
}

// LoadFile reads a board file by path.
func (l *BoardLoader) LoadFile(path string) (*types.BoardFile, error) {
	if cached, ok := l.cache.Load(path); ok {
		return cached.(*types.BoardFile), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}
	board, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.cache.Store(path, board)
	return board, nil
}

// Parse validates a YAML board description against the schema and decodes it.
func (l *BoardLoader) Parse(data []byte) (*types.BoardFile, error) {
	if err := l.validator.Validate(data); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var board types.BoardFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&board); err != nil {
		return nil, fmt.Errorf("%w: failed to decode board: %v", types.ErrConfig, err)
	}
	return &board, nil
}

// Discover lists the board files in the search paths, sorted by file name
// within each path.
func (l *BoardLoader) Discover() ([]string, error) {
	var found []string
	for _, searchPath := range l.searchPaths {
		entries, err := os.ReadDir(searchPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scan %s: %w", searchPath, err)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			for _, ext := range boardExts {
				if strings.HasSuffix(e.Name(), ext) {
					names = append(names, filepath.Join(searchPath, e.Name()))
					break
				}
			}
		}
		sort.Strings(names)
		found = append(found, names...)
	}
	return found, nil
}

func (l *BoardLoader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}
