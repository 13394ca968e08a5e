package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// metaDir holds object attributes next to the data; it is hidden from List.
const metaDir = ".meta"

// FS is a Store on the local filesystem. Object names map to paths below root.
type FS struct {
	root string
}

// NewFS creates root if needed and returns a store over it.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", abs, err)
	}
	return &FS{root: abs}, nil
}

func (s *FS) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FS) Put(ctx context.Context, name string, data []byte, obj Object) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", name, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := s.writeMeta(name, obj); err != nil {
		return "", err
	}
	return s.URI(name), nil
}

func (s *FS) Get(ctx context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Attributes returns the attributes stored with name.
func (s *FS) Attributes(name string) (Object, error) {
	var obj Object
	p, err := s.path(filepath.Join(metaDir, name+".json"))
	if err != nil {
		return obj, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return obj, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return obj, fmt.Errorf("read attributes of %s: %w", name, err)
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return obj, fmt.Errorf("decode attributes of %s: %w", name, err)
	}
	return obj, nil
}

func (s *FS) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FS) Move(ctx context.Context, src, dst string) error {
	from, err := s.path(src)
	if err != nil {
		return err
	}
	to, err := s.path(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dst, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}

	if obj, err := s.Attributes(src); err == nil {
		if err := s.writeMeta(dst, obj); err != nil {
			return err
		}
		if p, err := s.path(filepath.Join(metaDir, src+".json")); err == nil {
			os.Remove(p)
		}
	}
	return nil
}

func (s *FS) URI(name string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(name)))
}

func (s *FS) Name(uri string) (string, bool) {
	prefix := "file://" + filepath.ToSlash(s.root) + "/"
	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}
	return strings.TrimPrefix(uri, prefix), true
}

func (s *FS) Close() error {
	return nil
}

func (s *FS) writeMeta(name string, obj Object) error {
	if obj.ContentType == "" && len(obj.Metadata) == 0 {
		return nil
	}
	p, err := s.path(filepath.Join(metaDir, name+".json"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create meta dir for %s: %w", name, err)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode attributes of %s: %w", name, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write attributes of %s: %w", name, err)
	}
	return nil
}
