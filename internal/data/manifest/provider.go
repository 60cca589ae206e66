package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	coreerrors "modgraph/internal/core/errors"
	"modgraph/internal/engine/graph"
)

const DefaultFileName = "manifest.toml"

var validName = regexp.MustCompile(`^[a-z0-9_]+$`)

// fileManifest is the on-disk layout of a module manifest.
type fileManifest struct {
	Version     string   `toml:"version"`
	Depends     []string `toml:"depends"`
	Installable *bool    `toml:"installable"`
	// AutoInstall is either a bool or a list of dependency names.
	AutoInstall any `toml:"auto_install"`
}

type Options struct {
	// Paths are the addons directories searched in order; the first one
	// containing a module wins.
	Paths     []string
	FileName  string
	Exclude   []string
	CacheSize int
}

// Provider reads module manifests from addons directories.
type Provider struct {
	paths    []string
	fileName string
	exclude  []glob.Glob
	cache    *cache
}

func NewProvider(opts Options) (*Provider, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("at least one addons path is required")
	}
	paths := make([]string, 0, len(opts.Paths))
	for _, p := range opts.Paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paths = append(paths, filepath.Clean(p))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one addons path is required")
	}

	fileName := strings.TrimSpace(opts.FileName)
	if fileName == "" {
		fileName = DefaultFileName
	}

	compiled := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = 512
	}

	return &Provider{
		paths:    paths,
		fileName: fileName,
		exclude:  compiled,
		cache:    newCache(size),
	}, nil
}

// Paths returns the addons directories in search order.
func (p *Provider) Paths() []string {
	return append([]string(nil), p.paths...)
}

func (p *Provider) FileName() string {
	return p.fileName
}

// Manifest returns the manifest for name, or nil when the module is not
// available on any addons path.
func (p *Provider) Manifest(ctx context.Context, name string) (*graph.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.accepts(name) {
		return nil, nil
	}
	if m, ok := p.cache.get(name); ok {
		return copyManifest(m), nil
	}

	path, ok := p.locate(name)
	if !ok {
		p.cache.put(name, nil)
		return nil, nil
	}

	m, err := decode(name, path)
	if err != nil {
		return nil, err
	}
	p.cache.put(name, m)
	return copyManifest(m), nil
}

// Names lists every module with a manifest on the addons paths, sorted.
func (p *Provider) Names(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, root := range p.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "read addons path").
				WithContext(coreerrors.CtxPath, root)
		}
		for _, entry := range entries {
			if !entry.IsDir() || !p.accepts(entry.Name()) {
				continue
			}
			if _, err := os.Stat(filepath.Join(root, entry.Name(), p.fileName)); err == nil {
				seen[entry.Name()] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ModuleForPath maps a file path below an addons directory to the module
// owning it.
func (p *Provider) ModuleForPath(path string) (string, bool) {
	clean := filepath.Clean(path)
	for _, root := range p.paths {
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		name := strings.Split(filepath.ToSlash(rel), "/")[0]
		if p.accepts(name) {
			return name, true
		}
	}
	return "", false
}

// Invalidate drops the cached manifest for name.
func (p *Provider) Invalidate(name string) {
	p.cache.evict(name)
}

// Reset drops every cached manifest.
func (p *Provider) Reset() {
	p.cache.clear()
}

func (p *Provider) accepts(name string) bool {
	if !validName.MatchString(name) {
		return false
	}
	for _, g := range p.exclude {
		if g.Match(name) {
			return false
		}
	}
	return true
}

func (p *Provider) locate(name string) (string, bool) {
	for _, root := range p.paths {
		path := filepath.Join(root, name, p.fileName)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func decode(name, path string) (*graph.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "read manifest").
			WithContext(coreerrors.CtxModule, name).
			WithContext(coreerrors.CtxPath, path)
	}

	var raw fileManifest
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "decode manifest").
			WithContext(coreerrors.CtxModule, name).
			WithContext(coreerrors.CtxPath, path)
	}

	m := &graph.Manifest{
		Name:        name,
		Version:     strings.TrimSpace(raw.Version),
		Installable: raw.Installable == nil || *raw.Installable,
	}
	seen := make(map[string]bool, len(raw.Depends))
	for _, dep := range raw.Depends {
		dep = strings.TrimSpace(dep)
		if dep == "" || seen[dep] {
			continue
		}
		seen[dep] = true
		m.Depends = append(m.Depends, dep)
	}

	autoInstall, err := decodeAutoInstall(raw.AutoInstall, m.Depends)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "decode manifest").
			WithContext(coreerrors.CtxModule, name).
			WithContext(coreerrors.CtxPath, path)
	}
	m.AutoInstall = autoInstall
	return m, nil
}

// decodeAutoInstall turns `auto_install = true` into the full dependency list
// and `auto_install = [..]` into that subset, which must be declared depends.
func decodeAutoInstall(value any, depends []string) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		if !v {
			return nil, nil
		}
		return append([]string(nil), depends...), nil
	case []any:
		declared := make(map[string]bool, len(depends))
		for _, dep := range depends {
			declared[dep] = true
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("auto_install entries must be strings, got %T", item)
			}
			if !declared[s] {
				return nil, fmt.Errorf("auto_install entry %q is not listed in depends", s)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("auto_install must be a bool or a list of module names, got %T", value)
	}
}

func copyManifest(m *graph.Manifest) *graph.Manifest {
	if m == nil {
		return nil
	}
	c := *m
	c.Depends = append([]string(nil), m.Depends...)
	c.AutoInstall = append([]string(nil), m.AutoInstall...)
	return &c
}
