// Package cache records which generated files are up to date.
//
// A stamp is kept per (package directory, output file) under
// .fatptr/cache/ next to fatptr.yaml. The stamp holds a key hashed from the
// normalised config, the Go sources of the package (minus the generated
// file) and of every package of the same module it imports, go.mod and
// go.sum, and the generator version, so generation is skipped until one of
// them changes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
)

// Cache manages stamps in <projectDir>/.fatptr/cache/.
type Cache struct {
	// projectDir is the directory containing fatptr.yaml.
	projectDir string
}

// New creates a cache scoped to the given project directory.
func New(projectDir string) *Cache {
	return &Cache{projectDir: projectDir}
}

// Dir returns the path to the cache directory.
func (c *Cache) Dir() string {
	return filepath.Join(c.projectDir, ".fatptr", "cache")
}

// Lookup reports whether the stamp for output in pkgDir matches key.
func (c *Cache) Lookup(pkgDir, output, key string) bool {
	data, err := os.ReadFile(c.stampPath(pkgDir, output))
	if err != nil {
		log().Debug("cache miss", zap.String("dir", pkgDir), zap.String("reason", "no stamp"))
		return false
	}
	if strings.TrimSpace(string(data)) != key {
		log().Debug("cache miss", zap.String("dir", pkgDir), zap.String("reason", "stale"))
		return false
	}
	if _, err := os.Stat(filepath.Join(pkgDir, output)); err != nil {
		log().Debug("cache miss", zap.String("dir", pkgDir), zap.String("reason", "output missing"))
		return false
	}
	log().Debug("cache hit", zap.String("dir", pkgDir), zap.String("key", key))
	return true
}

// Store records key as the current stamp for output in pkgDir.
func (c *Cache) Store(pkgDir, output, key string) error {
	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.WriteFile(c.stampPath(pkgDir, output), []byte(key+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing cache stamp: %w", err)
	}
	return nil
}

// Clean removes all stamps.
func (c *Cache) Clean() error {
	return os.RemoveAll(c.Dir())
}

// stampPath names the stamp file after the absolute package directory and
// output file, so one cache can serve several packages.
func (c *Cache) stampPath(pkgDir, output string) string {
	if abs, err := filepath.Abs(pkgDir); err == nil {
		pkgDir = abs
	}
	h := sha256.Sum256([]byte(pkgDir + "\x00" + output))
	return filepath.Join(c.Dir(), hex.EncodeToString(h[:8])+".stamp")
}

// Key computes the stamp key from the normalised config, the given source
// files and the generator version. Sources are hashed by name and content
// in name order.
func Key(configData []byte, sources map[string][]byte, version string) string {
	h := sha256.New()
	h.Write(NormalizeConfig(configData))

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte("\x00"))
		h.Write([]byte(name))
		h.Write([]byte("\x00"))
		h.Write(sources[name])
	}

	h.Write([]byte("\x00"))
	h.Write([]byte(version))

	return hex.EncodeToString(h.Sum(nil))[:16] // First 16 hex chars = 64 bits
}

// ReadSources reads the non-test Go files in dir, leaving out skip.
func ReadSources(dir, skip string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	sources := make(map[string][]byte)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == skip || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		sources[name] = data
	}
	return sources, nil
}

// ModuleSources reads the inputs that determine the descriptors of the
// package in dir: its non-test Go files (leaving out skip), the non-test Go
// files of every package of the enclosing module it imports directly or
// transitively, and the module's go.mod and go.sum. Names are slash paths
// relative to the module root. Outside a module only dir is read.
func ModuleSources(dir, skip string) (map[string][]byte, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	root, modData, err := findModule(dir)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return ReadSources(dir, skip)
	}
	modPath := modfile.ModulePath(modData)

	sources := map[string][]byte{"go.mod": modData}
	if sum, err := os.ReadFile(filepath.Join(root, "go.sum")); err == nil {
		sources["go.sum"] = sum
	}

	fset := token.NewFileSet()
	seen := map[string]bool{dir: true}
	queue := []string{dir}
	for len(queue) > 0 {
		pkgDir := queue[0]
		queue = queue[1:]

		pkgSkip := ""
		if pkgDir == dir {
			pkgSkip = skip
		}
		files, err := ReadSources(pkgDir, pkgSkip)
		if err != nil {
			if pkgDir != dir && errors.Is(err, fs.ErrNotExist) {
				// Imported path without a directory here; loading reports it.
				continue
			}
			return nil, err
		}
		rel, err := filepath.Rel(root, pkgDir)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", pkgDir, err)
		}

		for name, data := range files {
			sources[path.Join(filepath.ToSlash(rel), name)] = data

			f, err := parser.ParseFile(fset, name, data, parser.ImportsOnly)
			if err != nil {
				// The content is still hashed; loading reports the error.
				log().Debug("skipping imports of unparsable file", zap.String("file", name), zap.Error(err))
				continue
			}
			for _, imp := range f.Imports {
				p, err := strconv.Unquote(imp.Path.Value)
				if err != nil || modPath == "" {
					continue
				}
				if p != modPath && !strings.HasPrefix(p, modPath+"/") {
					continue
				}
				dep := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(p, modPath)))
				if !seen[dep] {
					seen[dep] = true
					queue = append(queue, dep)
				}
			}
		}
	}
	log().Debug("module sources read", zap.String("dir", dir), zap.Int("packages", len(seen)), zap.Int("files", len(sources)))
	return sources, nil
}

// findModule returns the directory holding the go.mod that governs dir and
// its content, or "" when dir is not inside a module.
func findModule(dir string) (string, []byte, error) {
	for {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			return dir, data, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, fmt.Errorf("reading go.mod: %w", err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// NormalizeConfig trims trailing whitespace on each line and trailing
// newlines, so trivial whitespace changes don't invalidate the cache.
func NormalizeConfig(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	var normalized strings.Builder
	for _, line := range lines {
		normalized.WriteString(strings.TrimRight(line, " \t\r"))
		normalized.WriteString("\n")
	}
	return []byte(strings.TrimRight(normalized.String(), "\n"))
}
