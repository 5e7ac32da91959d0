package sites

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds the loaded site adapters by name.
type Registry struct {
	sites map[string]*Site
}

// NewRegistry builds a registry from already-validated sites.
func NewRegistry(sites ...*Site) (*Registry, error) {
	r := &Registry{sites: make(map[string]*Site, len(sites))}
	for _, s := range sites {
		if _, dup := r.sites[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate site name %q", ErrInvalidSite, s.Name)
		}
		r.sites[s.Name] = s
	}
	return r, nil
}

// Find returns the site called name.
func (r *Registry) Find(name string) (*Site, error) {
	s, ok := r.sites[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, name)
	}
	return s, nil
}

// All returns every site sorted by name.
func (r *Registry) All() []*Site {
	out := make([]*Site, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of sites.
func (r *Registry) Len() int {
	return len(r.sites)
}

// LoadError ties a validation or parse failure to its file.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load site from %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads every *.yml and *.yaml file in dir. All files are attempted;
// the returned error joins every failure.
func Load(dir string) (*Registry, error) {
	files, err := Files(dir)
	if err != nil {
		return nil, err
	}

	var (
		loaded []*Site
		errs   []error
	)
	for _, file := range files {
		site, loadErr := LoadFile(file)
		if loadErr != nil {
			errs = append(errs, loadErr)
			continue
		}
		loaded = append(loaded, site)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return NewRegistry(loaded...)
}

// Files returns the site definition files in dir, sorted by name.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sites dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

// LoadFile reads, defaults and validates one site definition. Unknown keys
// are rejected.
func LoadFile(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	site, err := Parse(data)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	site.dir = filepath.Dir(path)
	return site, nil
}

// Parse decodes a site definition from YAML, applies defaults and validates it.
func Parse(data []byte) (*Site, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var site Site
	if err := dec.Decode(&site); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty definition", ErrInvalidSite)
		}
		return nil, fmt.Errorf("decode site: %w", err)
	}

	site.SetDefaults()
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return &site, nil
}
