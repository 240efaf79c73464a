// Package config parses and validates fatptr.yaml.
//
// A fatptr.yaml file sits in (or above) the package that declares the
// interfaces to erase:
//
//	output: zz_fatptr.go
//	interfaces:
//	  - name: Describer
//	    storage: [owned, borrowed]
//	    dispatch: [indirect, embedded]
//	    check: [Circle, Square]
//
// Every interface gets a dispatch table shape, an interned table
// constructor and one wrapper type per selected dispatch layout.
package config

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/fatptr/pkg/fatptr"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is the generated file name used when output is omitted.
const DefaultOutput = "zz_fatptr.go"

// FileNames are the recognised config file names, in lookup order.
var FileNames = []string{"fatptr.yaml", "fatptr.yml"}

// Config represents the top-level fatptr.yaml configuration.
type Config struct {
	// Output is the generated file name, relative to the package directory.
	Output string `yaml:"output,omitempty"`

	// Interfaces lists the interfaces to generate wrappers for.
	Interfaces []InterfaceSpec `yaml:"interfaces"`
}

// InterfaceSpec describes one interface to erase.
type InterfaceSpec struct {
	// Name is the Go interface type name, declared in the package.
	Name string `yaml:"name"`

	// Wrapper is the indirect wrapper type name. Defaults to <Name>Ref.
	// The embedded layout, if selected, is named <Name>Inline.
	Wrapper string `yaml:"wrapper,omitempty"`

	// Storage lists the storage policies to emit constructors for.
	// Defaults to [owned].
	Storage []fatptr.Storage `yaml:"storage,omitempty"`

	// Dispatch lists the wrapper layouts to emit. Defaults to [indirect].
	Dispatch []fatptr.Dispatch `yaml:"dispatch,omitempty"`

	// Destruction is the destruction policy. Defaults to managed.
	Destruction fatptr.Destruction `yaml:"destruction,omitempty"`

	// Check lists concrete type names (declared in the same package) that
	// must conform. They are verified when generating and asserted in the
	// generated file so a later change that breaks conformance fails to
	// compile.
	Check []string `yaml:"check,omitempty"`
}

// LoadConfig reads and parses a fatptr.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses fatptr.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.setDefaults()
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig searches for fatptr.yaml starting from dir and walking up
// to parent directories.
// Returns the path to the config file and nil error if found,
// or empty string and nil error if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	for i := range c.Interfaces {
		spec := &c.Interfaces[i]
		if spec.Wrapper == "" && spec.Name != "" {
			spec.Wrapper = spec.Name + "Ref"
		}
		if len(spec.Storage) == 0 {
			spec.Storage = []fatptr.Storage{fatptr.StorageOwned}
		}
		if len(spec.Dispatch) == 0 {
			spec.Dispatch = []fatptr.Dispatch{fatptr.DispatchIndirect}
		}
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if len(c.Interfaces) == 0 {
		return fmt.Errorf("%s: no interfaces defined", path)
	}
	if filepath.Ext(c.Output) != ".go" || filepath.Base(c.Output) != c.Output {
		return fmt.Errorf("%s: output %q must be a .go file name without directories", path, c.Output)
	}

	seenNames := make(map[string]int)
	seenIdents := make(map[string]string) // generated identifier → interface

	for i, spec := range c.Interfaces {
		if spec.Name == "" {
			return fmt.Errorf("%s: interfaces[%d]: name is required", path, i)
		}
		if !token.IsIdentifier(spec.Name) {
			return fmt.Errorf("%s: interfaces[%d]: name %q is not a Go identifier", path, i, spec.Name)
		}
		if prev, ok := seenNames[spec.Name]; ok {
			return fmt.Errorf("%s: interfaces[%d] (%s): duplicate of interfaces[%d]", path, i, spec.Name, prev)
		}
		seenNames[spec.Name] = i

		if !token.IsIdentifier(spec.Wrapper) {
			return fmt.Errorf("%s: interfaces[%d] (%s): wrapper %q is not a Go identifier",
				path, i, spec.Name, spec.Wrapper)
		}

		if err := spec.Policy().Validate(); err != nil {
			return fmt.Errorf("%s: interfaces[%d] (%s): %w", path, i, spec.Name, err)
		}

		for _, ident := range spec.GeneratedIdents() {
			if owner, ok := seenIdents[ident]; ok {
				return fmt.Errorf("%s: interfaces[%d] (%s): generated identifier %q conflicts with %s",
					path, i, spec.Name, ident, owner)
			}
			seenIdents[ident] = spec.Name
		}

		seenCheck := make(map[string]bool)
		for j, name := range spec.Check {
			if !token.IsIdentifier(name) {
				return fmt.Errorf("%s: interfaces[%d].check[%d] (%s): %q is not a Go identifier",
					path, i, j, spec.Name, name)
			}
			if seenCheck[name] {
				return fmt.Errorf("%s: interfaces[%d].check[%d] (%s): %q listed twice",
					path, i, j, spec.Name, name)
			}
			seenCheck[name] = true
		}
	}

	return nil
}

// Policy returns the spec's policy selection.
func (s *InterfaceSpec) Policy() fatptr.Policy {
	return fatptr.Policy{
		Storage:     s.Storage,
		Destruction: s.Destruction,
		Dispatch:    s.Dispatch,
	}
}

// InlineName returns the embedded-dispatch wrapper name.
func (s *InterfaceSpec) InlineName() string {
	return s.Name + "Inline"
}

// HandleName returns the unexported variable holding the runtime
// interface handle.
func (s *InterfaceSpec) HandleName() string {
	if s.Name == "" {
		return "interface"
	}
	return strings.ToLower(s.Name[:1]) + s.Name[1:] + "Interface"
}

// TableName returns the dispatch table shape name.
func (s *InterfaceSpec) TableName() string {
	return s.Name + "Table"
}

// GeneratedIdents lists the package-level identifiers the generator will
// declare for this interface.
func (s *InterfaceSpec) GeneratedIdents() []string {
	idents := []string{s.HandleName(), s.TableName(), s.TableName() + "For"}
	p := s.Policy()
	if p.HasDispatch(fatptr.DispatchIndirect) {
		idents = append(idents, s.Wrapper)
		if p.HasStorage(fatptr.StorageOwned) {
			idents = append(idents, "New"+s.Wrapper)
		}
		if p.HasStorage(fatptr.StorageBorrowed) {
			idents = append(idents, "Borrow"+s.Wrapper)
		}
	}
	if p.HasDispatch(fatptr.DispatchEmbedded) {
		idents = append(idents, s.InlineName())
		if p.HasStorage(fatptr.StorageOwned) {
			idents = append(idents, "New"+s.InlineName())
		}
		if p.HasStorage(fatptr.StorageBorrowed) {
			idents = append(idents, "Borrow"+s.InlineName())
		}
	}
	return idents
}

// Lookup returns the spec for the named interface.
func (c *Config) Lookup(name string) (*InterfaceSpec, bool) {
	for i := range c.Interfaces {
		if c.Interfaces[i].Name == name {
			return &c.Interfaces[i], true
		}
	}
	return nil, false
}

// Names returns the configured interface names in file order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Interfaces))
	for i, spec := range c.Interfaces {
		names[i] = spec.Name
	}
	return names
}
