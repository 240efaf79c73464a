package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/funvibe/fatptr/internal/codegen"
	"github.com/funvibe/fatptr/internal/config"
	"github.com/funvibe/fatptr/internal/descriptor"
	"github.com/funvibe/fatptr/pkg/fatptr"
	"gopkg.in/yaml.v3"
)

// commonFlags are shared by generate and check.
type commonFlags struct {
	configPath string
	types      string
	storage    string
	dispatch   string
	output     string
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (default: fatptr.yaml in dir or a parent)")
	fs.StringVar(&c.types, "type", "", "comma-separated interface names; replaces the config file")
	fs.StringVar(&c.storage, "storage", "", "storage policies for -type interfaces: owned,borrowed")
	fs.StringVar(&c.dispatch, "dispatch", "", "dispatch layouts for -type interfaces: indirect,embedded")
	fs.StringVar(&c.output, "output", "", "generated file name for -type interfaces (default "+config.DefaultOutput+")")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

// builderOptions resolves the configuration source into builder options.
func (c *commonFlags) builderOptions() ([]codegen.BuilderOption, error) {
	switch {
	case c.types != "":
		cfg, data, err := flagsConfig(c.types, c.storage, c.dispatch, c.output)
		if err != nil {
			return nil, err
		}
		return []codegen.BuilderOption{codegen.WithConfig(cfg, data)}, nil
	case c.storage != "" || c.dispatch != "" || c.output != "":
		return nil, fmt.Errorf("-storage, -dispatch and -output require -type")
	case c.configPath != "":
		data, err := os.ReadFile(c.configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", c.configPath, err)
		}
		cfg, err := config.ParseConfig(data, c.configPath)
		if err != nil {
			return nil, err
		}
		return []codegen.BuilderOption{codegen.WithConfig(cfg, data)}, nil
	}
	return nil, nil
}

// flagsConfig builds a configuration equivalent to a fatptr.yaml listing
// the given interfaces with the given policies. The returned data is the
// YAML rendering, used for the cache key.
func flagsConfig(types, storage, dispatch, output string) (*config.Config, []byte, error) {
	var cfg config.Config
	cfg.Output = output

	var specTemplate config.InterfaceSpec
	for _, s := range splitList(storage) {
		var v fatptr.Storage
		if err := v.UnmarshalText([]byte(s)); err != nil {
			return nil, nil, fmt.Errorf("-storage: %w", err)
		}
		specTemplate.Storage = append(specTemplate.Storage, v)
	}
	for _, s := range splitList(dispatch) {
		var v fatptr.Dispatch
		if err := v.UnmarshalText([]byte(s)); err != nil {
			return nil, nil, fmt.Errorf("-dispatch: %w", err)
		}
		specTemplate.Dispatch = append(specTemplate.Dispatch, v)
	}
	for _, name := range splitList(types) {
		spec := specTemplate
		spec.Name = name
		cfg.Interfaces = append(cfg.Interfaces, spec)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding flags config: %w", err)
	}
	parsed, err := config.ParseConfig(data, "flags")
	if err != nil {
		return nil, nil, err
	}
	return parsed, data, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// packageDir returns the single optional positional argument.
func packageDir(fs *flag.FlagSet) (string, error) {
	switch fs.NArg() {
	case 0:
		return ".", nil
	case 1:
		return fs.Arg(0), nil
	}
	return "", fmt.Errorf("expected at most one directory, got %d arguments", fs.NArg())
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	force := fs.Bool("force", false, "regenerate even if the cache is fresh")
	noCache := fs.Bool("no-cache", false, "neither read nor update the generation cache")
	cleanCache := fs.Bool("clean-cache", false, "remove the generation cache and exit")
	noValidate := fs.Bool("no-validate", false, "write output without type-checking it first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := packageDir(fs)
	if err != nil {
		return err
	}
	setupLogging(common.verbose)

	opts, err := common.builderOptions()
	if err != nil {
		return err
	}
	opts = append(opts,
		codegen.WithForce(*force),
		codegen.WithCache(!*noCache),
		codegen.WithValidation(!*noValidate))
	b := codegen.NewBuilder(dir, opts...)

	if *cleanCache {
		c, err := b.Cache()
		if err != nil {
			return err
		}
		if err := c.Clean(); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", c.Dir())
		return nil
	}

	res, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if res.Cached {
		fmt.Printf("%s is up to date\n", res.Path)
	} else {
		fmt.Printf("Wrote %s (%s)\n", res.Path, strings.Join(res.Interfaces, ", "))
	}
	return nil
}

func runCheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := packageDir(fs)
	if err != nil {
		return err
	}
	setupLogging(common.verbose)

	opts, err := common.builderOptions()
	if err != nil {
		return err
	}
	b := codegen.NewBuilder(dir, opts...)
	ifaces, err := b.Check(ctx)
	if err != nil {
		return err
	}
	cfg, err := b.Config()
	if err != nil {
		return err
	}

	for _, d := range ifaces {
		spec, _ := cfg.Lookup(d.Name)
		fmt.Printf("%s: %d methods, policy %s\n", d.QualifiedName(), len(d.Methods), policyString(spec.Policy()))
		for _, name := range spec.Check {
			fmt.Printf("  %s ✓\n", name)
		}
	}
	fmt.Println("\nAll checks passed ✓")
	return nil
}

func policyString(p fatptr.Policy) string {
	var storage, dispatch []string
	for _, s := range p.Storage {
		storage = append(storage, s.String())
	}
	for _, d := range p.Dispatch {
		dispatch = append(dispatch, d.String())
	}
	return fmt.Sprintf("storage=%s dispatch=%s destruction=%s",
		strings.Join(storage, ","), strings.Join(dispatch, ","), p.Destruction)
}

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	types := fs.String("type", "", "comma-separated interface names (default: every interface in the package)")
	format := fs.String("format", "text", "output format: text or yaml")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := packageDir(fs)
	if err != nil {
		return err
	}
	setupLogging(*verbose)

	ifaces, err := descriptor.Load(ctx, descriptor.LoadOptions{Dir: dir, Names: splitList(*types)})
	if err != nil {
		return err
	}
	return writeDescriptors(os.Stdout, ifaces, *format)
}

// inspectInterface is the YAML form of a descriptor.
type inspectInterface struct {
	Name    string          `yaml:"name"`
	Package string          `yaml:"package"`
	Methods []inspectMethod `yaml:"methods"`
}

type inspectMethod struct {
	Name       string   `yaml:"name"`
	Signature  string   `yaml:"signature"`
	Qualifiers []string `yaml:"qualifiers,omitempty"`
	Promoted   bool     `yaml:"promoted,omitempty"`
}

func writeDescriptors(w io.Writer, ifaces []*descriptor.Interface, format string) error {
	switch format {
	case "text":
		for i, d := range ifaces {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprint(w, d.Fingerprint())
		}
		return nil
	case "yaml":
		out := make([]inspectInterface, len(ifaces))
		for i, d := range ifaces {
			out[i] = inspectInterface{Name: d.Name, Package: d.PkgPath}
			for _, m := range d.Methods {
				out[i].Methods = append(out[i].Methods, inspectMethod{
					Name:       m.Name,
					Signature:  "func" + m.Signature,
					Qualifiers: m.Qualifiers.Names(),
					Promoted:   m.Promoted,
				})
			}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (valid: text, yaml)", format)
}
