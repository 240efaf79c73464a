package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/fatptr/internal/descriptor"
	ferrors "github.com/funvibe/fatptr/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
)

// Validate type-checks the package in dir with file overlaid, without
// touching the file system. It reports every type error, including those
// outside the generated file, since any of them would break the build.
func Validate(ctx context.Context, dir string, file *GeneratedFile, env []string) error {
	abs, err := filepath.Abs(filepath.Join(dir, file.Filename))
	if err != nil {
		return ferrors.New(ferrors.PhaseValidate, ferrors.KindIO).Cause(err).Build()
	}
	if env == nil {
		env = os.Environ()
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    descriptor.LoadMode,
		Dir:     dir,
		Env:     env,
		Overlay: map[string][]byte{abs: []byte(file.Content)},
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return ferrors.New(ferrors.PhaseValidate, ferrors.KindPackageErrors).Cause(err).Build()
	}

	var msgs []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			msgs = append(msgs, e.Error())
		}
	})
	if len(msgs) > 0 {
		return ferrors.New(ferrors.PhaseValidate, ferrors.KindTypeCheck).
			Detail("generated %s does not type-check:\n  %s", file.Filename, strings.Join(msgs, "\n  ")).Build()
	}

	log().Debug("generated code type-checks", zap.String("file", abs))
	return nil
}
