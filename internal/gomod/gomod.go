// Package gomod reads the user's go.mod and registers dependencies in the
// scaffold's go.mod.
package gomod

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"

	"github.com/conneroisu/peek/internal/errors"
)

// ModulePath returns the module path declared by the go.mod in dir.
func ModulePath(dir string) (string, error) {
	f, err := parse(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", err
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", errors.BootstrapError(errors.ErrCodeModuleNotFound,
			fmt.Sprintf("no module directive in %s", filepath.Join(dir, "go.mod")), nil)
	}
	return f.Module.Mod.Path, nil
}

func parse(gomodPath string) (*modfile.File, error) {
	data, err := os.ReadFile(gomodPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.BootstrapError(errors.ErrCodeModuleNotFound,
				fmt.Sprintf("no go.mod found at %s", gomodPath), err)
		}
		return nil, errors.FileOperationError("READ", gomodPath, "reading go.mod", err)
	}

	f, err := modfile.Parse(gomodPath, data, nil)
	if err != nil {
		return nil, errors.BootstrapError(errors.ErrCodeModuleNotFound, "parsing go.mod", err).
			WithLocation(gomodPath, 0, 0)
	}
	return f, nil
}

// Dependency is one module the scaffold requires.
type Dependency struct {
	Path    string
	Version string
	// Replace, when set, is a filesystem path the module is replaced with.
	Replace string
}

// Register adds require and replace directives for deps to the go.mod at
// gomodPath, replacing any existing directives for the same module paths.
func Register(gomodPath string, deps ...Dependency) error {
	f, err := parse(gomodPath)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		if err := module.CheckPath(dep.Path); err != nil {
			return errors.BootstrapError(errors.ErrCodeModuleNotFound,
				fmt.Sprintf("invalid module path %q", dep.Path), err)
		}
		if err := f.AddRequire(dep.Path, dep.Version); err != nil {
			return errors.BootstrapError(errors.ErrCodeCreateFailed,
				fmt.Sprintf("requiring %s@%s", dep.Path, dep.Version), err)
		}
		if err := f.DropReplace(dep.Path, ""); err != nil {
			return errors.BootstrapError(errors.ErrCodeCreateFailed,
				fmt.Sprintf("dropping replace for %s", dep.Path), err)
		}
		if dep.Replace == "" {
			continue
		}
		if err := f.AddReplace(dep.Path, "", dep.Replace, ""); err != nil {
			return errors.BootstrapError(errors.ErrCodeCreateFailed,
				fmt.Sprintf("replacing %s with %s", dep.Path, dep.Replace), err)
		}
	}

	f.Cleanup()
	data, err := f.Format()
	if err != nil {
		return errors.BootstrapError(errors.ErrCodeCreateFailed, "formatting go.mod", err)
	}
	if err := os.WriteFile(gomodPath, data, 0o644); err != nil {
		return errors.FileOperationError("WRITE", gomodPath, "writing go.mod", err)
	}
	return nil
}
