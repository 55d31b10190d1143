package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// LoadError describes why a scenario argument could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadResult is a loaded scenario and, for packages, the package it came from.
type LoadResult struct {
	Scenario *scenario.Scenario
	Package  *scenario.Package
}

// IsPackage reports whether path names an exported scenario package.
func IsPackage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".reel", ".zip":
		return true
	}
	return false
}

// LoadScenario loads a scenario document or package from path.
func LoadScenario(path string) (*LoadResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario not found: %s", path), Err: err}
	}

	if IsPackage(path) {
		pkg, err := scenario.ReadPackage(path)
		if err != nil {
			return nil, classifyLoadError(err)
		}
		if pkg.Scenario.ID == "" {
			pkg.Scenario.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return &LoadResult{Scenario: pkg.Scenario, Package: pkg}, nil
	}

	sc, err := scenario.LoadFile(path)
	if err != nil {
		return nil, classifyLoadError(err)
	}
	return &LoadResult{Scenario: sc}, nil
}

func classifyLoadError(err error) *LoadError {
	switch {
	case errors.Is(err, scenario.ErrValidation):
		return &LoadError{Code: ErrCodeInvalidScenario, Message: "invalid scenario", Err: err}
	default:
		return &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err}
	}
}

// failLoad reports a load error and returns the matching ExitError. Invalid
// scenarios are validation failures; everything else is a command error.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	var ve *scenario.ValidationError
	if errors.As(loadErr.Err, &ve) {
		return f.Fail(ExitFailure, loadErr.Code, ve.Error(), ve.Issues)
	}
	return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
}
