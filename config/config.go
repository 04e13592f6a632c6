// Package config loads the directory layout of a sampling and evaluation
// workspace from `env.yaml`.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no config
// path is given.
const DefaultFileName = "env.yaml"

// EnvPrefix prefixes the environment variables that override file values,
// e.g. BPE_CORPUS_DATA_TRAIN.
const EnvPrefix = "BPE_CORPUS_"

var ErrMixedPaths = errors.New(
	"mixture of absolute and relative paths encountered in env")

// Env
// Resolved workspace directories. After Load every path is absolute, or
// an `s3://` location for DataOriginal.
type Env struct {
	DataOriginal string `yaml:"data_original"`
	DataTrain    string `yaml:"data_train"`
	DataEval     string `yaml:"data_eval"`
	Output       string `yaml:"output"`
	Debug        bool   `yaml:"debug"`
	Verbose      bool   `yaml:"verbose"`
}

// Load
// Reads the YAML file at path, applies environment overrides and resolves
// relative directories against the file's directory. The four directories
// must be either all absolute or all relative.
func Load(path string) (*Env, error) {
	if path == "" {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env := &Env{}
	if err := yaml.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := env.applyOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := env.resolve(filepath.Dir(absPath)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

func (env *Env) dirs() []*string {
	return []*string{&env.DataOriginal, &env.DataTrain, &env.DataEval,
		&env.Output}
}

func (env *Env) applyOverrides(lookup func(string) (string, bool)) error {
	fields := map[string]*string{
		"DATA_ORIGINAL": &env.DataOriginal,
		"DATA_TRAIN":    &env.DataTrain,
		"DATA_EVAL":     &env.DataEval,
		"OUTPUT":        &env.Output,
	}
	for name, field := range fields {
		if value, ok := lookup(EnvPrefix + name); ok {
			*field = strings.TrimSpace(value)
		}
	}
	flags := map[string]*bool{
		"DEBUG":   &env.Debug,
		"VERBOSE": &env.Verbose,
	}
	for name, field := range flags {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*field = parsed
	}
	return nil
}

func (env *Env) resolve(baseDir string) error {
	absolute, relative := 0, 0
	for _, dir := range env.dirs() {
		switch {
		case *dir == "":
			return errors.New("data_original, data_train, data_eval and " +
				"output must all be set")
		case strings.HasPrefix(*dir, "s3://"):
			// Remote locations take part in neither count.
		case filepath.IsAbs(*dir):
			absolute++
		default:
			relative++
		}
	}
	if absolute > 0 && relative > 0 {
		return ErrMixedPaths
	}
	for _, dir := range env.dirs() {
		if strings.HasPrefix(*dir, "s3://") || filepath.IsAbs(*dir) {
			continue
		}
		*dir = filepath.Join(baseDir, *dir)
	}
	return nil
}
