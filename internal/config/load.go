package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Load reads a .yaml, .yml or .cue file, applies defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, &ConfigError{Code: ErrCodeNotFound, Message: path}
	}
	if err != nil {
		return Config{}, &ConfigError{Code: ErrCodeNotFound, Message: path, Err: err}
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(filepath.Base(path), data)
	default:
		return Config{}, &ConfigError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("%s: expected .yaml, .yml or .cue", path),
		}
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseYAML decodes YAML, rejecting unknown fields, then applies defaults
// and validates.
func ParseYAML(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Code: ErrCodeParse, Message: "invalid YAML", Err: err}
	}
	return finish(cfg)
}

// ParseCUE compiles data, unifies it with the #Config schema and decodes the
// concrete result.
func ParseCUE(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile embedded schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, &ConfigError{Code: ErrCodeParse, Message: "invalid CUE", Err: cueError(err)}
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, &ConfigError{Code: ErrCodeSchemaError, Message: "does not satisfy #Config", Err: cueError(err)}
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return Config{}, &ConfigError{Code: ErrCodeParse, Message: "export CUE", Err: err}
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &ConfigError{Code: ErrCodeParse, Message: "decode CUE", Err: err}
	}
	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// cueError flattens a CUE error list into one error carrying positions.
func cueError(err error) error {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), msg)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}
