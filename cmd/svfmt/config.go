package main

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/antmicro/verible/internal/format"
)

const defaultConfigName = ".svfmt.yaml"

// fileConfig mirrors format.Style/ExecutionControl's independently-settable
// fields for an optional project config file. Zero values mean "not set in
// the file"; they never override an explicit flag.
type fileConfig struct {
	ColumnLimit                  *int  `yaml:"column_limit"`
	IndentationSpaces             *int  `yaml:"indentation_spaces"`
	WrapSpaces                    *int  `yaml:"wrap_spaces"`
	OverColumnLimitPenalty        *int  `yaml:"over_column_limit_penalty"`
	MaxBlankLines                 *int  `yaml:"max_blank_lines"`
	FormatModulePortDeclarations  *bool `yaml:"format_module_port_declarations"`
	MaxSearchStates                *int `yaml:"max_search_states"`
}

// loadFileConfig reads path (or defaultConfigName if path is empty and that
// file exists in the working directory). A missing file is not an error.
func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		path = defaultConfigName
		if _, err := os.Stat(path); err != nil {
			return fileConfig{}, nil
		}
	}

	data, err := os.ReadFile(path) //nolint:gosec // CLI intentionally reads a user-specified config path.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}

// applyTo merges cfg into opts wherever opts still holds its Options zero
// value (for the port-formatting switch: wherever it is still on), so an
// explicit CLI flag (already set in opts by the caller) always wins over the
// file.
func (cfg fileConfig) applyTo(opts format.Options) format.Options {
	if cfg.ColumnLimit != nil && opts.ColumnLimit == 0 {
		opts.ColumnLimit = *cfg.ColumnLimit
	}
	if cfg.IndentationSpaces != nil && opts.IndentationSpaces == 0 {
		opts.IndentationSpaces = *cfg.IndentationSpaces
	}
	if cfg.WrapSpaces != nil && opts.WrapSpaces == 0 {
		opts.WrapSpaces = *cfg.WrapSpaces
	}
	if cfg.OverColumnLimitPenalty != nil && opts.OverColumnLimitPenalty == 0 {
		opts.OverColumnLimitPenalty = *cfg.OverColumnLimitPenalty
	}
	if cfg.MaxBlankLines != nil && opts.MaxBlankLines == 0 {
		opts.MaxBlankLines = *cfg.MaxBlankLines
	}
	if cfg.FormatModulePortDeclarations != nil && opts.FormatModulePortDeclarations {
		opts.FormatModulePortDeclarations = *cfg.FormatModulePortDeclarations
	}
	if cfg.MaxSearchStates != nil && opts.Execution.MaxSearchStates == 0 {
		opts.Execution.MaxSearchStates = *cfg.MaxSearchStates
	}
	return opts
}
