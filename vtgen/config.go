// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/casbin/govaluate"
	"gopkg.in/yaml.v3"
)

// Config is the YAML form of a vtgen invocation. Command line flags
// override the scalar fields and append to the binding list.
type Config struct {
	Package     string          `yaml:"package"`
	Output      string          `yaml:"output"`
	PackageName string          `yaml:"package_name"`
	Bindings    []BindingConfig `yaml:"bindings"`
}

// BindingConfig describes a single generated table.
type BindingConfig struct {
	Impl          string   `yaml:"impl"`
	Contracts     []string `yaml:"contracts"`
	Table         string   `yaml:"table"`
	NoConstructor bool     `yaml:"no_constructor"`
	When          string   `yaml:"when"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	for i, binding := range cfg.Bindings {
		if binding.Impl == "" {
			return nil, fmt.Errorf("config %s: binding %d has no impl", path, i)
		}
		if len(binding.Contracts) == 0 {
			return nil, fmt.Errorf("config %s: binding %d (%s) has no contracts", path, i, binding.Impl)
		}
	}

	return cfg, nil
}

// parseBindingSpec parses the command line form "A+B:Impl[:TableName]".
func parseBindingSpec(spec string) (BindingConfig, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return BindingConfig{}, fmt.Errorf("invalid binding %q, expected Contract[+Contract]:Impl[:TableName]", spec)
	}

	binding := BindingConfig{
		Impl: strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		binding.Table = strings.TrimSpace(parts[2])
	}

	for _, contract := range strings.Split(parts[0], "+") {
		contract = strings.TrimSpace(contract)
		if contract == "" {
			return BindingConfig{}, fmt.Errorf("invalid binding %q: empty contract name", spec)
		}
		binding.Contracts = append(binding.Contracts, contract)
	}
	if binding.Impl == "" {
		return BindingConfig{}, fmt.Errorf("invalid binding %q: empty impl name", spec)
	}

	return binding, nil
}

// bindingList collects repeatable, comma separated -bindings flags.
type bindingList []BindingConfig

func (l *bindingList) String() string {
	specs := make([]string, len(*l))
	for i, b := range *l {
		specs[i] = strings.Join(b.Contracts, "+") + ":" + b.Impl
		if b.Table != "" {
			specs[i] += ":" + b.Table
		}
	}
	return strings.Join(specs, ",")
}

func (l *bindingList) Set(value string) error {
	for _, spec := range strings.Split(value, ",") {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		binding, err := parseBindingSpec(spec)
		if err != nil {
			return err
		}
		*l = append(*l, binding)
	}
	return nil
}

// defineList collects repeatable -D key=value flags. Values that parse as
// numbers or booleans are stored typed so conditions can compare them.
type defineList map[string]interface{}

func (d defineList) String() string {
	keys := make([]string, 0, len(d))
	for key, value := range d {
		keys = append(keys, fmt.Sprintf("%s=%v", key, value))
	}
	return strings.Join(keys, ",")
}

func (d defineList) Set(value string) error {
	key, raw, found := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("invalid define %q", value)
	}
	if !found {
		d[key] = true
		return nil
	}

	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		d[key] = f
	} else if b, err := strconv.ParseBool(raw); err == nil {
		d[key] = b
	} else {
		d[key] = raw
	}
	return nil
}

// conditionParams returns the defines merged over the build platform.
func conditionParams(defines defineList) map[string]interface{} {
	params := map[string]interface{}{
		"GOOS":   runtime.GOOS,
		"GOARCH": runtime.GOARCH,
	}
	for key, value := range defines {
		params[key] = value
	}
	return params
}

// evalCondition reports whether a binding's when expression holds. An empty
// expression always holds.
func evalCondition(expr string, params map[string]interface{}) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}

	expression, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, fmt.Errorf("invalid condition %q: %w", expr, err)
	}

	// undefined variables evaluate as false instead of failing
	for _, name := range expression.Vars() {
		if _, ok := params[name]; !ok {
			params[name] = false
		}
	}

	result, err := expression.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", expr, err)
	}

	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("condition %q does not evaluate to a boolean (got %v)", expr, result)
	}
	return ok, nil
}
