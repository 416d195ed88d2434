package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// runConfig is the top-level structure of an HCL run file.
//
//	engine   = "qjs.wasm"
//	snapshot = env.SNAPSHOT
//	scripts  = ["main.js"]
//	eval     = ["1 + 1"]
type runConfig struct {
	Engine   string   `hcl:"engine,optional"`
	Snapshot string   `hcl:"snapshot,optional"`
	Scripts  []string `hcl:"scripts,optional"`
	Eval     []string `hcl:"eval,optional"`
}

// loadConfig parses an HCL run file. Attribute expressions may reference
// env.<NAME> to pull values from the environment.
func loadConfig(path string) (*runConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVars()},
	}

	var cfg runConfig
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", path, diags)
	}
	return &cfg, nil
}

func envVars() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}
