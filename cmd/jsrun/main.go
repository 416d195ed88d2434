package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/liquidhost/jsgroup/engine"
	"github.com/liquidhost/jsgroup/group"
)

func main() {
	var (
		enginePath  = flag.String("engine", "", "Path to the engine wasm binary (e.g. a QuickJS build)")
		snapshot    = flag.String("snapshot", "", "Startup snapshot file (optional)")
		configPath  = flag.String("config", "", "HCL run config (optional)")
		interactive = flag.Bool("i", false, "Interactive REPL")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		if logger, err := zap.NewDevelopment(); err == nil {
			engine.SetLogger(logger)
		}
	}

	cfg := &runConfig{}
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	// Flags and positional scripts override the config file.
	if *enginePath != "" {
		cfg.Engine = *enginePath
	}
	if *snapshot != "" {
		cfg.Snapshot = *snapshot
	}
	if args := flag.Args(); len(args) > 0 {
		cfg.Scripts = append(cfg.Scripts, args...)
	}

	if cfg.Engine == "" {
		fmt.Fprintln(os.Stderr, "Usage: jsrun -engine <engine.wasm> [-snapshot file] [-config run.hcl] [script ...]")
		fmt.Fprintln(os.Stderr, "       jsrun -engine <engine.wasm> -i  (interactive REPL)")
		os.Exit(1)
	}

	if err := run(cfg, *interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *runConfig, interactive bool) error {
	ctx := context.Background()

	engineBytes, err := os.ReadFile(cfg.Engine)
	if err != nil {
		return fmt.Errorf("read engine: %w", err)
	}

	platform := engine.NewPlatform()
	var g *group.ContextGroup
	if cfg.Snapshot != "" {
		g, err = group.NewFromSnapshot(ctx, platform, cfg.Snapshot)
	} else {
		g, err = group.New(ctx, platform)
	}
	if err != nil {
		return err
	}
	defer g.Dispose(ctx)

	// This goroutine owns the engine instance; everything below reaches it
	// through the group's scheduler.
	go g.Loop().Run()

	iso := g.Isolate()
	stdio := engine.ModuleIO{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}

	for _, script := range cfg.Scripts {
		err := g.ScheduleSync(func() {
			if rerr := iso.RunModule(ctx, engineBytes, stdio, cfg.Engine, script); rerr != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", script, rerr)
			}
		})
		if err != nil {
			return err
		}
	}
	for _, expr := range cfg.Eval {
		err := g.ScheduleSync(func() {
			if rerr := iso.RunModule(ctx, engineBytes, stdio, cfg.Engine, "-e", expr); rerr != nil {
				fmt.Fprintln(os.Stderr, rerr)
			}
		})
		if err != nil {
			return err
		}
	}

	if interactive {
		return repl(ctx, g, engineBytes, cfg.Engine)
	}
	return nil
}
