package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peterh/liner"

	"github.com/liquidhost/jsgroup/engine"
	"github.com/liquidhost/jsgroup/group"
)

// repl evaluates lines through the group's synchronous scheduler: each line
// becomes one engine invocation (engines in the qjs family accept -e) that
// runs on the owning goroutine while the REPL goroutine blocks.
func repl(ctx context.Context, g *group.ContextGroup, engineBytes []byte, engineName string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(os.TempDir(), ".jsrun_history")
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	iso := g.Isolate()
	stdio := engine.ModuleIO{Stdout: os.Stdout, Stderr: os.Stderr}
	for {
		input, err := line.Prompt("js> ")
		if err != nil {
			// EOF or aborted prompt ends the session
			return nil
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		err = g.ScheduleSync(func() {
			if rerr := iso.RunModule(ctx, engineBytes, stdio, engineName, "-e", input); rerr != nil {
				fmt.Fprintln(os.Stderr, rerr)
			}
		})
		if err != nil {
			return err
		}
	}
}
