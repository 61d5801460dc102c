// Command preflight validates a deployment's configuration without starting
// anything: it loads config, runs the full invariant check registry in deploy
// mode, prints every finding, and exits non-zero when any finding blocks.
// Wire it into the deploy pipeline before traffic shifts.
package main

import (
	"context"
	"fmt"
	"os"

	"custodia/internal/checks"
	"custodia/internal/platform/config"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "preflight: cannot load configuration:", err)
		os.Exit(2)
	}

	result := checks.NewRegistry().Run(context.Background(), cfg)
	if len(result.Findings) == 0 {
		fmt.Println("preflight: all checks passed")
		return
	}

	for _, f := range result.Findings {
		fmt.Printf("[%s] %s: %s\n", f.Severity, f.CheckID, f.Message)
		if f.Hint != "" {
			fmt.Printf("    hint: %s\n", f.Hint)
		}
	}

	// In deploy validation every finding blocks, warnings included.
	if !result.OK(true) {
		fmt.Printf("preflight: %d finding(s) block this deployment\n", len(result.Blocking(true)))
		os.Exit(1)
	}
}
