package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/matfelipe/deskchat/internal/config"
	"github.com/matfelipe/deskchat/internal/engine"
	"github.com/matfelipe/deskchat/internal/profile"
	"github.com/matfelipe/deskchat/internal/tui"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		// First run: persist the defaults so they can be edited.
		cfg = config.Default()
		if err := config.Save(profile.ConfigPath(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: write config: %v\n", err)
			os.Exit(1)
		}
	}

	var orch *engine.Orchestrator
	app := fx.New(
		engine.Module(engine.Params{ProfileName: profileName, Config: cfg}),
		fx.Populate(&orch),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ui := tui.NewApp(orch, profileName)
	runErr := ui.Run()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
