package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/app"
	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/session"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides COMFY_PROFILE)")
	flag.Parse()

	profile := session.Resolve(*profileFlag)
	if err := session.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{Profile: profile}),
		fx.NopLogger,
	).Run()
}
