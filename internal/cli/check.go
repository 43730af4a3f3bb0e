package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cvalchemist/internal/apps"
	"github.com/mesh-intelligence/cvalchemist/internal/config"
	"github.com/mesh-intelligence/cvalchemist/internal/launcher"
	"github.com/mesh-intelligence/cvalchemist/internal/paths"
)

func newCheckCmd() *cobra.Command {
	var appDir string
	cmd := &cobra.Command{
		Use:   "check [ENTRYPOINT]",
		Short: "Validate PORT, the entry point and the configuration without binding",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, entryPointArg(args), appDir)
		},
	}
	cmd.Flags().StringVar(&appDir, "app-dir", "", "directory holding index.html (default: working directory)")
	return cmd
}

func runCheck(cmd *cobra.Command, entryPoint, appDirFlag string) error {
	out := cmd.OutOrStdout()

	port, err := launcher.ResolvePort(os.Getenv(launcher.EnvPort))
	if err != nil {
		return exitError(exitUserError, err)
	}
	fmt.Fprintf(out, "port:       %d\n", port)

	ep, _, err := apps.Default.Resolve(entryPoint)
	if err != nil {
		return exitError(exitUserError, err)
	}
	fmt.Fprintf(out, "entrypoint: %s\n", ep)

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve config directory: %w", err))
	}
	settings, err := config.Load(configDir)
	if err != nil {
		return exitError(exitUserError, err)
	}
	fmt.Fprintf(out, "config:     %s\n", config.Path(configDir))
	fmt.Fprintf(out, "store:      %s\n", settings.Store.Backend)

	appDir, err := paths.ResolveAppDir(appDirFlag, settings.App.Dir)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve app directory: %w", err))
	}
	if err := paths.Writable(appDir); err != nil {
		fmt.Fprintf(out, "app dir:    %s (not writable: %v)\n", appDir, err)
	} else {
		fmt.Fprintf(out, "app dir:    %s (writable)\n", appDir)
	}
	return nil
}
