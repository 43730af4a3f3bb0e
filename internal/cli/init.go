package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cvalchemist/internal/config"
	"github.com/mesh-intelligence/cvalchemist/internal/paths"
	"github.com/mesh-intelligence/cvalchemist/internal/store"
	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// configFile holds the structure written to config.yaml.
type configFile struct {
	Store storeSection `yaml:"store"`
	LLM   config.LLM   `yaml:"llm"`
	App   config.App   `yaml:"app"`
	Log   config.Log   `yaml:"log"`
}

type storeSection struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	RedisURL  string `yaml:"redis_url,omitempty"`
	ResultTTL string `yaml:"result_ttl"`
}

type initFlags struct {
	dataDir string
	backend string
}

func newInitCmd() *cobra.Command {
	var f initFlags
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize alchemist configuration and storage",
		Long:  "Create the configuration and data directories, write config.yaml, then initialize the result store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "data directory (default: ./"+paths.DefaultDataDirName+")")
	cmd.Flags().StringVar(&f.backend, "backend", types.BackendSQLite, "result store backend: memory, sqlite or redis")
	return cmd
}

func runInit(cmd *cobra.Command, f initFlags) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve config directory: %w", err))
	}

	// Load data_dir from existing config.yaml if flag was not provided.
	dataDir, err := paths.ResolveDataDir(f.dataDir, loadDataDirFromConfig(configDir))
	if err != nil {
		return exitError(exitSysError, fmt.Errorf("resolve data directory: %w", err))
	}

	storeCfg := types.Config{Backend: f.backend, DataDir: dataDir, ResultTTL: types.DefaultResultTTL}
	if f.backend == types.BackendRedis {
		storeCfg.RedisURL = "redis://localhost:6379/0"
	}
	if err := storeCfg.Validate(); err != nil {
		return exitError(exitUserError, err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return exitError(exitSysError, fmt.Errorf("create config directory: %w", err))
	}

	// Write config.yaml if missing.
	if err := writeConfigIfMissing(config.Path(configDir), storeCfg); err != nil {
		return exitError(exitSysError, fmt.Errorf("write config: %w", err))
	}

	if f.backend == types.BackendSQLite {
		results, err := store.Open(cmd.Context(), storeCfg)
		if err != nil {
			return exitError(exitSysError, fmt.Errorf("initialize storage: %w", err))
		}
		if err := results.Close(); err != nil {
			return exitError(exitSysError, fmt.Errorf("finalize storage: %w", err))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Alchemist initialized successfully")
	fmt.Fprintf(out, "config: %s\n", config.Path(configDir))
	if f.backend == types.BackendSQLite {
		fmt.Fprintf(out, "data:   %s\n", dataDir)
	}
	return nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil (idempotent).
func writeConfigIfMissing(path string, storeCfg types.Config) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	d := config.Default()
	cfg := configFile{
		Store: storeSection{
			Backend:   storeCfg.Backend,
			DataDir:   storeCfg.DataDir,
			RedisURL:  storeCfg.RedisURL,
			ResultTTL: storeCfg.ResultTTL.String(),
		},
		LLM: d.LLM,
		App: d.App,
		Log: d.Log,
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// loadDataDirFromConfig reads store.data_dir from an existing config.yaml.
// Returns empty string if the file does not exist or cannot be read.
func loadDataDirFromConfig(configDir string) string {
	data, err := os.ReadFile(config.Path(configDir))
	if err != nil {
		return ""
	}

	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	return cfg.Store.DataDir
}
