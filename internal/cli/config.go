package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/chunkscribe/chunkscribe/internal/chunking"
	"github.com/chunkscribe/chunkscribe/internal/config"
)

// validConfigKeys lists all supported configuration keys.
var validConfigKeys = []string{
	config.KeyOutputDir,
	config.KeyChunkLimit,
	config.KeyChunkOverlap,
	config.KeyChunking,
}

// envForKey maps a config key to its environment variable fallback.
var envForKey = map[string]string{
	config.KeyOutputDir:    config.EnvOutputDir,
	config.KeyChunkLimit:   config.EnvChunkLimit,
	config.KeyChunkOverlap: config.EnvChunkOverlap,
	config.KeyChunking:     config.EnvChunking,
}

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/chunkscribe/config.
Settings can also be overridden via environment variables.

Supported settings:
  output-dir     Default directory for transcripts (env: CHUNKSCRIBE_OUTPUT_DIR)
  chunk-limit    Default chunk limit, e.g. 20MB or 15m (env: CHUNKSCRIBE_CHUNK_LIMIT)
  chunk-overlap  Overlap between chunks, e.g. 30s (env: CHUNKSCRIBE_CHUNK_OVERLAP)
  chunking       "on" or "off" (env: CHUNKSCRIBE_CHUNKING)`,
		Example: `  chunkscribe config set output-dir ~/Documents/transcripts
  chunkscribe config set chunk-limit 15m
  chunkscribe config get chunk-limit
  chunkscribe config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Example: `  chunkscribe config set output-dir ~/Documents/transcripts
  chunkscribe config set chunk-limit 20MB
  chunkscribe config set chunking off`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Example: `  chunkscribe config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List all configuration values",
		Example: `  chunkscribe config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if !config.ValidKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, validConfigKeys)
	}

	// Key-specific validation.
	switch key {
	case config.KeyOutputDir:
		expanded := config.ExpandPath(value)
		if err := config.ValidOutputDir(expanded); err != nil {
			return fmt.Errorf("invalid output-dir: %w", err)
		}
		value = expanded
	case config.KeyChunkLimit:
		if _, _, err := chunking.ParseLimit(value); err != nil {
			return fmt.Errorf("invalid chunk-limit: %w", err)
		}
	case config.KeyChunkOverlap:
		if !validOverlap(value) {
			return fmt.Errorf("invalid chunk-overlap %q (use e.g. 30s or 30)", value)
		}
	case config.KeyChunking:
		if value != "on" && value != "off" {
			return fmt.Errorf("chunking must be %q or %q", "on", "off")
		}
	}

	if err := config.Save(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// validOverlap accepts a positive duration ("30s") or bare seconds ("30").
func validOverlap(value string) bool {
	if d, err := time.ParseDuration(value); err == nil {
		return d > 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n > 0
	}
	return false
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	if !config.ValidKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, validConfigKeys)
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}

	// Environment variable fallback.
	if value == "" {
		value = env.Getenv(envForKey[key])
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}

	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	// Surface environment fallbacks for keys not in the file.
	for _, key := range validConfigKeys {
		if _, ok := data[key]; ok {
			continue
		}
		if envVal := env.Getenv(envForKey[key]); envVal != "" {
			data[key] = envVal + " (from env)"
		}
	}

	if len(data) == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range validConfigKeys {
			fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	for _, key := range validConfigKeys {
		if value, ok := data[key]; ok {
			fmt.Fprintf(env.Stdout, "%s=%s\n", key, value)
		}
	}

	return nil
}
