// Package initcmder provides the init command for initializing a local
// .gauntlet directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/probeworks/gauntlet/pkg/config"
)

const (
	dirName = ".gauntlet"
)

const initLongDesc string = `Initialize a new .gauntlet/ directory in the current working directory.

Creates a local .gauntlet/ directory that takes precedence over the default
~/.gauntlet/ directory for the memory database, configuration, credentials,
and generated prompt artifacts.

This is useful for maintaining separate gauntlet state per project or
directory.

With --preset, a starter config.toml for the named provider stack is
written into the new directory.

Examples:
  gauntlet init
  gauntlet init --preset openai
  gauntlet init --preset gemini`

const initShortDesc string = "Initialize a local .gauntlet/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "",
		fmt.Sprintf("Write a starter config for a provider stack (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return writePreset(dir, preset)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .gauntlet directory: %w", err)
	}

	fmt.Printf("Initialized .gauntlet directory: %s\n", dir)
	return writePreset(dir, preset)
}

func writePreset(dir, preset string) error {
	if preset == "" {
		return nil
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing preset config: %w", err)
	}

	fmt.Printf("Wrote %s preset to %s\n", strings.ToLower(preset), filepath.Join(dir, "config.toml"))
	return nil
}
