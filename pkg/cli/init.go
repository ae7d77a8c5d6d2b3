package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wisp-engine/wisp/pkg/config"
)

func newInitCmd() *cobra.Command {
	var force bool
	var withScene bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Wisp configuration",
		Long: `Create a starter wisp.config.json in the project root, and optionally an
example scene to go with it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force, withScene)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().BoolVar(&withScene, "scene", false, "also write an example scene file")

	return cmd
}

func runInit(force, withScene bool) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = filepath.Join(projectRoot, "wisp.config.json")
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists. Use --force to overwrite")
	}

	manager := config.NewManager()
	cfg := manager.GetDefaultConfig()

	if withScene {
		cfg.ScenePath = "scene.yaml"
	}

	if err := manager.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	printSuccess(fmt.Sprintf("Created configuration at %s", configPath))

	if withScene {
		scenePath := filepath.Join(projectRoot, "scene.yaml")
		if _, err := os.Stat(scenePath); err == nil && !force {
			printWarning("scene.yaml already exists, leaving it in place")
		} else if err := os.WriteFile(scenePath, []byte(exampleScene), 0o644); err != nil {
			return fmt.Errorf("failed to write scene: %w", err)
		} else {
			printSuccess(fmt.Sprintf("Created example scene at %s", scenePath))
		}
	}

	printInfo("Edit the configuration to customize the world and frame budget")
	return nil
}

const exampleScene = `name: example
bodies:
  - id: 1
    name: drifter
    position: {x: -200, y: 0}
    velocity: {x: 40, y: 10}
    shape: circle
    radius: 12
  - id: 2
    name: floater
    position: {x: 200, y: 20}
    velocity: {x: -35, y: 0}
    shape: circle
    radius: 16
  - id: 3
    name: block
    position: {x: 0, y: -40}
    shape: box
    width: 60
    height: 24
`
