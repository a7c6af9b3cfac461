package cmd

import (
	"fmt"
	"os"

	"grimm.is/netguard/internal/config"
)

// RunConfigInit writes a configuration file populated with defaults.
func RunConfigInit(path string, force bool) error {
	path = configPath(path)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := config.SaveFile(cfg, path); err != nil {
		return err
	}
	Printer.Printf("Wrote default configuration to %s\n", path)
	return nil
}
