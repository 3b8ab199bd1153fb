package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"corectx/internal/config"
	"corectx/internal/envelope"
	"corectx/internal/errs"
)

var (
	configFormat string
	configInPath string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "inspect and edit repository configuration",
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "print the effective configuration as json, yaml, or toml",
	Run:   runConfigExport,
}

var configImportCmd = &cobra.Command{
	Use:   "import",
	Short: "validate and save a TOML configuration file",
	Run:   runConfigImport,
}

func init() {
	configExportCmd.Flags().StringVar(&configFormat, "as", "json", "json, yaml, or toml")
	configImportCmd.Flags().StringVar(&configInPath, "file", "-", "TOML config file, or - for stdin")

	configCmd.AddCommand(configExportCmd, configImportCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigExport(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)

	data, err := cfg.Export(config.Format(configFormat))
	if err != nil {
		emit(envelope.SchemaConfig, nil, err)
		return
	}
	emit(envelope.SchemaConfig, map[string]string{"format": configFormat, "config": string(data)}, nil)
}

func runConfigImport(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()

	var data []byte
	var err error
	if configInPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(configInPath)
	}
	if err != nil {
		emit(envelope.SchemaConfig, nil, errs.RepoErr("reading config: %v", err))
		return
	}

	cfg, err := config.ParseTOML(data)
	if err != nil {
		emit(envelope.SchemaConfig, nil, errs.Invalid("parsing TOML: %v", err))
		return
	}
	if err := cfg.Save(repoRoot); err != nil {
		emit(envelope.SchemaConfig, nil, err)
		return
	}
	emit(envelope.SchemaConfig, cfg, nil)
}
