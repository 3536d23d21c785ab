package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"openproxy/internal/config"
	"openproxy/internal/logger"
)

const (
	Version = "1.0.0"
	Banner  = `
 ___  ___  ___ _ _  ___ ___  ___ __ __ _ _
/ . \| . \| __| \ || . \ . \/ . \\ \ /| | |
| | ||  _/| _||   ||  _/   /| | | \ / \   /
\___/|_|  |___|_\_||_| |_\_\\___//_/\_\|_|

OpenProxy - proxy parser, checker and crawler v%s
`
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
}

// loadConfig reads the configuration once and initialises logging from it.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	config.PrintConfig(cfg)
	a.cfg = cfg
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "openproxy",
		Short:         "Parse, check and crawl proxy lists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "configuration file path")

	root.AddCommand(
		newParseCmd(a),
		newCheckCmd(a),
		newCrawlCmd(a),
		newVersionCmd(),
		newConfigCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), Banner, Version)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.SaveConfigTemplate(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default config generated: %s\n", path)
			return nil
		},
	})
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
