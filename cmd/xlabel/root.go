/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"xlabel/internal/config"
	applog "xlabel/internal/log"
	"xlabel/internal/version"
)

// app carries what PersistentPreRunE loaded for the subcommands.
type app struct {
	cfg      config.AppConfig
	password string
	log      *slog.Logger

	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "xlabel",
		Short: "Image annotation editor",
		Long: `Draw and edit labelled shapes (rectangles, circles, polygons, line strips,
lines and points) on images, store them locally or in PostgreSQL, and export
annotated PNG, SVG and PDF files.

Examples:
  xlabel ui photos/                         # annotate every image in a folder
  xlabel replay session.yaml -o doc.json    # run a gesture script headlessly
  xlabel export doc.json --preset web       # render annotations over the image
  xlabel store list                         # list saved documents`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: per-user config dir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(),
		newInfoCmd(a),
		newReplayCmd(a),
		newExportCmd(a),
		newStoreCmd(a),
		newConfigCmd(a),
		newUICmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	if a.configPath != "" {
		if err := os.Setenv(config.EnvConfigPath, a.configPath); err != nil {
			return err
		}
	}
	cfg, pw, err := config.Load()
	opts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   cmd.ErrOrStderr(),
	}
	if a.verbose {
		opts.Level = "debug"
	}
	applog.Init(opts)
	a.log = applog.WithComponent("cli")
	if err != nil {
		return err
	}
	a.cfg, a.password = cfg, pw
	a.log.Debug("start", slog.String("cmd", cmd.CommandPath()))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "xlabel "+version.String())
		},
	}
}
