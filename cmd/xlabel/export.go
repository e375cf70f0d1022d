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
	"image"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"xlabel/internal/domain"
	"xlabel/internal/export"
	"xlabel/internal/imagesource"
	"xlabel/internal/storage"
)

func (a *app) exportOptions(labels bool) export.Options {
	opts, _ := a.cfg.EngineOptions()
	return export.Options{Style: opts.Style, Labels: labels}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		preset  string
		formats []string
		outDir  string
		noLabel bool
		hidden  bool
	)
	cmd := &cobra.Command{
		Use:   "export <document.json>...",
		Short: "Render documents over their images as PNG, SVG or PDF",
		Long: `Writes OUT/<format>/<image name>.<format> for every document. Image paths
stored relative in a document are resolved against the document's folder.

Presets: web (png, svg) and print (pdf).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := export.PresetName(strings.ToLower(preset))
			if p != export.PresetWeb && p != export.PresetPrint {
				return fmt.Errorf("unknown preset %q", preset)
			}
			docs := make([]domain.Document, 0, len(args))
			for _, path := range args {
				doc, fromBackup, err := storage.OpenFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if fromBackup {
					a.log.Warn("document unreadable, using latest backup", "path", path)
				}
				if doc.Image.Path != "" && !filepath.IsAbs(doc.Image.Path) {
					doc.Image.Path = filepath.Join(filepath.Dir(path), doc.Image.Path)
				}
				docs = append(docs, doc)
			}
			opts := a.exportOptions(!noLabel)
			opts.Hidden = hidden
			images := imagesource.New()
			written, err := export.Batch(docs, export.BatchOptions{
				Preset:  p,
				Formats: formats,
				OutDir:  outDir,
				Options: opts,
				Images:  func(path string) (image.Image, error) { return images.Image(path) },
			})
			for _, w := range written {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetWeb), "export preset: web or print")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "formats to write (png, svg, pdf); default from preset")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default exports/<preset>)")
	cmd.Flags().BoolVar(&noLabel, "no-labels", false, "do not print label names")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "include hidden shapes")
	return cmd
}
