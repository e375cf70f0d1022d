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
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"xlabel/internal/domain"
	"xlabel/internal/imagesource"
	"xlabel/internal/storage"
)

// fileInfo is printed by "xlabel info".
type fileInfo struct {
	Path       string         `json:"path"`
	Image      string         `json:"image,omitempty"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Shapes     int            `json:"shapes"`
	ByType     map[string]int `json:"by_type,omitempty"`
	Labels     []string       `json:"labels,omitempty"`
	FromBackup bool           `json:"from_backup,omitempty"`
}

func newInfoCmd(_ *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <document.json|image>",
		Short: "Describe an annotation document or an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := describe(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "File:   %s\n", info.Path)
			if info.Image != "" {
				fmt.Fprintf(out, "Image:  %s\n", info.Image)
			}
			fmt.Fprintf(out, "Size:   %dx%d\n", info.Width, info.Height)
			if info.FromBackup {
				fmt.Fprintln(out, "Note:   file was unreadable, showing latest backup")
			}
			if info.Image == "" {
				return nil
			}
			fmt.Fprintf(out, "Shapes: %d\n", info.Shapes)
			for _, t := range sortedKeys(info.ByType) {
				fmt.Fprintf(out, "  %-10s %d\n", t, info.ByType[t])
			}
			if len(info.Labels) > 0 {
				fmt.Fprintf(out, "Labels: %s\n", strings.Join(info.Labels, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func describe(path string) (fileInfo, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		doc, fromBackup, err := storage.OpenFile(path)
		if err != nil {
			return fileInfo{}, err
		}
		info := docSummary(doc)
		info.Path, info.FromBackup = path, fromBackup
		return info, nil
	}
	img, err := imagesource.New().Image(path)
	if err != nil {
		return fileInfo{}, err
	}
	b := img.Bounds()
	return fileInfo{Path: path, Width: b.Dx(), Height: b.Dy()}, nil
}

func docSummary(doc domain.Document) fileInfo {
	info := fileInfo{
		Image:  doc.Image.Path,
		Width:  doc.Image.Width,
		Height: doc.Image.Height,
		Shapes: len(doc.Shapes),
		ByType: map[string]int{},
		Labels: doc.Labels(),
	}
	for _, s := range doc.Shapes {
		info.ByType[string(s.Type)]++
	}
	return info
}
