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
	"github.com/spf13/cobra"

	"xlabel/internal/ui"
)

func newUICmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ui [image|folder]",
		Short: "Open the annotation editor",
		Long: `Opens the editor window. A folder argument loads every image in it as a
playlist; annotations are saved to the store when switching images.

The window needs a build with -tags fyne and cgo enabled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return ui.Run(target)
		},
	}
}
