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
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"xlabel/internal/domain"
	"xlabel/internal/engine"
	"xlabel/internal/export"
	"xlabel/internal/imagesource"
	"xlabel/internal/keymap"
	applog "xlabel/internal/log"
	"xlabel/internal/script"
	"xlabel/internal/storage"
)

func newReplayCmd(a *app) *cobra.Command {
	var out, pngOut string
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a gesture script and print the resulting document",
		Long: `Replays pointer, wheel and keyboard steps from a YAML script against the
editor engine without a display. The image path in the script is relative to
the script file. With "size" set the image file is not needed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sc, perrs := script.Parse(data)
			if len(perrs) > 0 {
				errs := make([]error, 0, len(perrs))
				for _, e := range perrs {
					errs = append(errs, fmt.Errorf("%s:%w", args[0], e))
				}
				return errors.Join(errs...)
			}
			doc, bg, err := a.replay(sc, filepath.Dir(args[0]), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if out != "" {
				if err := storage.SaveFile(out, doc); err != nil {
					return err
				}
			} else {
				body, err := domain.Marshal(doc)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(body)); err != nil {
					return err
				}
			}
			if pngOut != "" {
				return writePNGFile(pngOut, doc, bg, a)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to this JSON file instead of stdout")
	cmd.Flags().StringVar(&pngOut, "png", "", "also render the result to this PNG file")
	return cmd
}

// replay builds an engine for sc and plays its steps. The returned image is
// the background, nil when only a size was scripted and the file is missing.
func (a *app) replay(sc script.Script, base string, warn io.Writer) (domain.Document, image.Image, error) {
	imgPath := sc.Image
	if imgPath != "" && !filepath.IsAbs(imgPath) {
		imgPath = filepath.Join(base, imgPath)
	}
	var src engine.ImageSource
	files := imagesource.New()
	bg, imgErr := files.Image(imgPath)
	w, h := sc.Width, sc.Height
	switch {
	case w > 0 && h > 0:
		src = imagesource.Fixed{Width: w, Height: h}
	case imgErr != nil:
		return domain.Document{}, nil, fmt.Errorf("load image: %w", imgErr)
	default:
		src = files
		w, h = bg.Bounds().Dx(), bg.Bounds().Dy()
	}

	opts, err := a.cfg.EngineOptions()
	if err != nil {
		a.log.Warn("editor config", slog.Any("err", err))
	}
	opts.Logger = applog.WithComponent("engine")
	opts.OnError = func(msg string) { fmt.Fprintln(warn, "warning:", msg) }
	surface := sc.Surface
	if surface.Width <= 0 {
		surface.Width = float64(w)
	}
	if surface.Height <= 0 {
		surface.Height = float64(h)
	}
	raster := export.NewRaster(int(surface.Width), int(surface.Height), export.Options{Style: opts.Style})
	if imgErr == nil {
		raster.SetBackground(bg)
	} else {
		bg = nil
	}
	e := engine.New(opts, raster, src)
	e.SetSurface(surface)
	done := make(chan error, 1)
	e.SetImg(imgPath, func(err error) { done <- err })
	if err := <-done; err != nil {
		return domain.Document{}, nil, err
	}

	keys := keymap.Default()
	if err := keys.Apply(a.cfg.Shortcuts); err != nil {
		a.log.Warn("shortcuts", slog.Any("err", err))
	}
	if err := script.Play(e, keys, raster.HitAt, sc.Steps); err != nil {
		fmt.Fprintln(warn, "warning:", err)
	}
	a.log.Debug("replayed", slog.Int("steps", len(sc.Steps)), slog.Int("shapes", e.Len()))
	return domain.FromData(e.GetData()), bg, nil
}

func writePNGFile(path string, doc domain.Document, bg image.Image, a *app) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.WritePNG(f, doc, bg, a.exportOptions(true))
}
