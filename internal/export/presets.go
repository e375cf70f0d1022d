/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"xlabel/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls exporting many documents in several formats.
//
// Files are written to OutDir/<format>/<image base name>.<format>.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // pdf, png, svg; empty means preset defaults
	OutDir  string
	Options Options
	// Images loads the background for a document. Nil draws shapes only.
	Images func(path string) (image.Image, error)
}

// Batch exports every document and returns the written paths.
func Batch(docs []domain.Document, opt BatchOptions) ([]string, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("nothing to export")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := opt.OutDir
	if base == "" {
		base = filepath.Join("exports", string(opt.Preset))
	}
	var written []string
	for _, doc := range docs {
		var bg image.Image
		if opt.Images != nil && doc.Image.Path != "" {
			img, err := opt.Images(doc.Image.Path)
			if err != nil {
				return written, fmt.Errorf("background for %s: %w", doc.Image.Path, err)
			}
			bg = img
		}
		name := strings.TrimSuffix(filepath.Base(doc.Image.Path), filepath.Ext(doc.Image.Path))
		if name == "" || name == "." {
			name = doc.ID
		}
		for _, f := range formats {
			f = strings.ToLower(strings.TrimSpace(f))
			out := filepath.Join(base, f, name+"."+f)
			if err := exportOne(out, f, doc, bg, opt); err != nil {
				return written, fmt.Errorf("%s %s: %w", f, doc.Image.Path, err)
			}
			written = append(written, out)
		}
	}
	return written, nil
}

func exportOne(path, format string, doc domain.Document, bg image.Image, opt BatchOptions) (err error) {
	switch format {
	case "png", "svg", "pdf":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	switch format {
	case "png":
		return WritePNG(f, doc, bg, opt.Options)
	case "svg":
		href := ""
		if bg != nil {
			href = doc.Image.Path
		}
		return WriteSVG(f, doc, SVGOptions{Options: opt.Options, ImageHref: href})
	default:
		return WritePDF(f, doc, bg, opt.Options)
	}
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"png"}
	}
}
