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
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"

	"github.com/disintegration/imaging"

	"xlabel/internal/domain"
)

// ErrNoSize is returned when neither the document nor a background image
// gives an output size.
var ErrNoSize = errors.New("export: document has no image size")

// outputSize is the natural image size, falling back to bg and then to the
// pixmap.
func outputSize(doc domain.Document, bg image.Image) (int, int, error) {
	if doc.Image.Width > 0 && doc.Image.Height > 0 {
		return doc.Image.Width, doc.Image.Height, nil
	}
	if bg != nil {
		b := bg.Bounds()
		return b.Dx(), b.Dy(), nil
	}
	if doc.Pixmap != nil {
		return int(math.Ceil(doc.Pixmap.Width)), int(math.Ceil(doc.Pixmap.Height)), nil
	}
	return 0, 0, ErrNoSize
}

// Render draws doc at natural image resolution, over bg when given.
func Render(doc domain.Document, bg image.Image, opt Options) (*image.NRGBA, error) {
	w, h, err := outputSize(doc, bg)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if bg != nil {
		if b := bg.Bounds(); b.Dx() != w || b.Dy() != h {
			bg = imaging.Resize(bg, w, h, imaging.Lanczos)
		}
		draw.Draw(img, img.Bounds(), bg, bg.Bounds().Min, draw.Src)
	}
	pal := opt.palette()
	c := newCanvas(img)
	tf := scaleBy(doc.ToImage())
	for _, sd := range doc.Shapes {
		if !sd.Visible && !opt.Hidden {
			continue
		}
		c.drawShape(sd.Shape(), tf, pal, opt.Labels)
	}
	return img, nil
}

// WritePNG renders doc and encodes it as PNG.
func WritePNG(w io.Writer, doc domain.Document, bg image.Image, opt Options) error {
	img, err := Render(doc, bg, opt)
	if err != nil {
		return err
	}
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
