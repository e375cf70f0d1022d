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
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"xlabel/internal/domain"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

func sampleDoc() domain.Document {
	return domain.Document{
		Version: domain.DocumentVersion,
		Image:   domain.Image{Path: "photos/street.png", Width: 200, Height: 100},
		Pixmap:  &domain.Pixmap{Width: 100, Height: 50},
		Shapes: []domain.ShapeDoc{
			{Key: "#ff0000", Type: shape.Rectangle, Points: []geom.Point{geom.Pt(10, 10), geom.Pt(40, 30)}, Closed: true, Visible: true, Label: shape.LabelInfo{LabelName: "car"}},
			{Key: "#0000ff", Type: shape.Linestrip, Points: []geom.Point{geom.Pt(60, 5), geom.Pt(90, 5), geom.Pt(90, 45)}, Closed: true, Visible: true},
			{Key: "#00ff00", Type: shape.Circle, Points: []geom.Point{geom.Pt(70, 30), geom.Pt(75, 30)}, Closed: true, Visible: false},
		},
	}
}

func TestRenderScalesPixmapToImage(t *testing.T) {
	img, err := Render(sampleDoc(), nil, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("size = %v", b)
	}
	// rectangle (10,10)-(40,30) in pixmap is (20,20)-(80,60) in the image
	inside := img.NRGBAAt(50, 40)
	if inside.A == 0 || inside.G == 0 {
		t.Fatalf("rectangle interior should carry the fill tint, got %v", inside)
	}
	if out := img.NRGBAAt(150, 90); out.A != 0 {
		t.Fatalf("outside pixel should stay transparent, got %v", out)
	}
	// the hidden circle at (140,60) r=10 is skipped
	if c := img.NRGBAAt(140, 60); c.A != 0 {
		t.Fatalf("hidden shape drawn: %v", c)
	}
}

func TestRenderUsesBackground(t *testing.T) {
	bg := imaging.New(50, 25, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := Render(sampleDoc(), bg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c := img.NRGBAAt(199, 99); c.A != 255 || c.B < 28 || c.B > 32 {
		t.Fatalf("background not stretched to image size: %v", c)
	}
}

func TestRenderWithoutSizeFails(t *testing.T) {
	if _, err := Render(domain.Document{}, nil, Options{}); !errors.Is(err, ErrNoSize) {
		t.Fatalf("expected ErrNoSize, got %v", err)
	}
}

func TestWritePNGDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, sampleDoc(), nil, Options{Labels: true}); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := imaging.Decode(&buf)
	if err != nil || img.Bounds().Dx() != 200 {
		t.Fatalf("decode: %v", err)
	}
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	doc := sampleDoc()
	doc.Shapes[0].Label.LabelName = "a<b & c"
	if err := WriteSVG(&buf, doc, SVGOptions{Options: Options{Labels: true}, ImageHref: "street.png"}); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`viewBox="0 0 200 100"`,
		`<polygon points="20,20 80,20 80,60 20,60"`,
		`<polyline points="120,10 180,10 180,90"`,
		`xlink:href="street.png"`,
		`a&lt;b &amp; c`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<circle") {
		t.Fatalf("hidden circle must be skipped")
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	bg := imaging.New(200, 100, color.White)
	if err := WritePDF(&buf, sampleDoc(), bg, Options{Labels: true}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
}

func TestBatchPresets(t *testing.T) {
	out := t.TempDir()
	docs := []domain.Document{sampleDoc()}
	loads := 0
	images := func(string) (image.Image, error) {
		loads++
		return imaging.New(200, 100, color.White), nil
	}
	written, err := Batch(docs, BatchOptions{Preset: PresetWeb, OutDir: out, Images: images})
	if err != nil {
		t.Fatalf("Batch web: %v", err)
	}
	want := []string{filepath.Join(out, "png", "street.png"), filepath.Join(out, "svg", "street.svg")}
	if len(written) != 2 || written[0] != want[0] || written[1] != want[1] || loads != 1 {
		t.Fatalf("written = %v, loads = %d", written, loads)
	}
	for _, p := range written {
		if st, err := os.Stat(p); err != nil || st.Size() == 0 {
			t.Fatalf("missing output %s: %v", p, err)
		}
	}
	if _, err := Batch(docs, BatchOptions{Formats: []string{"cbz"}, OutDir: out}); err == nil {
		t.Fatalf("unknown format must fail")
	}
	if _, err := Batch(nil, BatchOptions{}); err == nil {
		t.Fatalf("empty batch must fail")
	}
}
