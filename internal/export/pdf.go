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
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"

	"xlabel/internal/domain"
	"xlabel/internal/geom"
)

// WritePDF writes doc as a one-page PDF. One PDF point equals one image pixel.
func WritePDF(w io.Writer, doc domain.Document, bg image.Image, opt Options) error {
	iw, ih, err := outputSize(doc, bg)
	if err != nil {
		return err
	}
	pw, ph := float64(iw), float64(ih)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Image.Path, true)
	pdf.SetCreator("xlabel", true)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: pw, Ht: ph})

	if bg != nil {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, bg, imaging.PNG); err != nil {
			return fmt.Errorf("encode background: %w", err)
		}
		imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("background", imgOpt, &buf)
		pdf.ImageOptions("background", 0, 0, pw, ph, false, imgOpt, 0, "")
	}

	pal := opt.palette()
	tf := scaleBy(doc.ToImage())
	pdf.SetFont("Helvetica", "", 10)
	for _, sd := range doc.Shapes {
		if !sd.Visible && !opt.Hidden {
			continue
		}
		s := sd.Shape()
		stroke, fill := pal.forShape(s)
		pts, closed := outline(s, tf)
		if closed && fill.A > 0 {
			setFillColor(pdf, fill)
			pdf.SetAlpha(float64(fill.A)/255, "Normal")
			pdf.Polygon(pdfPoints(pts), "F")
			pdf.SetAlpha(1, "Normal")
		}
		setDrawColor(pdf, stroke)
		pdf.SetLineWidth(pal.lineWidth)
		switch {
		case closed:
			pdf.Polygon(pdfPoints(pts), "D")
		case len(pts) > 1:
			for i := 1; i < len(pts); i++ {
				pdf.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
			}
		}
		if vs := pal.vertexBox; vs > 0 {
			setFillColor(pdf, stroke)
			for _, p := range s.Points {
				q := tf(p)
				pdf.Rect(q.X-vs/2, q.Y-vs/2, vs, vs, "F")
			}
		}
		if opt.Labels && s.Label.LabelName != "" && len(s.Points) > 0 {
			at := tf(s.Points[0])
			pdf.SetTextColor(int(stroke.R), int(stroke.G), int(stroke.B))
			pdf.Text(at.X+pal.vertexBox, at.Y-pal.vertexBox, s.Label.LabelName)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfPoints(pts []geom.Point) []gofpdf.PointType {
	out := make([]gofpdf.PointType, len(pts))
	for i, p := range pts {
		out[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	return out
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.NRGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.NRGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
