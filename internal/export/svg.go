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
	"io"
	"strings"

	"xlabel/internal/domain"
	"xlabel/internal/geom"
	"xlabel/internal/shape"
)

// SVGOptions adds an optional background reference to Options. The SVG uses
// natural image pixels as its coordinate system.
type SVGOptions struct {
	Options
	// ImageHref is written as an <image> under the shapes when set.
	ImageHref string
}

// WriteSVG writes doc as a standalone SVG document.
func WriteSVG(w io.Writer, doc domain.Document, opt SVGOptions) error {
	iw, ih, err := outputSize(doc, nil)
	if err != nil {
		return err
	}
	pal := opt.palette()
	tf := scaleBy(doc.ToImage())

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %d %d\">\n", iw, ih, iw, ih)
	if opt.ImageHref != "" {
		wf("  <image x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" xlink:href=\"%s\"/>\n", iw, ih, escAttr(opt.ImageHref))
	}
	for _, sd := range doc.Shapes {
		if !sd.Visible && !opt.Hidden {
			continue
		}
		s := sd.Shape()
		stroke, fill := pal.forShape(s)
		pts, closed := outline(s, tf)
		wf("  <g id=\"%s\" data-type=\"%s\">\n", escAttr(s.ColorKey), s.Type)
		paint := fmt.Sprintf("stroke=\"%s\" stroke-width=\"%g\"", cssColor(stroke), pal.lineWidth)
		switch {
		case s.Type == shape.Circle && len(s.Points) >= 2:
			c, r := tf(s.Points[0]), geom.Distance(tf(s.Points[0]), tf(s.Points[1]))
			wf("    <circle cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\" fill-opacity=\"%.3f\" %s/>\n", c.X, c.Y, r, cssColor(fill), float64(fill.A)/255, paint)
		case closed:
			wf("    <polygon points=\"%s\" fill=\"%s\" fill-opacity=\"%.3f\" %s/>\n", svgPoints(pts), cssColor(fill), float64(fill.A)/255, paint)
		case len(pts) > 1:
			wf("    <polyline points=\"%s\" fill=\"none\" %s/>\n", svgPoints(pts), paint)
		}
		if vs := pal.vertexBox; vs > 0 {
			for _, p := range s.Points {
				q := tf(p)
				wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", q.X-vs/2, q.Y-vs/2, vs, vs, cssColor(stroke))
			}
		}
		if opt.Labels && s.Label.LabelName != "" && len(s.Points) > 0 {
			at := tf(s.Points[0])
			wf("    <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"12\" fill=\"%s\">%s</text>\n", at.X+pal.vertexBox, at.Y-pal.vertexBox, cssColor(stroke), escText(s.Label.LabelName))
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func svgPoints(pts []geom.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%g,%g", p.X, p.Y)
	}
	return strings.Join(parts, " ")
}

func escAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "\"", "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	return r.Replace(s)
}

func escText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
