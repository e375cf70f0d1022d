/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package imagesource loads annotation images from disk and reports their
// natural size to the engine.
//
// Decoding goes through imaging with EXIF auto-orientation, so a portrait JPEG
// taken on a phone reports the dimensions the user actually sees. BMP, TIFF and
// WebP decoders are registered in addition to the standard formats.
package imagesource

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"xlabel/internal/engine"
	applog "xlabel/internal/log"
)

// FileSource decodes images from the file system and caches them by path.
// It is safe for concurrent use.
type FileSource struct {
	mu     sync.RWMutex
	images map[string]image.Image
	// inflight collects callbacks waiting for a path that is being decoded.
	inflight map[string][]func(int, int, error)
	log      *slog.Logger
}

var _ engine.ImageSource = (*FileSource)(nil)

func New() *FileSource {
	return &FileSource{
		images:   make(map[string]image.Image),
		inflight: make(map[string][]func(int, int, error)),
		log:      applog.WithComponent("imagesource"),
	}
}

// Load reports the size of the image at path. A cached image completes
// synchronously; otherwise the file is decoded on a new goroutine and done is
// called from there. Concurrent loads of one path share a single decode.
func (s *FileSource) Load(path string, done func(width, height int, err error)) {
	s.mu.Lock()
	if img, ok := s.images[path]; ok {
		s.mu.Unlock()
		b := img.Bounds()
		done(b.Dx(), b.Dy(), nil)
		return
	}
	waiting, busy := s.inflight[path]
	s.inflight[path] = append(waiting, done)
	s.mu.Unlock()
	if busy {
		return
	}
	go s.decode(path)
}

func (s *FileSource) decode(path string) {
	img, err := decodeFile(path)
	s.mu.Lock()
	if err == nil {
		s.images[path] = img
	}
	waiters := s.inflight[path]
	delete(s.inflight, path)
	s.mu.Unlock()

	w, h := 0, 0
	if err != nil {
		s.log.Warn("image load failed", slog.String("path", path), slog.Any("err", err))
	} else {
		b := img.Bounds()
		w, h = b.Dx(), b.Dy()
		s.log.Debug("image decoded", slog.String("path", path), slog.Int("w", w), slog.Int("h", h))
	}
	for _, fn := range waiters {
		fn(w, h, err)
	}
}

// Image returns the decoded image, loading it synchronously on a cache miss.
func (s *FileSource) Image(path string) (image.Image, error) {
	s.mu.RLock()
	img, ok := s.images[path]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.images[path] = img
	s.mu.Unlock()
	return img, nil
}

// Cached reports whether path is already decoded.
func (s *FileSource) Cached(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[path]
	return ok
}

func (s *FileSource) Evict(path string) {
	s.mu.Lock()
	delete(s.images, path)
	s.mu.Unlock()
}

func (s *FileSource) Clear() {
	s.mu.Lock()
	s.images = make(map[string]image.Image)
	s.mu.Unlock()
}

func decodeFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("load image %s: empty image", path)
	}
	return img, nil
}

// Fixed reports the same size for every path without reading files.
type Fixed struct{ Width, Height int }

var _ engine.ImageSource = Fixed{}

func (f Fixed) Load(_ string, done func(width, height int, err error)) {
	if f.Width <= 0 || f.Height <= 0 {
		done(0, 0, fmt.Errorf("fixed size %dx%d is not positive", f.Width, f.Height))
		return
	}
	done(f.Width, f.Height, nil)
}
