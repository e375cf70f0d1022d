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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"xlabel/internal/domain"
	"xlabel/internal/export"
	"xlabel/internal/imagesource"
	"xlabel/internal/storage"
	"xlabel/internal/ui"
)

// labelIndex is implemented by stores that index documents by label name.
type labelIndex interface {
	ImagesWithLabel(ctx context.Context, label string) ([]string, error)
}

// withStore opens the configured document store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(context.Context, storage.DocumentStore) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, closeFn, err := ui.OpenStore(ctx, a.cfg, a.password)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, st)
}

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage documents in the local database or the shared backend",
		Long: `Works on the SQLite database in the config directory, or on PostgreSQL
when backend.dsn is configured.`,
	}
	cmd.AddCommand(
		newStorePutCmd(a),
		newStoreGetCmd(a),
		newStoreListCmd(a),
		newStoreDeleteCmd(a),
		newStoreLabelsCmd(a),
		newStoreSnapshotsCmd(a),
		newStoreThumbCmd(a),
	)
	return cmd
}

func newStorePutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <document.json>...",
		Short: "Import JSON documents into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				for _, path := range args {
					doc, _, err := storage.OpenFile(path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					if p := doc.Image.Path; p != "" && !filepath.IsAbs(p) {
						doc.Image.Path = filepath.Join(filepath.Dir(path), p)
					}
					if abs, err := filepath.Abs(doc.Image.Path); err == nil && doc.Image.Path != "" {
						doc.Image.Path = abs
					}
					if err := st.Put(ctx, &doc); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", doc.ID, doc.Image.Path)
				}
				return nil
			})
		},
	}
}

func newStoreGetCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get <id|image path>",
		Short: "Print or write a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				doc, err := lookup(ctx, st, args[0])
				if err != nil {
					return err
				}
				if out != "" {
					return storage.SaveFile(out, doc)
				}
				data, err := domain.Marshal(doc)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to this JSON file")
	return cmd
}

// lookup tries key as a document ID first and as an image path second.
func lookup(ctx context.Context, st storage.DocumentStore, key string) (domain.Document, error) {
	doc, err := st.Get(ctx, key)
	if !errors.Is(err, storage.ErrNotFound) {
		return doc, err
	}
	if abs, aerr := filepath.Abs(key); aerr == nil {
		if doc, err := st.GetByImage(ctx, abs); !errors.Is(err, storage.ErrNotFound) {
			return doc, err
		}
	}
	doc, err = st.GetByImage(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return doc, fmt.Errorf("%s: %w", key, err)
	}
	return doc, err
}

func newStoreListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				list, err := st.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(list)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSHAPES\tUPDATED\tIMAGE")
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.ID, s.ShapeCount, s.UpdatedAt.Local().Format(time.DateTime), s.ImagePath)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStoreDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				var errs []error
				for _, id := range args {
					if err := st.Delete(ctx, id); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", id, err))
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newStoreLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels <label>",
		Short: "List images that carry a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				idx, ok := st.(labelIndex)
				if !ok {
					return errors.New("label lookup needs the postgres backend")
				}
				paths, err := idx.ImagesWithLabel(ctx, args[0])
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			})
		},
	}
}

func newStoreSnapshotsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "snapshots <id|image path>",
		Short: "Show the saved history of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				db, ok := st.(*storage.DB)
				if !ok {
					return errors.New("snapshots are kept in the local database only")
				}
				doc, err := lookup(ctx, db, args[0])
				if err != nil {
					return err
				}
				snaps, err := db.ListSnapshots(ctx, doc.ID, limit)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d shapes\n", s.TS.Local().Format(time.DateTime), len(s.Doc.Shapes))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

func newStoreThumbCmd(a *app) *cobra.Command {
	var (
		out  string
		size int
	)
	cmd := &cobra.Command{
		Use:   "thumb <id|image path>",
		Short: "Write a cached PNG preview of an annotated image",
		Long: `Renders the document over its image and scales it to fit size×size. Previews
are cached in the local database; the cache is capped by ` + storage.EnvPreviewsMaxBytes + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				return fmt.Errorf("invalid size %d", size)
			}
			return a.withStore(cmd, func(ctx context.Context, st storage.DocumentStore) error {
				db, ok := st.(*storage.DB)
				if !ok {
					return errors.New("previews are cached in the local database only")
				}
				doc, err := lookup(ctx, db, args[0])
				if err != nil {
					return err
				}
				blob, err := db.GetOrCreatePreview(ctx, doc.ID, size, size, func(context.Context) ([]byte, error) {
					bg, err := imagesource.New().Image(doc.Image.Path)
					if err != nil {
						a.log.Warn("preview without background", "image", doc.Image.Path, "err", err)
						bg = nil
					}
					img, err := export.Render(doc, bg, a.exportOptions(false))
					if err != nil {
						return nil, err
					}
					return storage.Thumbnail(img, size, size)
				})
				if err != nil {
					return err
				}
				return os.WriteFile(out, blob, 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "thumb.png", "output PNG file")
	cmd.Flags().IntVar(&size, "size", 256, "maximum width and height")
	return cmd
}
