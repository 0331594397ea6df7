/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/backend"
	"gostorystudio/internal/config"
	"gostorystudio/internal/crash"
	"gostorystudio/internal/domain"
	"gostorystudio/internal/export"
	applog "gostorystudio/internal/log"
	"gostorystudio/internal/storage"
	"gostorystudio/internal/telemetry"
	"gostorystudio/internal/ui"
	"gostorystudio/internal/version"
)

func usage() {
	fmt.Println("StoryStudio, a scene compositor and video exporter")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  storystudio version|-v|--version           Show version")
	fmt.Println("  storystudio init <topic>                    Create a new story in the library")
	fmt.Println("  storystudio list                            List stories in the library")
	fmt.Println("  storystudio show <id>                       Print a story summary")
	fmt.Println("  storystudio delete <id>                     Remove a story from the library")
	fmt.Println("  storystudio import <file.json>              Import a story document into the library")
	fmt.Println("  storystudio export-json <id> [out.json]     Write a story as an interchange document")
	fmt.Println("  storystudio login <api-key>                 Store the generation backend API key")
	fmt.Println("  storystudio logout                          Remove the stored API key")
	fmt.Println("  storystudio narrate <id>                    Synthesize narration for scenes without audio")
	fmt.Println("  storystudio publish <id>                    Publish a story to the shared library")
	fmt.Println("  storystudio shared                          List stories in the shared library")
	fmt.Println("  storystudio fetch <id>                      Copy a shared story into the local library")
	fmt.Println("  storystudio render <id>                     Export a story to video")
	fmt.Println("  storystudio ui [<id>]                       Launch the desktop editor (build with -tags fyne)")
}

func main() {
	// .env feeds the GSS_* environment during development
	_ = godotenv.Load()
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")

	var lib *storage.Library
	var story *domain.Story
	defer func() { crash.Recover(lib, story) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) <= 1 {
		usage()
		return
	}

	cfg, apiKey, err := config.Load()
	if err != nil {
		fail(l, "load config", err)
	}
	libDir := cfg.General.LibraryDir
	if libDir == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			fail(l, "resolve home dir", herr)
		}
		libDir = filepath.Join(home, "StoryStudio")
	}

	openLib := func() *storage.Library {
		lb, err := storage.OpenLibrary(libDir)
		if err != nil {
			fail(l, "open library", err)
		}
		lib = lb
		return lb
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("StoryStudio")
		fmt.Println(version.String())

	case "init":
		if len(args) < 3 {
			fmt.Println("init requires <topic>")
			usage()
			os.Exit(2)
		}
		lb := openLib()
		story = &domain.Story{
			ID:       domain.NewID(),
			Topic:    args[2],
			Segments: []domain.Scene{domain.NewScene()},
		}
		if err := lb.Save(story); err != nil {
			fail(l, "save story", err)
		}
		if err := indexStory(lb, story); err != nil {
			l.Warn("index update failed", slog.Any("err", err))
		}
		telemetry.Event("story_created", nil)
		fmt.Println("Created story", story.ID)

	case "list":
		lb := openLib()
		db, err := storage.OpenIndex(lb.Root)
		if err != nil {
			fail(l, "open index", err)
		}
		defer db.Close()
		ctx := context.Background()
		if err := storage.RebuildIndex(ctx, db, lb); err != nil {
			fail(l, "rebuild index", err)
		}
		sums, err := storage.ListSummaries(ctx, db)
		if err != nil {
			fail(l, "list stories", err)
		}
		if len(sums) == 0 {
			fmt.Println("Library is empty.")
			return
		}
		for _, s := range sums {
			fmt.Printf("%-36s  %-30s  %2d scenes  %s\n", s.ID, s.Topic, s.Scenes, s.UpdatedAt)
		}

	case "show":
		if len(args) < 3 {
			fmt.Println("show requires <id>")
			usage()
			os.Exit(2)
		}
		lb := openLib()
		s, err := lb.Load(args[2])
		if err != nil {
			fail(l, "load story", err)
		}
		story = s
		fmt.Printf("%s  %q  language=%s  updated=%s\n", s.ID, s.Topic, s.Language, s.UpdatedAt)
		for i := range s.Segments {
			sc := &s.Segments[i]
			visual := "none"
			switch sc.Visual.Kind {
			case domain.VisualImages:
				visual = fmt.Sprintf("%d image(s)", len(sc.Visual.Images))
			case domain.VisualVideo:
				visual = "video"
			}
			fmt.Printf("  scene %2d  %-12s transition=%-8s %d element(s)\n",
				i+1, visual, orDefault(string(sc.TransitionIn), "none"), len(sc.Elements))
		}

	case "delete":
		if len(args) < 3 {
			fmt.Println("delete requires <id>")
			usage()
			os.Exit(2)
		}
		lb := openLib()
		if err := lb.Delete(args[2]); err != nil {
			fail(l, "delete story", err)
		}
		if db, err := storage.OpenIndex(lb.Root); err == nil {
			if err := storage.RemoveFromIndex(context.Background(), db, args[2]); err != nil {
				l.Warn("index update failed", slog.Any("err", err))
			}
			db.Close()
		}
		fmt.Println("Deleted story", args[2])

	case "import":
		if len(args) < 3 {
			fmt.Println("import requires <file.json>")
			usage()
			os.Exit(2)
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			fail(l, "read document", err)
		}
		s, err := storage.ImportStory(data)
		if err != nil {
			fail(l, "import", err)
		}
		lb := openLib()
		story = s
		if err := lb.Save(s); err != nil {
			fail(l, "save imported story", err)
		}
		if err := indexStory(lb, s); err != nil {
			l.Warn("index update failed", slog.Any("err", err))
		}
		fmt.Printf("Imported %q as %s (%d scenes)\n", s.Topic, s.ID, len(s.Segments))

	case "export-json":
		if len(args) < 3 {
			fmt.Println("export-json requires <id>")
			usage()
			os.Exit(2)
		}
		lb := openLib()
		s, err := lb.Load(args[2])
		if err != nil {
			fail(l, "load story", err)
		}
		story = s
		data, err := storage.ExportStory(s)
		if err != nil {
			fail(l, "export", err)
		}
		out := args[2] + ".json"
		if len(args) >= 4 {
			out = args[3]
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			fail(l, "write document", err)
		}
		fmt.Println("Wrote", out)

	case "login":
		if len(args) < 3 {
			fmt.Println("login requires <api-key>")
			usage()
			os.Exit(2)
		}
		if err := config.Save(cfg, args[2]); err != nil {
			fail(l, "store api key", err)
		}
		fmt.Println("API key stored in the OS keyring.")

	case "logout":
		if err := config.ForgetAPIKey(); err != nil {
			fail(l, "remove api key", err)
		}
		fmt.Println("API key removed.")

	case "fetch":
		if len(args) < 3 {
			fmt.Println("fetch requires <id>")
			usage()
			os.Exit(2)
		}
		if !cfg.Shared.Enabled || cfg.Shared.DSN == "" {
			fmt.Println("Shared library is not configured (shared.enabled and shared.dsn, or GSS_SHARED_DSN).")
			os.Exit(2)
		}
		ctx := context.Background()
		sh, err := backend.OpenShared(ctx, cfg.Shared.DSN)
		if err != nil {
			fail(l, "connect shared library", err)
		}
		defer sh.Close()
		s, err := sh.Fetch(ctx, args[2])
		if err != nil {
			fail(l, "fetch story", err)
		}
		lb := openLib()
		story = s
		if err := lb.Save(s); err != nil {
			fail(l, "save fetched story", err)
		}
		if err := indexStory(lb, s); err != nil {
			l.Warn("index update failed", slog.Any("err", err))
		}
		fmt.Printf("Fetched %q as %s (%d scenes)\n", s.Topic, s.ID, len(s.Segments))

	case "narrate":
		if len(args) < 3 {
			fmt.Println("narrate requires <id>")
			usage()
			os.Exit(2)
		}
		lb := openLib()
		s, err := lb.Load(args[2])
		if err != nil {
			fail(l, "load story", err)
		}
		story = s
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		cl := backend.NewClient(cfg.Backend.BaseURL, apiKey, time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
		var narrator domain.Character
		if len(s.Characters) > 0 {
			narrator = s.Characters[0]
		}
		count := 0
		for i := range s.Segments {
			sc := &s.Segments[i]
			if sc.Text == "" || sc.Narration != nil {
				continue
			}
			res, err := cl.GenerateNarration(ctx, backend.NarrationRequest{
				Text:     sc.Text,
				Language: s.Language,
				VoiceID:  narrator.VoiceName,
				Speed:    narrator.Speed(),
			})
			if err != nil {
				if errors.Is(err, backend.ErrEntitlement) {
					fmt.Println("Narration quota exhausted; remaining scenes were skipped.")
					break
				}
				fail(l, "generate narration", err)
			}
			sc.Narration = &domain.NarrationRef{
				DataBase64:   res.AudioDataURL,
				NarratorID:   narrator.ID,
				LengthSecond: res.LengthSeconds,
			}
			count++
		}
		if count > 0 {
			if err := lb.Save(s); err != nil {
				fail(l, "save story", err)
			}
			if err := indexStory(lb, s); err != nil {
				l.Warn("index update failed", slog.Any("err", err))
			}
			telemetry.Event("narration_generated", map[string]any{"scenes": count})
		}
		fmt.Printf("Narrated %d scene(s)\n", count)

	case "publish":
		if len(args) < 3 {
			fmt.Println("publish requires <id>")
			usage()
			os.Exit(2)
		}
		if !cfg.Shared.Enabled || cfg.Shared.DSN == "" {
			fmt.Println("Shared library is not configured (shared.enabled and shared.dsn, or GSS_SHARED_DSN).")
			os.Exit(2)
		}
		lb := openLib()
		s, err := lb.Load(args[2])
		if err != nil {
			fail(l, "load story", err)
		}
		story = s
		ctx := context.Background()
		sh, err := backend.OpenShared(ctx, cfg.Shared.DSN)
		if err != nil {
			fail(l, "connect shared library", err)
		}
		defer sh.Close()
		if err := sh.Publish(ctx, s); err != nil {
			fail(l, "publish story", err)
		}
		fmt.Printf("Published %q as %s\n", s.Topic, s.ID)

	case "shared":
		if !cfg.Shared.Enabled || cfg.Shared.DSN == "" {
			fmt.Println("Shared library is not configured (shared.enabled and shared.dsn, or GSS_SHARED_DSN).")
			os.Exit(2)
		}
		ctx := context.Background()
		sh, err := backend.OpenShared(ctx, cfg.Shared.DSN)
		if err != nil {
			fail(l, "connect shared library", err)
		}
		defer sh.Close()
		entries, err := sh.List(ctx)
		if err != nil {
			fail(l, "list shared stories", err)
		}
		if len(entries) == 0 {
			fmt.Println("Shared library is empty.")
			return
		}
		for _, e := range entries {
			fmt.Printf("%-36s  %-30s  %2d scenes  %s\n", e.ID, e.Topic, e.Scenes, e.PublishedAt.Format(time.RFC3339))
		}

	case "render":
		if len(args) < 3 {
			fmt.Println("render requires <id>")
			usage()
			os.Exit(2)
		}
		lb := openLib()
		s, err := lb.Load(args[2])
		if err != nil {
			fail(l, "load story", err)
		}
		story = s
		renderStory(l, cfg, lb, s)

	case "ui":
		var id string
		if len(args) >= 3 {
			id = args[2]
		}
		if err := ui.Run(id); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func renderStory(l *slog.Logger, cfg config.AppConfig, lib *storage.Library, story *domain.Story) {
	resolver := assets.NewResolver(
		assets.NewFFmpegFrames(cfg.Export.FFmpeg),
		assets.DurationDefaults{
			ImageDwell:    cfg.Editor.ImageDwellSeconds,
			NarrationTail: cfg.Editor.NarrationTailSeconds,
			MinScene:      cfg.Editor.MinSceneSeconds,
			Fallback:      cfg.Editor.FallbackSceneSeconds,
		},
	)
	resolver.SetNarratorSpeed(func(narratorID string) float64 {
		for _, c := range story.Characters {
			if c.ID == narratorID {
				return c.Speed()
			}
		}
		return 1
	})
	exp := export.New(resolver, export.Options{
		Width:     cfg.Export.Width,
		Height:    cfg.Export.Height,
		FPS:       cfg.Export.FPS,
		Quality:   cfg.Export.Quality,
		OutDir:    lib.Root,
		FFmpeg:    cfg.Export.FFmpeg,
		TitleCard: true,
	})

	// Ctrl-C cancels between frames and removes the partial file.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	telemetry.Event("export_started", map[string]any{"scenes": len(story.Segments)})
	lastPercent := -1
	res, err := exp.Export(ctx, story, func(p export.Progress) {
		pct := int(p.Fraction * 100)
		if pct != lastPercent && pct%5 == 0 {
			fmt.Printf("\rRendering: %3d%% (scene %d/%d)", pct, p.ScenesDone+1, p.TotalScenes)
			lastPercent = pct
		}
	})
	fmt.Println()
	if err != nil {
		telemetry.Event("export_failed", nil)
		fail(l, "render", err)
	}
	telemetry.Event("export_finished", map[string]any{"seconds": res.Duration})
	fmt.Printf("Wrote %s (%d frames, %.1fs)\n", res.Path, res.Frames, res.Duration)
}

func indexStory(lib *storage.Library, story *domain.Story) error {
	db, err := storage.OpenIndex(lib.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	return storage.UpdateIndex(context.Background(), db, story)
}

func fail(l *slog.Logger, what string, err error) {
	l.Error(what+" failed", slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
