//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/config"
	"gostorystudio/internal/crash"
	"gostorystudio/internal/domain"
	"gostorystudio/internal/export"
	"gostorystudio/internal/interact"
	applog "gostorystudio/internal/log"
	"gostorystudio/internal/playback"
	"gostorystudio/internal/render"
	"gostorystudio/internal/storage"
	"gostorystudio/internal/telemetry"
	"gostorystudio/internal/transition"
	"gostorystudio/internal/undo"
)

const (
	previewW = 854
	previewH = 480
)

// Run starts the Fyne-based desktop editor. storyID may be empty; the draft
// slot is restored when present, otherwise a fresh story is created.
func Run(storyID string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting editor")

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	libDir := cfg.General.LibraryDir
	if libDir == "" {
		home, _ := os.UserHomeDir()
		libDir = filepath.Join(home, "StoryStudio")
	}
	lib, err := storage.OpenLibrary(libDir)
	if err != nil {
		return err
	}

	var story *domain.Story
	defer func() { crash.Recover(lib, story) }()

	switch {
	case storyID != "":
		story, err = lib.Load(storyID)
		if err != nil {
			return fmt.Errorf("open story %q: %w", storyID, err)
		}
	default:
		if draft, derr := lib.LoadDraft(); derr == nil {
			story = draft
			l.Info("restored draft")
		} else {
			story = &domain.Story{ID: domain.NewID(), Segments: []domain.Scene{domain.NewScene()}}
		}
	}

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
	renderer := render.New(resolver)
	layer := interact.NewLayer(renderer)
	layer.Snap = interact.SnapOptions{
		GridPercent:     cfg.Editor.SnapGridPercent,
		MagneticPercent: cfg.Editor.MagneticPercent,
	}
	ctrl := playback.NewController(func() []domain.Scene { return story.Segments }, resolver)
	undoMgr := undo.NewManager(undo.Config{})

	fyneApp := app.NewWithID("storystudio")
	w := fyneApp.NewWindow("StoryStudio")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 820)
	if winW < 960 {
		winW = 960
	}
	if winH < 640 {
		winH = 640
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	frame := image.NewRGBA(image.Rect(0, 0, previewW, previewH))
	preview := canvas.NewImageFromImage(frame)
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(previewW, previewH))

	selectedID := ""
	gridHeld := false

	// prevFrame holds the outgoing scene's last frame so auto-advance blends
	// through the same compositor the export uses.
	prevFrame := image.NewRGBA(frame.Bounds())
	scratch := image.NewRGBA(frame.Bounds())
	havePrev := false

	redraw := func() {
		st := ctrl.Status()
		if st.Index < 0 || st.Index >= len(story.Segments) {
			return
		}
		sc := &story.Segments[st.Index]
		opt := render.FrameOptions{
			SelectedID: selectedID,
			Playing:    st.Playing,
			Duration:   st.Duration,
			AutoZoom:   st.Playing,
		}
		window := math.Min(cfg.Editor.TransitionSeconds, st.Duration)
		if havePrev && st.Playing && st.Elapsed < window {
			renderer.RenderFrame(scratch, sc, st.Elapsed, opt)
			p := transition.Progress(st.Elapsed, window)
			transition.Blend(frame, prevFrame, scratch, sc.TransitionIn, p)
		} else {
			renderer.RenderFrame(frame, sc, st.Elapsed, opt)
		}
		preview.Refresh()
	}

	// Scene list (left)
	sceneLabels := []string{}
	refreshScenes := func() {}
	scenesList := widget.NewList(
		func() int { return len(sceneLabels) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && int(i) < len(sceneLabels) {
				o.(*widget.Label).SetText(sceneLabels[i])
			}
		},
	)
	refreshScenes = func() {
		sceneLabels = sceneLabels[:0]
		for i, sc := range story.Segments {
			title := sc.Text
			if len(title) > 28 {
				title = title[:28] + "..."
			}
			if title == "" {
				title = "(empty)"
			}
			sceneLabels = append(sceneLabels, fmt.Sprintf("%d  %s", i+1, title))
		}
		scenesList.Refresh()
	}
	scenesList.OnSelected = func(id widget.ListItemID) {
		ctrl.Select(int(id))
		selectedID = ""
		havePrev = false
		redraw()
	}

	saveQuiet := func() {
		if err := lib.SaveDraft(story); err != nil {
			l.Error("draft save failed", slog.Any("err", err))
		}
	}

	// Interaction: drags move or resize overlay elements via the shared layer.
	var gesture *interact.Gesture
	drag := newDragSurface(preview, func(x, y float64, begin bool) {
		st := ctrl.Status()
		if st.Index < 0 || st.Index >= len(story.Segments) {
			return
		}
		sc := &story.Segments[st.Index]
		if begin {
			gesture, selectedID = layer.Begin(sc, selectedID, x, y, previewW, previewH)
		} else if gesture != nil {
			layer.Move(gesture, sc, x, y, previewW, previewH, gridHeld)
		}
		redraw()
	}, func() {
		gesture = nil
		saveQuiet()
	})

	pushTransform := func() {
		st := ctrl.Status()
		if st.Index >= 0 && st.Index < len(story.Segments) {
			sc := &story.Segments[st.Index]
			undoMgr.Push(sc.ID, sc.Transform)
		}
	}

	// Transform controls (right)
	scaleSlider := widget.NewSlider(0.2, 4)
	scaleSlider.Step = 0.05
	scaleSlider.OnChanged = func(v float64) {
		st := ctrl.Status()
		if st.Index < 0 || st.Index >= len(story.Segments) {
			return
		}
		sc := &story.Segments[st.Index]
		pushTransform()
		sc.Transform.Scale = v
		redraw()
	}
	transitionSel := widget.NewSelect(
		[]string{"fade", "slide", "zoom", "flip", "curtain"},
		func(v string) {
			st := ctrl.Status()
			if st.Index < 0 || st.Index >= len(story.Segments) {
				return
			}
			story.Segments[st.Index].TransitionIn = domain.Transition(v)
			saveQuiet()
		},
	)

	addScene := func() {
		story.Segments = append(story.Segments, domain.NewScene())
		telemetry.Event("scene_added", map[string]any{"count": len(story.Segments)})
		refreshScenes()
		ctrl.Select(len(story.Segments) - 1)
		saveQuiet()
		redraw()
	}

	doExport := func() {
		prog := widget.NewProgressBar()
		d := dialog.NewCustom("Exporting", "Hide", prog, w)
		d.Show()
		exp := export.New(resolver, export.Options{
			Width:     cfg.Export.Width,
			Height:    cfg.Export.Height,
			FPS:       cfg.Export.FPS,
			Quality:   cfg.Export.Quality,
			OutDir:    libDir,
			FFmpeg:    cfg.Export.FFmpeg,
			TitleCard: true,
		})
		telemetry.Event("export_started", map[string]any{"scenes": len(story.Segments)})
		go func() {
			res, err := exp.Export(context.Background(), story, func(p export.Progress) {
				fyne.Do(func() { prog.SetValue(p.Fraction) })
			})
			fyne.Do(func() {
				d.Hide()
				if err != nil {
					telemetry.Event("export_failed", nil)
					dialog.ShowError(err, w)
					return
				}
				telemetry.Event("export_finished", map[string]any{"seconds": res.Duration})
				dialog.ShowInformation("Export finished", res.Path, w)
			})
		}()
	}

	playBtn := widget.NewButton("Play", nil)
	playBtn.OnTapped = func() {
		st := ctrl.Status()
		if st.Playing {
			ctrl.Pause()
			playBtn.SetText("Play")
		} else {
			ctrl.Play()
			playBtn.SetText("Pause")
		}
	}
	toolbar := container.NewHBox(
		widget.NewButton("Prev", func() { ctrl.Prev(); havePrev = false; redraw() }),
		playBtn,
		widget.NewButton("Next", func() { ctrl.Next(); havePrev = false; redraw() }),
		widget.NewSeparator(),
		widget.NewButton("Add Scene", addScene),
		widget.NewButton("Export Video", doExport),
	)

	// Undo and redo restore the scene transform only.
	applyUndo := func(redo bool) {
		st := ctrl.Status()
		if st.Index < 0 || st.Index >= len(story.Segments) {
			return
		}
		sc := &story.Segments[st.Index]
		var t domain.VisualTransform
		var ok bool
		if redo {
			t, ok = undoMgr.Redo(sc.ID, sc.Transform)
		} else {
			t, ok = undoMgr.Undo(sc.ID, sc.Transform)
		}
		if ok {
			sc.Transform = t
			redraw()
		}
	}
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { applyUndo(false) })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { applyUndo(true) })
	// Holding Shift while dragging snaps overlay elements to the 5% grid.
	if dc, ok := w.Canvas().(desktop.Canvas); ok {
		dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				gridHeld = true
			}
		})
		dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				gridHeld = false
			}
		})
	}

	right := container.NewVBox(
		widget.NewLabel("Scale"), scaleSlider,
		widget.NewLabel("Transition"), transitionSel,
	)
	left := container.NewBorder(widget.NewLabel("Scenes"), nil, nil, nil, scenesList)
	center := container.NewBorder(toolbar, status, nil, nil, drag)
	w.SetContent(container.NewBorder(nil, nil, left, right, center))

	refreshScenes()
	redraw()

	// Playback ticker drives both the clock and the preview refresh.
	stop := make(chan struct{})
	go func() {
		tick := time.NewTicker(33 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				st := ctrl.Tick()
				if st.Playing || st.Advanced {
					adv := st.Advanced
					fyne.Do(func() {
						if adv {
							// frame still shows the outgoing scene
							copy(prevFrame.Pix, frame.Pix)
							havePrev = true
						}
						redraw()
					})
				}
			}
		}
	}()

	w.SetOnClosed(func() {
		close(stop)
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		saveQuiet()
	})

	w.ShowAndRun()
	return nil
}

// dragSurface wraps the preview image and forwards pointer gestures in
// preview pixel coordinates.
type dragSurface struct {
	widget.BaseWidget
	content  *canvas.Image
	onPoint  func(x, y float64, begin bool)
	onFinish func()
	dragging bool
}

func newDragSurface(img *canvas.Image, onPoint func(x, y float64, begin bool), onFinish func()) *dragSurface {
	d := &dragSurface{content: img, onPoint: onPoint, onFinish: onFinish}
	d.ExtendBaseWidget(d)
	return d
}

func (d *dragSurface) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(d.content)
}

// toPixels maps a widget position to preview pixel coordinates.
func (d *dragSurface) toPixels(p fyne.Position) (float64, float64) {
	sz := d.Size()
	if sz.Width <= 0 || sz.Height <= 0 {
		return 0, 0
	}
	return float64(p.X) / float64(sz.Width) * previewW, float64(p.Y) / float64(sz.Height) * previewH
}

func (d *dragSurface) Tapped(ev *fyne.PointEvent) {
	x, y := d.toPixels(ev.Position)
	d.onPoint(x, y, true)
}

func (d *dragSurface) Dragged(ev *fyne.DragEvent) {
	x, y := d.toPixels(ev.Position)
	if !d.dragging {
		d.dragging = true
		d.onPoint(x, y, true)
		return
	}
	d.onPoint(x, y, false)
}

func (d *dragSurface) DragEnd() {
	d.dragging = false
	d.onFinish()
}
