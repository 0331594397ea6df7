/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a story to a video file through ffmpeg. Frames are
// composited in-process and streamed as raw RGBA over stdin so no
// intermediate files touch disk; narration and background music are mixed
// by a single filter_complex graph in the same invocation.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/domain"
	"gostorystudio/internal/log"
	"gostorystudio/internal/render"
	"gostorystudio/internal/textlayout"
	"gostorystudio/internal/transition"
)

// ErrExportFailed marks an export that produced no usable output.
var ErrExportFailed = errors.New("export failed")

// minOutputBytes guards against ffmpeg exiting zero after writing a stub.
const minOutputBytes = 1024

// Options configures a single export run. Zero values fall back to
// 1920x1080 at 30 fps, high quality.
type Options struct {
	Width, Height int
	FPS           int
	Quality       string // high, medium or low
	OutDir        string
	FFmpeg        string  // ffmpeg binary, "ffmpeg" when empty
	TitleCard     bool    // lead with a topic title card
	TitleSeconds  float64 // title card length, default 3
	Window        float64 // transition window, default 1
	TailSeconds   float64 // fade-to-black tail, default 1
}

func (o *Options) applyDefaults() {
	if o.Width <= 0 {
		o.Width = 1920
	}
	if o.Height <= 0 {
		o.Height = 1080
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.Quality == "" {
		o.Quality = "high"
	}
	if o.TitleSeconds <= 0 {
		o.TitleSeconds = 3
	}
	if o.Window <= 0 {
		o.Window = transition.DefaultWindowSeconds
	}
	if o.TailSeconds <= 0 {
		o.TailSeconds = 1
	}
}

// Progress reports how far an export has come. Fraction covers the whole
// frame stream including title card and tail.
type Progress struct {
	ScenesDone  int
	TotalScenes int
	Fraction    float64
}

// ProgressFunc receives progress updates from the frame loop. It is called
// on the exporting goroutine and must return quickly.
type ProgressFunc func(Progress)

// Result describes a finished export.
type Result struct {
	Path      string
	Container string
	Frames    int
	Duration  float64
}

// Exporter drives the offline render pipeline.
type Exporter struct {
	Renderer *render.Renderer
	Resolver *assets.Resolver
	Opts     Options
	log      *slog.Logger
}

// New builds an Exporter sharing the resolver with the interactive preview
// so both paths see identical frames.
func New(res *assets.Resolver, opts Options) *Exporter {
	opts.applyDefaults()
	return &Exporter{
		Renderer: render.New(res),
		Resolver: res,
		Opts:     opts,
		log:      log.WithComponent("export"),
	}
}

// Export encodes the story and returns the written file. The context
// cancels cooperatively between frames; a cancelled export removes its
// partial output.
func (e *Exporter) Export(ctx context.Context, story *domain.Story, progress ProgressFunc) (*Result, error) {
	if story == nil || len(story.Segments) == 0 {
		return nil, fmt.Errorf("%w: story has no scenes", ErrExportFailed)
	}
	codec, err := NegotiateCodec(e.Opts.FFmpeg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	e.log.Info("export starting",
		"scenes", len(story.Segments),
		"encoder", codec.Encoder,
		"container", codec.Container,
		"size", fmt.Sprintf("%dx%d", e.Opts.Width, e.Opts.Height))

	durations := make([]float64, len(story.Segments))
	var total float64
	for i := range story.Segments {
		durations[i] = e.Resolver.IntrinsicDuration(&story.Segments[i])
		total += durations[i]
	}

	if err := e.preload(ctx, story); err != nil {
		return nil, err
	}

	audioDir, err := os.MkdirTemp("", "storystudio-audio-*")
	if err != nil {
		return nil, fmt.Errorf("audio staging dir: %w", err)
	}
	defer os.RemoveAll(audioDir)

	leadIn := 0.0
	if e.Opts.TitleCard && story.Topic != "" {
		leadIn = e.Opts.TitleSeconds
	}
	plan := e.planAudio(story, durations, leadIn, audioDir)

	outPath := filepath.Join(e.Opts.OutDir, fmt.Sprintf("story-export-%d.%s", time.Now().Unix(), codec.Ext))
	cmd, stdin, stderr, err := e.startFFmpeg(ctx, codec, plan, outPath)
	if err != nil {
		return nil, err
	}

	frames, streamErr := e.streamFrames(ctx, story, durations, leadIn, stdin, progress)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if streamErr != nil {
		os.Remove(outPath)
		return nil, streamErr
	}
	if closeErr != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("close encoder pipe: %w", closeErr)
	}
	if waitErr != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrExportFailed, waitErr, tail(stderr.Bytes(), 800))
	}
	info, err := os.Stat(outPath)
	if err != nil || info.Size() < minOutputBytes {
		os.Remove(outPath)
		return nil, fmt.Errorf("%w: output file missing or too small", ErrExportFailed)
	}

	res := &Result{
		Path:      outPath,
		Container: codec.Container,
		Frames:    frames,
		Duration:  leadIn + total + e.Opts.TailSeconds,
	}
	e.log.Info("export finished", "path", res.Path, "frames", res.Frames, "seconds", res.Duration)
	return res, nil
}

// preload warms the image cache concurrently. Decode failures are cached by
// the resolver and surface later as skipped visuals, so the group never
// fails on a bad asset, only on cancellation.
func (e *Exporter) preload(ctx context.Context, story *domain.Story) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ProbeSystem().EncoderThreads())
	for _, sc := range story.Segments {
		if sc.Visual.Mode() != domain.VisualImages {
			continue
		}
		for _, ref := range sc.Visual.Images {
			ref := ref
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := e.Resolver.Images.Get(ref); err != nil {
					e.log.Warn("preload failed, visual will be skipped", "ref", assets.ShortRef(ref), "error", err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func (e *Exporter) startFFmpeg(ctx context.Context, codec Codec, plan audioPlan, outPath string) (*exec.Cmd, io.WriteCloser, *bytes.Buffer, error) {
	ffmpeg := e.Opts.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", e.Opts.Width, e.Opts.Height),
		"-framerate", strconv.Itoa(e.Opts.FPS),
		"-i", "-",
	}
	inputs, filters, maps := plan.audioArgs()
	args = append(args, inputs...)
	args = append(args, filters...)
	args = append(args, maps...)
	args = append(args, "-pix_fmt", "yuv420p", "-c:v", codec.Encoder)
	args = append(args, qualityArgs(codec, e.Opts.Height, e.Opts.Quality)...)
	args = append(args, "-threads", strconv.Itoa(ProbeSystem().EncoderThreads()))
	if len(inputs) > 0 {
		if codec.Container == "webm" {
			args = append(args, "-c:a", "libopus")
		} else {
			args = append(args, "-c:a", "aac", "-b:a", "192k")
		}
	}
	args = append(args, outPath)

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoder stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return cmd, stdin, &stderr, nil
}

// streamFrames produces the entire raw frame stream: optional title card,
// every scene with its inbound transition, then the fade-to-black tail.
func (e *Exporter) streamFrames(ctx context.Context, story *domain.Story, durations []float64, leadIn float64, w io.Writer, progress ProgressFunc) (int, error) {
	fps := float64(e.Opts.FPS)
	frame := image.NewRGBA(image.Rect(0, 0, e.Opts.Width, e.Opts.Height))
	scratch := image.NewRGBA(frame.Bounds())
	prev := image.NewRGBA(frame.Bounds())
	havePrev := false

	totalFrames := frameCount(leadIn, fps)
	for _, d := range durations {
		totalFrames += frameCount(d, fps)
	}
	totalFrames += frameCount(e.Opts.TailSeconds, fps)

	written := 0
	emit := func(scenesDone int) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export cancelled: %w", err)
		}
		if err := writeRawRGBA(w, frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		written++
		if progress != nil {
			progress(Progress{
				ScenesDone:  scenesDone,
				TotalScenes: len(story.Segments),
				Fraction:    float64(written) / float64(totalFrames),
			})
		}
		return nil
	}

	if leadIn > 0 {
		n := frameCount(leadIn, fps)
		for f := 0; f < n; f++ {
			e.renderTitleCard(frame, story.Topic, float64(f)/fps)
			if err := emit(0); err != nil {
				return written, err
			}
		}
		copy(prev.Pix, frame.Pix)
		havePrev = true
	}

	for i := range story.Segments {
		sc := &story.Segments[i]
		opt := render.FrameOptions{Duration: durations[i], AutoZoom: true}
		n := frameCount(durations[i], fps)
		window := math.Min(e.Opts.Window, durations[i])
		for f := 0; f < n; f++ {
			elapsed := float64(f) / fps
			if havePrev && elapsed < window {
				e.Renderer.RenderFrame(scratch, sc, elapsed, opt)
				p := transition.Progress(elapsed, window)
				transition.Blend(frame, prev, scratch, sc.TransitionIn, p)
			} else {
				e.Renderer.RenderFrame(frame, sc, elapsed, opt)
			}
			if err := emit(i); err != nil {
				return written, err
			}
		}
		copy(prev.Pix, frame.Pix)
		havePrev = true
	}

	n := frameCount(e.Opts.TailSeconds, fps)
	for f := 0; f < n; f++ {
		p := float64(f+1) / float64(n)
		fadeToBlack(frame, prev, p)
		if err := emit(len(story.Segments)); err != nil {
			return written, err
		}
	}
	return written, nil
}

var titleCardBG = color.RGBA{R: 0xfe, G: 0xfc, B: 0xe8, A: 0xff}

// renderTitleCard paints the topic centered on the cream card, fading the
// text in over the first second.
func (e *Exporter) renderTitleCard(dst *image.RGBA, topic string, elapsed float64) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(titleCardBG), image.Point{}, draw.Src)
	frac := elapsed
	if frac > 1 {
		frac = 1
	}
	if frac <= 0 {
		return
	}
	face, metrics := e.Renderer.Layout.Provider.Resolve(titleSpec())
	box := e.Renderer.Layout.Layout(topic, titleSpec(), float32(b.Dx())*0.8)
	alpha := uint8(frac * 255)
	ink := color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: alpha}
	y := float32(b.Dy())/2 - box.Height/2 + metrics.Ascent
	for _, line := range box.Lines {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(ink),
			Face: face,
			Dot:  fixed.P(int(float32(b.Dx())/2-line.Width/2), int(y)),
		}
		d.DrawString(line.Text)
		y += metrics.LineHeight()
	}
}

func titleSpec() textlayout.FontSpec { return textlayout.FontSpec{SizePt: 64, Bold: true} }

// fadeToBlack draws src dimmed by progress, reaching full black at p=1.
func fadeToBlack(dst *image.RGBA, src *image.RGBA, p float64) {
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	a := uint8((1 - p) * 255)
	mask := image.NewUniform(color.Alpha{A: a})
	draw.DrawMask(dst, dst.Bounds(), src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// writeRawRGBA streams the frame's pixel buffer. Frames produced here always
// have a zero origin and packed stride, but a converted copy is taken when
// that ever stops holding.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if img.Stride == 4*b.Dx() && b.Min.X == 0 && b.Min.Y == 0 {
		_, err := w.Write(img.Pix)
		return err
	}
	tmp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(tmp, tmp.Bounds(), img, b.Min, draw.Src)
	_, err := w.Write(tmp.Pix)
	return err
}

func frameCount(seconds, fps float64) int {
	n := int(math.Round(seconds * fps))
	if seconds > 0 && n < 1 {
		n = 1
	}
	return n
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
