/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/domain"
)

func TestBitrateTable(t *testing.T) {
	cases := []struct {
		height  int
		quality string
		want    int
	}{
		{1080, "high", 8000},
		{1080, "medium", 5000},
		{1080, "low", 2500},
		{720, "high", 4000},
		{720, "medium", 2500},
		{720, "low", 1000},
	}
	for _, c := range cases {
		if got := BitrateKbps(c.height, c.quality); got != c.want {
			t.Errorf("BitrateKbps(%d, %q) = %d, want %d", c.height, c.quality, got, c.want)
		}
	}
}

func TestQualityArgsPerEncoder(t *testing.T) {
	x264 := qualityArgs(Codec{Encoder: "libx264"}, 1080, "high")
	if x264[0] != "-crf" || x264[1] != "18" {
		t.Fatalf("libx264 args = %v", x264)
	}
	vt := qualityArgs(Codec{Encoder: "h264_videotoolbox"}, 1080, "high")
	if vt[0] != "-b:v" || vt[1] != "8000k" {
		t.Fatalf("videotoolbox args = %v", vt)
	}
	nv := qualityArgs(Codec{Encoder: "h264_nvenc"}, 720, "low")
	if nv[0] != "-cq" || nv[1] != "28" {
		t.Fatalf("nvenc args = %v", nv)
	}
}

func TestNegotiateCodecPrefersH264(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script needs a POSIX shell")
	}
	fake := writeFakeFFmpeg(t, " V..... libvpx-vp9 vp9\n V..... libx264 h264\n")
	c, err := NegotiateCodec(fake)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if c.Encoder != "libx264" || c.Container != "mp4" {
		t.Fatalf("got %+v, want libx264/mp4", c)
	}
}

func TestNegotiateCodecFallsBackToVP9(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script needs a POSIX shell")
	}
	fake := writeFakeFFmpeg(t, " V..... libvpx-vp9 vp9\n V..... libvpx vp8\n")
	c, err := NegotiateCodec(fake)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if c.Encoder != "libvpx-vp9" || c.Container != "webm" || c.Ext != "webm" {
		t.Fatalf("got %+v, want libvpx-vp9/webm", c)
	}
}

func TestNegotiateCodecNoEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub script needs a POSIX shell")
	}
	fake := writeFakeFFmpeg(t, " V..... mpeg4 mpeg4\n")
	if _, err := NegotiateCodec(fake); err == nil {
		t.Fatal("expected error when no preferred encoder is present")
	}
}

func writeFakeFFmpeg(t *testing.T, listing string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nprintf '%s' \"$FFMPEG_LISTING\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FFMPEG_LISTING", listing)
	return path
}

func TestAudioArgsEmptyPlan(t *testing.T) {
	var p audioPlan
	inputs, filters, maps := p.audioArgs()
	if inputs != nil || filters != nil || maps != nil {
		t.Fatal("empty plan must produce no audio arguments")
	}
}

func TestAudioArgsMixGraph(t *testing.T) {
	p := audioPlan{
		Tracks: []audioTrack{
			{Path: "/tmp/n0.mp3", StartMs: 3000},
			{Path: "/tmp/n1.mp3", StartMs: 9500},
		},
		Background: "/tmp/bg.mp3",
	}
	inputs, filters, maps := p.audioArgs()
	joined := strings.Join(inputs, " ")
	if !strings.Contains(joined, "-stream_loop -1 -i /tmp/bg.mp3") {
		t.Errorf("background music must loop: %q", joined)
	}
	fc := filters[1]
	for _, want := range []string{
		"[1:a]adelay=3000|3000[n1]",
		"[2:a]adelay=9500|9500[n2]",
		"volume=0.15[bg]",
		"amix=inputs=3:duration=longest",
	} {
		if !strings.Contains(fc, want) {
			t.Errorf("filter graph missing %q: %q", want, fc)
		}
	}
	if maps[len(maps)-1] != "-shortest" {
		t.Errorf("mix must stop with the video stream: %v", maps)
	}
}

func TestAudioArgsNarratorRate(t *testing.T) {
	p := audioPlan{Tracks: []audioTrack{
		{Path: "/tmp/n0.mp3", StartMs: 0, Rate: 1.25},
		{Path: "/tmp/n1.mp3", StartMs: 4000},
	}}
	_, filters, _ := p.audioArgs()
	fc := filters[1]
	if !strings.Contains(fc, "[1:a]atempo=1.25,adelay=0|0[n1]") {
		t.Errorf("sped-up narrator must get atempo: %q", fc)
	}
	if strings.Contains(fc, "[2:a]atempo") {
		t.Errorf("default-rate narrator must not get atempo: %q", fc)
	}
}

func TestAudioArgsSingleTrack(t *testing.T) {
	p := audioPlan{Tracks: []audioTrack{{Path: "/tmp/n0.mp3", StartMs: 0}}}
	_, filters, _ := p.audioArgs()
	if strings.Contains(filters[1], "amix") {
		t.Errorf("single track must not mix: %q", filters[1])
	}
}

func TestPlanAudioOffsets(t *testing.T) {
	res := assets.NewResolver(nil, assets.DurationDefaults{})
	e := New(res, Options{OutDir: t.TempDir()})
	wav := assets.EncodeDataURL("audio/wav", []byte("RIFFxxxxWAVE"))
	story := &domain.Story{
		ID:    "s1",
		Topic: "Voyage",
		Characters: []domain.Character{
			{ID: "fast", Name: "Rico", VoiceSpeed: 1.5},
		},
		Segments: []domain.Scene{
			{ID: "a", Narration: &domain.NarrationRef{DataBase64: wav}},
			{ID: "b"},
			{ID: "c", Narration: &domain.NarrationRef{DataBase64: wav, NarratorID: "fast"}},
		},
	}
	dir := t.TempDir()
	plan := e.planAudio(story, []float64{5, 4, 5}, 3, dir)
	if len(plan.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(plan.Tracks))
	}
	if plan.Tracks[0].StartMs != 3000 {
		t.Errorf("first narration at %dms, want 3000 (after title card)", plan.Tracks[0].StartMs)
	}
	if plan.Tracks[1].StartMs != 12000 {
		t.Errorf("second narration at %dms, want 12000", plan.Tracks[1].StartMs)
	}
	if plan.Tracks[0].Rate != 1 {
		t.Errorf("narrator without a character entry should play at rate 1, got %v", plan.Tracks[0].Rate)
	}
	if plan.Tracks[1].Rate != 1.5 {
		t.Errorf("narrator speed not picked up, got %v", plan.Tracks[1].Rate)
	}
	for _, tr := range plan.Tracks {
		if _, err := os.Stat(tr.Path); err != nil {
			t.Errorf("materialized track missing: %v", err)
		}
	}
}

type countWriter struct{ n int }

func (c *countWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

func TestStreamFramesSceneBudget(t *testing.T) {
	res := assets.NewResolver(nil, assets.DurationDefaults{})
	e := New(res, Options{Width: 64, Height: 36, FPS: 30, OutDir: t.TempDir(), TailSeconds: 1})
	story := &domain.Story{
		ID: "s1",
		Segments: []domain.Scene{
			{ID: "a", TransitionIn: domain.TransitionFade},
			{ID: "b", TransitionIn: domain.TransitionSlide},
		},
	}
	var w countWriter
	var lastFraction float64
	written, err := e.streamFrames(context.Background(), story, []float64{3, 2}, 0, &w, func(p Progress) {
		if p.Fraction < lastFraction {
			t.Errorf("progress went backwards: %v -> %v", lastFraction, p.Fraction)
		}
		lastFraction = p.Fraction
	})
	if err != nil {
		t.Fatalf("streamFrames: %v", err)
	}
	want := 30*3 + 30*2 + 30 // scenes plus fade-out tail
	if written != want {
		t.Errorf("frames = %d, want %d", written, want)
	}
	if w.n != written*64*36*4 {
		t.Errorf("raw bytes = %d, want %d", w.n, written*64*36*4)
	}
	if lastFraction != 1 {
		t.Errorf("final progress fraction = %v, want 1", lastFraction)
	}
}

func TestStreamFramesCancelled(t *testing.T) {
	res := assets.NewResolver(nil, assets.DurationDefaults{})
	e := New(res, Options{Width: 64, Height: 36, FPS: 30, OutDir: t.TempDir()})
	story := &domain.Story{ID: "s1", Segments: []domain.Scene{{ID: "a"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var w countWriter
	written, err := e.streamFrames(ctx, story, []float64{3}, 0, &w, nil)
	if err == nil {
		t.Fatal("cancelled context must abort the stream")
	}
	if written != 0 {
		t.Errorf("no frames should be written after cancellation, got %d", written)
	}
}

func TestFrameCount(t *testing.T) {
	if got := frameCount(1.0, 30); got != 30 {
		t.Errorf("1s at 30fps = %d frames", got)
	}
	if got := frameCount(0.01, 30); got != 1 {
		t.Errorf("tiny positive duration must still yield one frame, got %d", got)
	}
	if got := frameCount(0, 30); got != 0 {
		t.Errorf("zero duration = %d frames", got)
	}
}

func TestFadeToBlackEndpoints(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	dst := image.NewRGBA(src.Bounds())

	fadeToBlack(dst, src, 0)
	if r, _, _, _ := dst.At(2, 2).RGBA(); r>>8 != 0xff {
		t.Errorf("p=0 must show the source frame, got r=%d", r>>8)
	}
	fadeToBlack(dst, src, 1)
	if r, g, b, _ := dst.At(2, 2).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Error("p=1 must be fully black")
	}
}

func TestTitleCardFadesTextIn(t *testing.T) {
	res := assets.NewResolver(nil, assets.DurationDefaults{})
	e := New(res, Options{Width: 320, Height: 180})
	card := image.NewRGBA(image.Rect(0, 0, 320, 180))

	e.renderTitleCard(card, "Deep Sea", 0)
	if countNonBackground(card) != 0 {
		t.Error("at t=0 the card must show only the background")
	}
	e.renderTitleCard(card, "Deep Sea", 2)
	if countNonBackground(card) == 0 {
		t.Error("after the fade the topic text must be visible")
	}
}

func countNonBackground(img *image.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if uint8(r>>8) != titleCardBG.R || uint8(g>>8) != titleCardBG.G || uint8(bl>>8) != titleCardBG.B {
				n++
			}
		}
	}
	return n
}

func TestWriteRawRGBAPackedAndSubimage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, img); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 8*8*4 {
		t.Fatalf("packed frame wrote %d bytes", buf.Len())
	}

	sub := img.SubImage(image.Rect(2, 2, 6, 6)).(*image.RGBA)
	buf.Reset()
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 4*4*4 {
		t.Fatalf("subimage frame wrote %d bytes", buf.Len())
	}
}

func TestEncoderThreadsCapped(t *testing.T) {
	if got := (SystemInfo{LogicalCores: 32}).EncoderThreads(); got != 8 {
		t.Errorf("32 cores -> %d threads, want 8", got)
	}
	if got := (SystemInfo{LogicalCores: 0}).EncoderThreads(); got != 1 {
		t.Errorf("0 cores -> %d threads, want 1", got)
	}
}

func TestShortRefTruncatesDataURLs(t *testing.T) {
	long := assets.EncodeDataURL("image/png", bytes.Repeat([]byte{1}, 4096))
	short := assets.ShortRef(long)
	if len(short) > 64 || !strings.HasPrefix(short, "data:image/png") {
		t.Errorf("ShortRef = %q", short)
	}
	if assets.ShortRef("cover.png") != "cover.png" {
		t.Error("plain refs must pass through")
	}
}
