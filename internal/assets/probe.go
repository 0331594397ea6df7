/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// MediaProber reads media durations. The default implementation shells out to
// ffprobe once per reference and caches the answer.
type MediaProber struct {
	FFprobe string // binary name or path, default "ffprobe"

	mu    sync.Mutex
	cache map[string]float64
}

func NewMediaProber(ffprobe string) *MediaProber {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &MediaProber{FFprobe: ffprobe, cache: make(map[string]float64)}
}

// Duration returns the media duration in seconds.
func (p *MediaProber) Duration(ref string) (float64, error) {
	p.mu.Lock()
	if d, ok := p.cache[ref]; ok {
		p.mu.Unlock()
		return d, nil
	}
	p.mu.Unlock()

	out, err := exec.Command(p.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		ref,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", ref, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration: %w", ref, err)
	}
	p.mu.Lock()
	p.cache[ref] = d
	p.mu.Unlock()
	return d, nil
}

// FFmpegFrames extracts single video frames through ffmpeg. Preview asks for
// frames at coarse times; export walks the clip on the output frame grid. The
// last extracted frame per clip is kept so repeated nearby requests during
// scrubbing do not re-spawn ffmpeg.
type FFmpegFrames struct {
	FFmpeg string // binary name or path, default "ffmpeg"

	mu       sync.Mutex
	lastRef  string
	lastTime float64
	lastImg  image.Image
}

func NewFFmpegFrames(ffmpeg string) *FFmpegFrames {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &FFmpegFrames{FFmpeg: ffmpeg}
}

// FrameAt decodes the frame nearest to the given absolute clip time.
func (f *FFmpegFrames) FrameAt(ref string, seconds float64) (image.Image, error) {
	if seconds < 0 {
		seconds = 0
	}
	f.mu.Lock()
	if f.lastImg != nil && f.lastRef == ref && abs(f.lastTime-seconds) < 0.02 {
		img := f.lastImg
		f.mu.Unlock()
		return img, nil
	}
	f.mu.Unlock()

	var out bytes.Buffer
	cmd := exec.Command(f.FFmpeg,
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", ref,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame %s@%.3fs: %w", ref, seconds, err)
	}
	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s@%.3fs: %w", ref, seconds, err)
	}
	f.mu.Lock()
	f.lastRef, f.lastTime, f.lastImg = ref, seconds, img
	f.mu.Unlock()
	return img, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
