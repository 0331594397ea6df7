/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os/exec"
	"strings"
)

// Codec is a negotiated encoder/container pair.
type Codec struct {
	Encoder   string // ffmpeg encoder name
	Container string // mp4 or webm
	Ext       string
}

// codecPreference is ordered best-first: h264/mp4 variants, then vp9/webm,
// then vp8/webm as the last resort.
var codecPreference = []Codec{
	{Encoder: "libx264", Container: "mp4", Ext: "mp4"},
	{Encoder: "h264_videotoolbox", Container: "mp4", Ext: "mp4"},
	{Encoder: "h264_nvenc", Container: "mp4", Ext: "mp4"},
	{Encoder: "libvpx-vp9", Container: "webm", Ext: "webm"},
	{Encoder: "libvpx", Container: "webm", Ext: "webm"},
}

// NegotiateCodec picks the first preference the local ffmpeg supports.
func NegotiateCodec(ffmpeg string) (Codec, error) {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	out, err := exec.Command(ffmpeg, "-hide_banner", "-encoders").Output()
	if err != nil {
		return Codec{}, fmt.Errorf("probe encoders: %w", err)
	}
	listing := string(out)
	for _, c := range codecPreference {
		if strings.Contains(listing, " "+c.Encoder+" ") {
			return c, nil
		}
	}
	return Codec{}, fmt.Errorf("no supported video encoder found")
}

// BitrateKbps maps resolution and quality tier to a target bitrate.
func BitrateKbps(height int, quality string) int {
	hd := height >= 1080
	switch strings.ToLower(quality) {
	case "high":
		if hd {
			return 8000
		}
		return 4000
	case "medium":
		if hd {
			return 5000
		}
		return 2500
	default: // low
		if hd {
			return 2500
		}
		return 1000
	}
}

// qualityArgs builds the encoder-specific rate control flags.
func qualityArgs(c Codec, height int, quality string) []string {
	kbps := BitrateKbps(height, quality)
	switch c.Encoder {
	case "h264_videotoolbox":
		return []string{"-b:v", fmt.Sprintf("%dk", kbps)}
	case "h264_nvenc":
		return []string{"-cq", crfFor(quality), "-b:v", fmt.Sprintf("%dk", kbps)}
	case "libvpx-vp9", "libvpx":
		return []string{"-b:v", fmt.Sprintf("%dk", kbps)}
	default: // libx264
		return []string{"-crf", crfFor(quality), "-preset", "medium", "-maxrate", fmt.Sprintf("%dk", kbps)}
	}
}

func crfFor(quality string) string {
	switch strings.ToLower(quality) {
	case "high":
		return "18"
	case "medium":
		return "23"
	default:
		return "28"
	}
}
