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
	"strings"

	"gostorystudio/internal/assets"
	"gostorystudio/internal/domain"
)

// backgroundGain keeps music well below narration level.
const backgroundGain = 0.15

// audioTrack is one narration clip placed on the timeline.
type audioTrack struct {
	Path    string
	StartMs int
	Rate    float64 // narrator voice speed, 1 when unset
}

// audioPlan collects everything the ffmpeg audio graph needs.
type audioPlan struct {
	Tracks     []audioTrack
	Background string // empty when the story has no music
}

// planAudio materializes narration clips and background music into dir and
// positions each narration at its scene's start offset. Scenes whose audio
// cannot be materialized are skipped with a log entry; export continues.
func (e *Exporter) planAudio(story *domain.Story, durations []float64, leadIn float64, dir string) audioPlan {
	var plan audioPlan
	offset := leadIn
	for i, sc := range story.Segments {
		if sc.Narration != nil {
			ref := sc.Narration.URL
			if ref == "" {
				ref = sc.Narration.DataBase64
			}
			if ref != "" {
				path, err := assets.Materialize(ref, dir, fmt.Sprintf("narration-%03d", i))
				if err != nil {
					e.log.Warn("skipping narration audio", "scene", sc.ID, "error", err)
				} else {
					plan.Tracks = append(plan.Tracks, audioTrack{
						Path:    path,
						StartMs: int(offset * 1000),
						Rate:    narratorSpeed(story, sc.Narration.NarratorID),
					})
				}
			}
		}
		offset += durations[i]
	}
	if story.BackgroundMusic != "" {
		path, err := assets.Materialize(story.BackgroundMusic, dir, "background")
		if err != nil {
			e.log.Warn("skipping background music", "error", err)
		} else {
			plan.Background = path
		}
	}
	return plan
}

// audioArgs returns the extra -i inputs, the filter_complex expression and
// the -map flags for the plan. The video stream is input 0; audio inputs
// follow in plan order. An empty plan yields no arguments.
func (p audioPlan) audioArgs() (inputs, filters, maps []string) {
	if len(p.Tracks) == 0 && p.Background == "" {
		return nil, nil, nil
	}
	var fc strings.Builder
	var mixed []string
	idx := 1
	for _, t := range p.Tracks {
		inputs = append(inputs, "-i", t.Path)
		label := fmt.Sprintf("n%d", idx)
		if t.Rate > 0 && t.Rate != 1 {
			fmt.Fprintf(&fc, "[%d:a]atempo=%.2f,adelay=%d|%d[%s];", idx, t.Rate, t.StartMs, t.StartMs, label)
		} else {
			fmt.Fprintf(&fc, "[%d:a]adelay=%d|%d[%s];", idx, t.StartMs, t.StartMs, label)
		}
		mixed = append(mixed, "["+label+"]")
		idx++
	}
	if p.Background != "" {
		inputs = append(inputs, "-stream_loop", "-1", "-i", p.Background)
		fmt.Fprintf(&fc, "[%d:a]volume=%.2f[bg];", idx, backgroundGain)
		mixed = append(mixed, "[bg]")
	}
	if len(mixed) == 1 {
		fc.WriteString(mixed[0] + "acopy[aout]")
	} else {
		fmt.Fprintf(&fc, "%samix=inputs=%d:duration=longest:dropout_transition=3[aout]", strings.Join(mixed, ""), len(mixed))
	}
	filters = []string{"-filter_complex", fc.String()}
	maps = []string{"-map", "0:v", "-map", "[aout]", "-shortest"}
	return inputs, filters, maps
}

func narratorSpeed(story *domain.Story, narratorID string) float64 {
	if narratorID == "" {
		return 1
	}
	for _, c := range story.Characters {
		if c.ID == narratorID {
			return c.Speed()
		}
	}
	return 1
}
