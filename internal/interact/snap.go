/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import "math"

// Snapping for overlay drags. Positions are percentages of the canvas.
// Exactly one mode applies per adjustment: the explicit grid when its
// modifier is held, otherwise magnetic pull toward the 0/50/100 landmarks.

// SnapOptions carries the tuning knobs, normally taken from config.
type SnapOptions struct {
	GridPercent     float64 // grid cell size for modifier-held snapping
	MagneticPercent float64 // pull radius around 0, 50 and 100
}

// DefaultSnap mirrors the application defaults.
func DefaultSnap() SnapOptions { return SnapOptions{GridPercent: 5, MagneticPercent: 2} }

// GuideLine is visual feedback for a magnetic snap, rendered by the UI as a
// thin line across the canvas. Orientation is "vertical" (a fixed x) or
// "horizontal" (a fixed y); Position is in percent.
type GuideLine struct {
	Orientation string
	Position    float64
}

// magnetic landmarks on each axis
var magnetStops = []float64{0, 50, 100}

// SnapPosition adjusts a raw percent position. With gridHeld the position is
// rounded to the nearest grid multiple and no guides are produced; otherwise
// each axis snaps to a nearby landmark and reports a guide for it.
func SnapPosition(x, y float64, gridHeld bool, opts SnapOptions) (float64, float64, []GuideLine) {
	if opts.GridPercent <= 0 {
		opts.GridPercent = 5
	}
	if opts.MagneticPercent <= 0 {
		opts.MagneticPercent = 2
	}
	if gridHeld {
		return roundTo(x, opts.GridPercent), roundTo(y, opts.GridPercent), nil
	}
	var guides []GuideLine
	if sx, ok := magnet(x, opts.MagneticPercent); ok {
		x = sx
		guides = append(guides, GuideLine{Orientation: "vertical", Position: sx})
	}
	if sy, ok := magnet(y, opts.MagneticPercent); ok {
		y = sy
		guides = append(guides, GuideLine{Orientation: "horizontal", Position: sy})
	}
	return x, y, guides
}

func roundTo(v, step float64) float64 { return math.Round(v/step) * step }

func magnet(v, threshold float64) (float64, bool) {
	for _, stop := range magnetStops {
		if math.Abs(v-stop) <= threshold {
			return stop, true
		}
	}
	return v, false
}
