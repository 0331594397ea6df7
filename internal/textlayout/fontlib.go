/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary stores loaded OpenType fonts mapped by family and weight.
// The Go fonts are always available as the built-in default family so text
// overlays render identically on every machine without font files installed.

type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	bold   bool
}

// NewFontLibrary returns a library pre-loaded with the embedded Go fonts
// under the empty (default) family name.
func NewFontLibrary() *FontLibrary {
	fl := &FontLibrary{fonts: make(map[fontKey]*opentype.Font)}
	if f, err := opentype.Parse(goregular.TTF); err == nil {
		fl.fonts[fontKey{}] = f
	}
	if f, err := opentype.Parse(gobold.TTF); err == nil {
		fl.fonts[fontKey{bold: true}] = f
	}
	return fl
}

// LoadTTF loads a font file into the library under the given family.
func (fl *FontLibrary) LoadTTF(family string, bold bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	fl.mu.Lock()
	fl.fonts[fontKey{family: family, bold: bold}] = f
	fl.mu.Unlock()
	return nil
}

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if f, ok := fl.fonts[fontKey{family: spec.Family, bold: spec.Bold}]; ok {
		return f
	}
	if f, ok := fl.fonts[fontKey{family: spec.Family}]; ok {
		return f
	}
	// unknown family falls back to the embedded defaults
	if f, ok := fl.fonts[fontKey{bold: spec.Bold}]; ok {
		return f
	}
	return fl.fonts[fontKey{}]
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another
// Provider. Faces are cached per size since opentype.NewFace is not cheap
// enough for a per-frame render loop.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero
	Fallback Provider

	mu    sync.Mutex
	cache map[faceKey]faceEntry
}

type faceKey struct {
	family string
	bold   bool
	size   float32
}

type faceEntry struct {
	face font.Face
	met  Metrics
}

func (p *OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePt <= 0 {
		spec.SizePt = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}

	key := faceKey{family: spec.Family, bold: spec.Bold, size: spec.SizePt}
	p.mu.Lock()
	if e, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return e.face, e.met
	}
	p.mu.Unlock()

	if p.Lib != nil {
		if f := p.Lib.find(spec); f != nil {
			face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(spec.SizePt), DPI: dpi, Hinting: font.HintingFull})
			if err == nil {
				m := face.Metrics()
				met := Metrics{
					Ascent:  float32(m.Ascent.Round()),
					Descent: float32(m.Descent.Round()),
					LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
				}
				p.mu.Lock()
				if p.cache == nil {
					p.cache = make(map[faceKey]faceEntry)
				}
				p.cache[key] = faceEntry{face: face, met: met}
				p.mu.Unlock()
				return face, met
			}
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}

// DefaultProvider returns a provider backed by the embedded Go fonts.
func DefaultProvider() *OTProvider {
	return &OTProvider{Lib: NewFontLibrary()}
}
