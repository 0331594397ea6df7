/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"fmt"
)

// VisualKind discriminates a scene's visual source.
type VisualKind string

const (
	VisualNone   VisualKind = "none"
	VisualImages VisualKind = "imageSet"
	VisualVideo  VisualKind = "video"
)

// Visual is a scene's visual source as a tagged variant: nothing, an ordered
// image set with a cursor, or a trimmed video clip. Exactly one mode is
// authoritative per render. Older documents stored flat imageUrls/videoUrl
// fields on the scene itself; Scene.UnmarshalJSON migrates those, with video
// taking precedence when both are present.
type Visual struct {
	Kind        VisualKind `json:"kind,omitempty"`
	Images      []string   `json:"images,omitempty"`
	ActiveIndex int        `json:"activeIndex,omitempty"`
	Clip        *VideoClip `json:"clip,omitempty"`
}

// NoVisual returns the empty visual source.
func NoVisual() Visual { return Visual{Kind: VisualNone} }

// ImageSetVisual returns an image-set visual with the given cursor.
func ImageSetVisual(images []string, activeIndex int) Visual {
	return Visual{Kind: VisualImages, Images: images, ActiveIndex: activeIndex}
}

// VideoVisual returns a video visual for the given clip.
func VideoVisual(clip VideoClip) Visual {
	return Visual{Kind: VisualVideo, Clip: &clip}
}

// Mode returns the effective kind, treating the zero value as none and
// inferring the kind from populated fields for tolerant decoding.
func (v Visual) Mode() VisualKind {
	switch v.Kind {
	case VisualImages, VisualVideo, VisualNone:
		return v.Kind
	}
	// untagged: infer, video wins
	if v.Clip != nil && v.Clip.Ref != "" {
		return VisualVideo
	}
	if len(v.Images) > 0 {
		return VisualImages
	}
	return VisualNone
}

// IsNone reports whether the scene has no visual source.
func (v Visual) IsNone() bool { return v.Mode() == VisualNone }

// ActiveImage returns the image reference under the cursor, clamped into
// range, or "" for non-image visuals.
func (v Visual) ActiveImage() string {
	if v.Mode() != VisualImages || len(v.Images) == 0 {
		return ""
	}
	i := v.ActiveIndex
	if i < 0 {
		i = 0
	}
	if i >= len(v.Images) {
		i = len(v.Images) - 1
	}
	return v.Images[i]
}

func (v Visual) validate() error {
	switch v.Mode() {
	case VisualNone:
		return nil
	case VisualImages:
		if len(v.Images) == 0 {
			return fmt.Errorf("image set visual with no images")
		}
		return nil
	case VisualVideo:
		if v.Clip == nil || v.Clip.Ref == "" {
			return fmt.Errorf("video visual with no clip reference")
		}
		if v.Clip.TrimEnd != 0 && v.Clip.TrimEnd < v.Clip.TrimStart {
			return fmt.Errorf("video trim end before trim start")
		}
		if !v.Clip.Filter.Valid() {
			return fmt.Errorf("unknown video filter %q", v.Clip.Filter)
		}
		return nil
	}
	return fmt.Errorf("unknown visual kind %q", v.Kind)
}

// MarshalJSON normalizes the kind tag so documents are always explicit.
func (v Visual) MarshalJSON() ([]byte, error) {
	type alias Visual
	a := alias(v)
	a.Kind = v.Mode()
	if a.Kind == VisualNone {
		a.Images = nil
		a.Clip = nil
		a.ActiveIndex = 0
	}
	return json.Marshal(a)
}

// legacyScene carries flat visual fields from older documents.
type legacyScene struct {
	ImageURLs        []string `json:"imageUrls"`
	ActiveImageIndex int      `json:"activeImageIndex"`
	VideoURL         string   `json:"videoUrl"`
	TrimStart        float64  `json:"trimStart"`
	TrimEnd          float64  `json:"trimEnd"`
	PlaybackRate     float64  `json:"playbackRate"`
	Filter           Filter   `json:"filter"`
}

// UnmarshalJSON decodes a scene and migrates legacy flat visual fields into
// the tagged Visual. When a document carries both a video reference and an
// image list, the video is authoritative.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type alias Scene
	aux := struct {
		*alias
		legacyScene
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.Visual.Mode() == VisualNone {
		switch {
		case aux.VideoURL != "":
			s.Visual = VideoVisual(VideoClip{
				Ref:          aux.VideoURL,
				TrimStart:    aux.TrimStart,
				TrimEnd:      aux.TrimEnd,
				PlaybackRate: aux.PlaybackRate,
				Filter:       aux.Filter,
			})
		case len(aux.ImageURLs) > 0:
			s.Visual = ImageSetVisual(aux.ImageURLs, aux.ActiveImageIndex)
		}
	}
	return nil
}
