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
	"os"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageCache decodes image references once and keeps them for the lifetime of
// the editing session. References are file paths or data URLs. Failed decodes
// are cached too so a broken asset does not get re-read every frame.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
	failed map[string]error
}

func NewImageCache() *ImageCache {
	return &ImageCache{images: make(map[string]image.Image), failed: make(map[string]error)}
}

// Get returns the decoded image for ref, decoding on first use.
func (c *ImageCache) Get(ref string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[ref]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	if err, ok := c.failed[ref]; ok {
		c.mu.RUnlock()
		return nil, err
	}
	c.mu.RUnlock()

	img, err := decodeRef(ref)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed[ref] = err
		return nil, err
	}
	c.images[ref] = img
	return img, nil
}

// Put stores an already-decoded image under ref.
func (c *ImageCache) Put(ref string, img image.Image) {
	c.mu.Lock()
	c.images[ref] = img
	delete(c.failed, ref)
	c.mu.Unlock()
}

// Forget drops a reference so it is re-decoded on next use.
func (c *ImageCache) Forget(ref string) {
	c.mu.Lock()
	delete(c.images, ref)
	delete(c.failed, ref)
	c.mu.Unlock()
}

// Len reports the number of successfully cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

func decodeRef(ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "data:") {
		_, data, err := ParseDataURL(ref)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode embedded image: %w", err)
		}
		return img, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", ref, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", ref, err)
	}
	return img, nil
}
