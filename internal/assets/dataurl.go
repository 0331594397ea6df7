/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseDataURL splits a data: URL into its media type and decoded payload.
// Only base64-encoded data URLs are accepted; that is the only form the
// project interchange format writes.
func ParseDataURL(u string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data url missing payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url payload: %w", err)
	}
	return mediaType, data, nil
}

// EncodeDataURL builds a base64 data URL from raw bytes.
func EncodeDataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Materialize writes a data URL's payload into dir and returns the file path,
// so tools that need a real file (ffmpeg inputs) can consume embedded assets.
// Non-data references are returned unchanged.
func Materialize(ref, dir, baseName string) (string, error) {
	if !strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	mediaType, data, err := ParseDataURL(ref)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, baseName+extForMedia(mediaType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("materialize asset: %w", err)
	}
	return path, nil
}

// ShortRef abbreviates a reference for log output. Data URLs embed whole
// assets and would flood the log otherwise.
func ShortRef(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		if i := strings.Index(ref, ","); i >= 0 {
			return ref[:i+1] + "..."
		}
		return "data:..."
	}
	if len(ref) > 120 {
		return ref[:117] + "..."
	}
	return ref
}

func extForMedia(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		if i := strings.Index(mediaType, "/"); i >= 0 && i+1 < len(mediaType) {
			return "." + mediaType[i+1:]
		}
		return ".bin"
	}
}
