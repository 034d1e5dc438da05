// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package retriever

import (
	"fmt"
	"strings"
)

// layerTitles maps layer names to their section headings.
var layerTitles = map[string]string{
	"L0": "L0 Core",
	"L1": "L1 Immediate",
	"L2": "L2 Extended",
	"L3": "L3 Global",
}

// Render re-renders the bundle's text block, e.g. after a caller has
// filtered Layers for display.
func (b *Bundle) Render() string {
	return renderBundle(b)
}

// renderBundle produces the deterministic text block for a bundle: one
// section per included layer with bulleted entity ids, bulleted relations
// where the layer carries them, an optional truncation notice and the
// trailing metadata line.
func renderBundle(b *Bundle) string {
	var sb strings.Builder

	for _, layer := range b.Layers {
		title := layerTitles[layer.Name]
		if title == "" {
			title = layer.Name
		}
		fmt.Fprintf(&sb, "## %s\n", title)
		for _, id := range layer.Entities {
			fmt.Fprintf(&sb, "- %s\n", id)
		}
		for _, e := range layer.Relations {
			fmt.Fprintf(&sb, "- %s -> %s (%s)\n", e.Src, e.Dst, e.Kind)
		}
		if layer.Summary != "" {
			sb.WriteString(layer.Summary)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if b.Truncated {
		fmt.Fprintf(&sb, "Truncation Notice: %s\n\n", b.TruncationReason)
	}
	fmt.Fprintf(&sb, "*Context generated using %d tokens across %d layers*\n",
		b.Tokens, len(b.Layers))
	return sb.String()
}
