/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notify

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Renderer substitutes {{KEY}} placeholders in an HTML template with
// HTML-escaped property values (spec §4.5).
type Renderer struct {
	template string
}

// NewRenderer loads the template from path.
func NewRenderer(path string) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading notification template %s: %w", path, err)
	}
	return &Renderer{template: string(data)}, nil
}

// NewRendererFromString builds a Renderer directly from template text,
// used by tests and the CLI demo driver that don't want to depend on a
// file on disk.
func NewRendererFromString(template string) *Renderer {
	return &Renderer{template: template}
}

// Render substitutes every {{KEY}} placeholder present in the template with
// n.Properties[KEY], HTML-escaped. A placeholder with no matching property
// is left untouched, so partial templates don't lose data silently.
func (r *Renderer) Render(n Notification) (string, error) {
	return placeholderPattern.ReplaceAllStringFunc(r.template, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		value, ok := n.Properties[key]
		if !ok {
			return token
		}
		return html.EscapeString(value)
	}), nil
}

// LogRepresentation renders a structured, human-readable summary of n for
// the logging fallback used when the mail transport is disabled (spec
// §4.5).
func LogRepresentation(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (to=%s, cc=%s)", n.Type, n.Subject, strings.Join(n.Recipients, ","), strings.Join(n.CcRecipients, ","))

	keys := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, n.Properties[k])
	}
	return b.String()
}
