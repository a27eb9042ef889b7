// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package format prepares plain message bodies for rich display.
package format

import (
	"regexp"
	"strings"
)

var linkRE = regexp.MustCompile(`https?://[^\s]+[-A-Za-z0-9+&@#/%=~_|]`)

// Markup escapes a message body for markup display and wraps bare http(s)
// URLs in anchor tags. The body is trimmed first; escaping happens before
// linkification so the generated anchors survive.
func Markup(s string) string {
	out := strings.TrimSpace(s)
	out = strings.ReplaceAll(out, "&", "&amp;")
	out = strings.ReplaceAll(out, "<", "&lt;")
	out = strings.ReplaceAll(out, ">", "&gt;")
	return linkRE.ReplaceAllString(out, `<a href="$0">$0</a>`)
}
