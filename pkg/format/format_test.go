// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package format

import "testing"

// TestMarkup covers trimming, escaping, and linkification.
func TestMarkup(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"trimmed", "  hello \n", "hello"},
		{"escaped", "a < b & b > c", "a &lt; b &amp; b &gt; c"},
		{
			"link",
			"see https://example.org/a?b=1 now",
			`see <a href="https://example.org/a?b=1">https://example.org/a?b=1</a> now`,
		},
		{
			"parenthesized link",
			"(https://example.org)",
			`(<a href="https://example.org">https://example.org</a>)`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Markup(tc.in); got != tc.want {
				t.Fatalf("Markup(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
