// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const identiconSize = 40

// palette is the fixed set of identicon background colors. The seed hash
// selects one entry, so the same seed always renders the same tile.
var palette = [9]color.NRGBA{
	{R: 69, G: 189, B: 243, A: 255},
	{R: 224, G: 143, B: 112, A: 255},
	{R: 77, G: 182, B: 172, A: 255},
	{R: 149, G: 117, B: 205, A: 255},
	{R: 176, G: 133, B: 94, A: 255},
	{R: 240, G: 98, B: 146, A: 255},
	{R: 163, G: 211, B: 108, A: 255},
	{R: 121, G: 134, B: 203, A: 255},
	{R: 241, G: 185, B: 29, A: 255},
}

// Identicon renders a deterministic placeholder avatar for the given seed
// and returns its cache path. The tile is a solid color chosen by hashing
// the seed, with the label's first visible character drawn centered in
// white. A leading '#' sigil is skipped; an empty label renders "X".
// Identical (seed, label) pairs produce byte-identical files.
func (r *Resolver) Identicon(seed, label string) (string, error) {
	fname := filepath.Join(r.dir, fmt.Sprintf("identicon-%016x.png", seedHash(seed+"\x00"+label)))
	if path, err := r.memo.Get(fname); err == nil {
		return path, nil
	}
	if _, err := os.Stat(fname); err == nil {
		r.memo.Set(fname, fname)
		return fname, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, identiconSize, identiconSize))
	bg := palette[seedHash(seed)%uint64(len(palette))]
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	drawGlyph(img, initial(label))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode identicon: %w", err)
	}
	if err := os.WriteFile(fname, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("failed to write identicon: %w", err)
	}
	r.memo.Set(fname, fname)
	return fname, nil
}

// initial picks the character drawn on the tile.
func initial(label string) string {
	label = strings.TrimPrefix(label, "#")
	for _, r := range label {
		return string(unicode.ToUpper(r))
	}
	return "X"
}

func drawGlyph(img *image.RGBA, s string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s)
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot: fixed.Point26_6{
			X: (fixed.I(identiconSize) - width) / 2,
			Y: fixed.I((identiconSize + face.Ascent - 2) / 2),
		},
	}
	d.DrawString(s)
}
