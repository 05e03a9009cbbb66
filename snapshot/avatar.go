package snapshot

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// AvatarSize is the edge length of generated avatars.
const AvatarSize = 200

var avatarBlue = color.RGBA{R: 0, G: 122, B: 255, A: 255}

// NeedsDefaultAvatar reports whether profile is missing or the stock
// placeholder.
func NeedsDefaultAvatar(profile string) bool {
	profile = strings.TrimSpace(profile)
	return profile == "" || strings.HasSuffix(profile, "profile.jpg")
}

// DefaultAvatar draws the uppercase initial of name in white on blue and
// returns it as a PNG data URL.
func DefaultAvatar(name string, size int) (string, error) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	glyphH := ascent + metrics.Descent.Ceil()

	letter := initial(name)
	adv, _ := face.GlyphAdvance(letter)
	glyphW := adv.Ceil()

	glyph := image.NewRGBA(image.Rect(0, 0, glyphW, glyphH))
	d := font.Drawer{
		Dst:  glyph,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(string(letter))

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(avatarBlue), image.Point{}, draw.Src)

	// Letter height is half the avatar.
	h := size / 2
	w := h * glyphW / glyphH
	x := (size - w) / 2
	y := (size - h) / 2
	draw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+h), glyph, glyph.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func initial(name string) rune {
	for _, r := range strings.TrimSpace(name) {
		r = unicode.ToUpper(r)
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return '?'
		}
		return r
	}
	return '?'
}
