// Package theme defines the color-role mapping applied to the chart.
package theme

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// FallbackMuted is used when a stored theme has no muted color.
const FallbackMuted = "#6b7280"

var (
	ErrUnknownRole  = errors.New("unknown color role")
	ErrInvalidColor = errors.New("invalid color")
)

// Theme maps each color role to a hex color.
type Theme struct {
	Primary    string `json:"primary" toml:"primary" yaml:"primary"`
	Secondary  string `json:"secondary" toml:"secondary" yaml:"secondary"`
	Background string `json:"background" toml:"background" yaml:"background"`
	Surface    string `json:"surface,omitempty" toml:"surface" yaml:"surface,omitempty"`
	Text       string `json:"text" toml:"text" yaml:"text"`
	Muted      string `json:"muted,omitempty" toml:"muted" yaml:"muted,omitempty"`
}

// Role describes one color role.
type Role struct {
	Key   string
	Label string
}

// Roles lists the color roles in display order.
func Roles() []Role {
	return []Role{
		{Key: "primary", Label: "Primary Color"},
		{Key: "secondary", Label: "Secondary Color"},
		{Key: "background", Label: "Background Color"},
		{Key: "surface", Label: "Surface Color"},
		{Key: "text", Label: "Text Color"},
		{Key: "muted", Label: "Muted Text Color"},
	}
}

func (t *Theme) field(role string) (*string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "primary":
		return &t.Primary, nil
	case "secondary":
		return &t.Secondary, nil
	case "background":
		return &t.Background, nil
	case "surface":
		return &t.Surface, nil
	case "text":
		return &t.Text, nil
	case "muted":
		return &t.Muted, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

// Get returns the color assigned to role.
func (t Theme) Get(role string) (string, error) {
	p, err := t.field(role)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// With returns a copy of t with role set to value. The value is validated.
func (t Theme) With(role, value string) (Theme, error) {
	p, err := t.field(role)
	if err != nil {
		return t, err
	}
	c, err := ParseHex(value)
	if err != nil {
		return t, fmt.Errorf("%s: %w", role, err)
	}
	*p = c.Hex()
	return t, nil
}

// Normalize fills optional roles from their fallbacks: surface from
// background and muted from FallbackMuted.
func (t Theme) Normalize() Theme {
	if t.Surface == "" {
		t.Surface = t.Background
	}
	if t.Muted == "" {
		t.Muted = FallbackMuted
	}
	return t
}

// Validate checks every role of the normalized theme.
func (t Theme) Validate() error {
	n := t.Normalize()
	var errs []error
	for _, r := range Roles() {
		v, _ := n.Get(r.Key)
		if _, err := ParseHex(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Key, err))
		}
	}
	return errors.Join(errs...)
}

// Color returns the parsed color for role, or black when it is invalid.
func (t Theme) Color(role string) colorful.Color {
	v, _ := t.Normalize().Get(role)
	c, err := ParseHex(v)
	if err != nil {
		return colorful.Color{}
	}
	return c
}

// ParseHex parses "#rgb" or "#rrggbb".
func ParseHex(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if (len(s) != 4 && len(s) != 7) || s[0] != '#' || strings.Trim(s[1:], "0123456789abcdefABCDEF") != "" {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

// Blend mixes the colors of two roles in Lab space. f=0 yields a, f=1 yields b.
func (t Theme) Blend(a, b string, f float64) string {
	return t.Color(a).BlendLab(t.Color(b), f).Clamped().Hex()
}
