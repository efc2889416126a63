package theme

// DefaultName is the preset used when nothing is saved.
const DefaultName = "default"

var presetOrder = []string{"default", "dark", "ocean", "forest"}

var presets = map[string]Theme{
	"default": {
		Primary:    "#4f46e5",
		Secondary:  "#818cf8",
		Background: "#f8f9fb",
		Surface:    "#ffffff",
		Text:       "#1f2937",
		Muted:      "#6b7280",
	},
	"dark": {
		Primary:    "#8b5cf6",
		Secondary:  "#a78bfa",
		Background: "#111827",
		Surface:    "#1f2937",
		Text:       "#f9fafb",
		Muted:      "#9ca3af",
	},
	"ocean": {
		Primary:    "#06b6d4",
		Secondary:  "#22d3ee",
		Background: "#f0f9ff",
		Surface:    "#ffffff",
		Text:       "#0c4a6e",
		Muted:      "#0e7490",
	},
	"forest": {
		Primary:    "#10b981",
		Secondary:  "#34d399",
		Background: "#f0fdf4",
		Surface:    "#ffffff",
		Text:       "#064e3b",
		Muted:      "#059669",
	},
}

// Default returns the default preset.
func Default() Theme {
	return presets[DefaultName]
}

// PresetNames returns the preset names in display order.
func PresetNames() []string {
	return append([]string(nil), presetOrder...)
}

// Preset returns the named preset.
func Preset(name string) (Theme, bool) {
	t, ok := presets[name]
	return t, ok
}

// NameOf returns the preset name matching t, or "custom".
func NameOf(t Theme) string {
	n := t.Normalize()
	for _, name := range presetOrder {
		if presets[name] == n {
			return name
		}
	}
	return "custom"
}

// Next returns the preset following the one t matches, wrapping around.
// Custom themes advance to the first preset.
func Next(t Theme) (string, Theme) {
	current := NameOf(t)
	for i, name := range presetOrder {
		if name == current {
			next := presetOrder[(i+1)%len(presetOrder)]
			return next, presets[next]
		}
	}
	return presetOrder[0], presets[presetOrder[0]]
}
