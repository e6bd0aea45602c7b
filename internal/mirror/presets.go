package mirror

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preset is a named partial override applied on top of existing options.
type Preset struct {
	Name        string
	Description string
	apply       func(Options) Options
}

// Apply returns base with the preset's fields overlaid.
func (p Preset) Apply(base Options) Options {
	if p.apply == nil {
		return base
	}
	return p.apply(base)
}

var builtinPresets = []Preset{
	{
		Name:        "low-latency",
		Description: "1280px, 4 Mbps, 60 fps, no audio",
		apply: func(o Options) Options {
			o.VideoEnabled = true
			o.MaxResolution = 1280
			o.Bitrate = 4
			o.FPS = 60
			o.VideoCodec = CodecH264
			o.AudioEnabled = false
			o.AudioOnly = false
			o.NoControl = false
			o.ControlOnly = false
			o.HideWindow = false
			o.StayAwake = true
			o.TurnScreenOff = false
			return o
		},
	},
	{
		Name:        "audio-only",
		Description: "forward device audio without video",
		apply: func(o Options) Options {
			o.VideoEnabled = false
			o.AudioEnabled = true
			o.AudioOnly = true
			o.NoControl = true
			o.ControlOnly = false
			o.HideWindow = true
			return o
		},
	},
	{
		Name:        "mirror-only",
		Description: "view only, 1920px at 30 fps",
		apply: func(o Options) Options {
			o.VideoEnabled = true
			o.AudioEnabled = false
			o.AudioOnly = false
			o.NoControl = true
			o.ControlOnly = false
			o.HideWindow = false
			o.MaxResolution = 1920
			o.Bitrate = 8
			o.FPS = 30
			return o
		},
	},
	{
		Name:        "full-control",
		Description: "1920px, 16 Mbps, audio, screen off",
		apply: func(o Options) Options {
			o.VideoEnabled = true
			o.AudioEnabled = true
			o.AudioOnly = false
			o.NoControl = false
			o.ControlOnly = false
			o.HideWindow = false
			o.MaxResolution = 1920
			o.Bitrate = 16
			o.FPS = 60
			o.StayAwake = true
			o.TurnScreenOff = true
			return o
		},
	},
}

// PresetBook holds the built-in presets plus any loaded from a user file.
// User presets with a built-in name replace the built-in one.
type PresetBook struct {
	mu     sync.RWMutex
	byName map[string]Preset
}

// NewPresetBook returns a book containing only the built-in presets.
func NewPresetBook() *PresetBook {
	b := &PresetBook{byName: make(map[string]Preset, len(builtinPresets))}
	for _, p := range builtinPresets {
		b.byName[p.Name] = p
	}
	return b
}

// Get looks up a preset by name.
func (b *PresetBook) Get(name string) (Preset, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.byName[name]
	return p, ok
}

// Apply overlays the named preset on base. Unknown names return base
// unchanged and false.
func (b *PresetBook) Apply(name string, base Options) (Options, bool) {
	p, ok := b.Get(name)
	if !ok {
		return base, false
	}
	return p.Apply(base), true
}

// Names returns all preset names sorted alphabetically.
func (b *PresetBook) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.byName))
	for n := range b.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List returns all presets in name order.
func (b *PresetBook) List() []Preset {
	names := b.Names()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Preset, 0, len(names))
	for _, n := range names {
		out = append(out, b.byName[n])
	}
	return out
}

// userPresetFile is the on-disk layout:
//
//	presets:
//	  couch:
//	    description: big screen
//	    options:
//	      max_resolution: 2560
//	      fullscreen: true
type userPresetFile struct {
	Presets map[string]struct {
		Description string    `yaml:"description"`
		Options     yaml.Node `yaml:"options"`
	} `yaml:"presets"`
}

// LoadFile merges presets from a YAML file into the book. Only the keys
// present under a preset's options are overlaid; the rest of the base
// options pass through untouched. A missing file is not an error.
func (b *PresetBook) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read presets: %w", err)
	}
	return b.Load(data)
}

// Load merges presets from YAML bytes.
func (b *PresetBook) Load(data []byte) (int, error) {
	var file userPresetFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return 0, fmt.Errorf("parse presets: %w", err)
	}

	loaded := make([]Preset, 0, len(file.Presets))
	for name, entry := range file.Presets {
		if name == "" {
			return 0, fmt.Errorf("parse presets: empty preset name")
		}
		node := entry.Options
		// Decode once up front so malformed overlays fail at load time.
		probe := DefaultOptions()
		if node.Kind != 0 {
			if err := node.Decode(&probe); err != nil {
				return 0, fmt.Errorf("preset %q: %w", name, err)
			}
			if errs := probe.Validate(); len(errs) > 0 {
				return 0, fmt.Errorf("preset %q: %w", name, errs[0])
			}
		}
		loaded = append(loaded, Preset{
			Name:        name,
			Description: entry.Description,
			apply: func(o Options) Options {
				if node.Kind == 0 {
					return o
				}
				if err := node.Decode(&o); err != nil {
					log.Warn("preset overlay failed", "preset", name, "error", err)
				}
				return o
			},
		})
	}

	b.mu.Lock()
	for _, p := range loaded {
		b.byName[p.Name] = p
	}
	b.mu.Unlock()

	slices.SortFunc(loaded, func(a, c Preset) int { return strings.Compare(a.Name, c.Name) })
	for _, p := range loaded {
		log.Info("loaded user preset", "preset", p.Name)
	}
	return len(loaded), nil
}
