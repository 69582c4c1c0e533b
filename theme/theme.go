// Package theme holds the catalog of ambient sound themes
package theme

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/soundscape/audio"
)

var (
	ErrDuplicateTheme = errors.New("duplicate theme id")
	ErrEmptyCatalog   = errors.New("theme catalog is empty")
)

// Theme is one selectable soundscape
// Effect overrides the engine's built-in chain for ID when set
type Theme struct {
	ID     string             `yaml:"id"`
	Name   string             `yaml:"name"`
	Noise  audio.NoiseKind    `yaml:"noise"`
	Effect *audio.ChainRecipe `yaml:"effect,omitempty"`
}

// Catalog is an ordered, immutable set of themes
type Catalog struct {
	themes []Theme
	byID   map[string]int
}

// file is the YAML document layout
type file struct {
	Themes []Theme `yaml:"themes"`
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, _ := New([]Theme{
		{ID: "rain", Name: "Rain", Noise: audio.NoiseWhite},
		{ID: "forest", Name: "Forest", Noise: audio.NoisePink},
		{ID: "ocean", Name: "Ocean", Noise: audio.NoiseBrown},
		{ID: "fire", Name: "Fire", Noise: audio.NoiseBrown},
		{ID: "wind", Name: "Wind", Noise: audio.NoisePink},
		{ID: "stream", Name: "Stream", Noise: audio.NoiseWhite},
	})
	return c
}

// New builds a catalog preserving order; IDs must be unique and non-empty
func New(themes []Theme) (*Catalog, error) {
	if len(themes) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		themes: slices.Clone(themes),
		byID:   make(map[string]int, len(themes)),
	}
	for i, t := range c.themes {
		if t.ID == "" {
			return nil, fmt.Errorf("theme %d: missing id", i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTheme, t.ID)
		}
		if c.themes[i].Name == "" {
			c.themes[i].Name = t.ID
		}
		c.byID[t.ID] = i
	}
	return c, nil
}

// Decode reads a catalog from YAML
func Decode(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode themes: %w", err)
	}
	return New(f.Themes)
}

// Load reads a catalog from a YAML file
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open themes: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Lookup returns the theme with id
func (c *Catalog) Lookup(id string) (Theme, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Theme{}, false
	}
	return c.themes[i], true
}

// IDs returns theme IDs in catalog order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.themes))
	for i, t := range c.themes {
		ids[i] = t.ID
	}
	return ids
}

// Themes returns a copy of all themes in catalog order
func (c *Catalog) Themes() []Theme {
	return slices.Clone(c.themes)
}

// Len returns the number of themes
func (c *Catalog) Len() int {
	return len(c.themes)
}

// Recipes returns the effect overrides declared by themes
func (c *Catalog) Recipes() map[string]audio.ChainRecipe {
	out := make(map[string]audio.ChainRecipe)
	for _, t := range c.themes {
		if t.Effect != nil {
			out[t.ID] = *t.Effect
		}
	}
	return out
}

// Validate checks every effect override against rate
func (c *Catalog) Validate(rate int) error {
	for _, t := range c.themes {
		if t.Effect == nil {
			continue
		}
		if err := t.Effect.Validate(rate); err != nil {
			return fmt.Errorf("theme %s: %w", t.ID, err)
		}
	}
	return nil
}
