package audio

import (
	"fmt"
	"strings"

	"github.com/lixenwraith/soundscape/constant"
)

// ChainKind is the variant tag of a ChainRecipe
type ChainKind int

const (
	ChainPassThrough ChainKind = iota // Source straight into the volume stage
	ChainLowPass                      // Pre-volume low-pass filter
	ChainHighPass                     // Pre-volume high-pass filter
	ChainTremolo                      // Post-volume amplitude modulation
	chainKindCount
)

var chainKindNames = [chainKindCount]string{"passthrough", "lowpass", "highpass", "tremolo"}

func (k ChainKind) String() string {
	if k < 0 || k >= chainKindCount {
		return fmt.Sprintf("ChainKind(%d)", int(k))
	}
	return chainKindNames[k]
}

// MarshalText implements encoding.TextMarshaler
func (k ChainKind) MarshalText() ([]byte, error) {
	if k < 0 || k >= chainKindCount {
		return nil, fmt.Errorf("invalid chain kind %d", int(k))
	}
	return []byte(chainKindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ChainKind) UnmarshalText(text []byte) error {
	for i, name := range chainKindNames {
		if strings.EqualFold(string(text), name) {
			*k = ChainKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown chain kind %q", text)
}

// ChainRecipe describes the effect stages of one theme
// Cutoff applies to filters, Rate/Depth to tremolo
type ChainRecipe struct {
	Kind   ChainKind `yaml:"type"`
	Cutoff float64   `yaml:"cutoff,omitempty"`
	Rate   float64   `yaml:"rate,omitempty"`
	Depth  float64   `yaml:"depth,omitempty"`
}

// Validate checks parameters for the recipe's variant at rate
func (r ChainRecipe) Validate(rate int) error {
	nyquist := float64(rate) / 2
	switch r.Kind {
	case ChainPassThrough:
		return nil
	case ChainLowPass, ChainHighPass:
		if r.Cutoff <= 0 || r.Cutoff >= nyquist {
			return fmt.Errorf("%s cutoff must be in (0, %.0f), got %f", r.Kind, nyquist, r.Cutoff)
		}
	case ChainTremolo:
		if r.Rate <= 0 || r.Rate >= nyquist {
			return fmt.Errorf("tremolo rate must be in (0, %.0f), got %f", nyquist, r.Rate)
		}
		if r.Depth < 0 || r.Depth > 1 {
			return fmt.Errorf("tremolo depth must be in [0, 1], got %f", r.Depth)
		}
	default:
		return fmt.Errorf("invalid chain kind %d", int(r.Kind))
	}
	return nil
}

// ChainPolicy maps theme IDs to recipes; missing IDs are pass-through
type ChainPolicy map[string]ChainRecipe

// DefaultChainPolicy returns the built-in theme effects
func DefaultChainPolicy() ChainPolicy {
	return ChainPolicy{
		"forest": {Kind: ChainLowPass, Cutoff: constant.ForestLowPassCutoff},
		"fire":   {Kind: ChainHighPass, Cutoff: constant.FireHighPassCutoff},
		"ocean":  {Kind: ChainTremolo, Rate: constant.OceanTremoloRate, Depth: constant.OceanTremoloDepth},
	}
}

// Recipe returns the recipe for themeID, pass-through when unknown
func (p ChainPolicy) Recipe(themeID string) ChainRecipe {
	if r, ok := p[themeID]; ok {
		return r
	}
	return ChainRecipe{Kind: ChainPassThrough}
}

// With returns a copy of p with overrides applied on top
func (p ChainPolicy) With(overrides map[string]ChainRecipe) ChainPolicy {
	out := make(ChainPolicy, len(p)+len(overrides))
	for id, r := range p {
		out[id] = r
	}
	for id, r := range overrides {
		out[id] = r
	}
	return out
}

// buildChain wires source through recipe's stages into volume
// Pre-volume stages sit between source and volume; post-volume stages follow
// volume. Returns the node that must be connected to the master bus and every
// node allocated for the chain. All nodes are created before any connection,
// so on error nothing has been wired
func buildChain(c *Context, r ChainRecipe, source Node, volume *GainNode) (Node, []Node, error) {
	switch r.Kind {
	case ChainLowPass, ChainHighPass:
		typ := FilterLowPass
		if r.Kind == ChainHighPass {
			typ = FilterHighPass
		}
		filter := c.NewBiquadFilter(typ, r.Cutoff)
		source.Connect(filter)
		filter.Connect(volume)
		return volume, []Node{filter}, nil

	case ChainTremolo:
		lfo, err := c.NewOscillator(r.Rate)
		if err != nil {
			return nil, nil, err
		}
		depth := c.NewGain(r.Depth)
		carrier := c.NewGain(constant.OceanCarrierGain)

		// carrier gain = 1 + depth*sin(2πft)
		lfo.Connect(depth)
		depth.ConnectParam(carrier.Gain())
		source.Connect(volume)
		volume.Connect(carrier)
		lfo.Start()
		return carrier, []Node{lfo, depth, carrier}, nil

	default:
		source.Connect(volume)
		return volume, nil, nil
	}
}
