package audio

import (
	"testing"

	"gopkg.in/yaml.v3"
)

// TestChainRecipeYAML verifies recipes decode from theme files
func TestChainRecipeYAML(t *testing.T) {
	src := `
type: lowpass
cutoff: 800
`
	var r ChainRecipe
	if err := yaml.Unmarshal([]byte(src), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Kind != ChainLowPass || r.Cutoff != 800 {
		t.Errorf("Expected lowpass at 800, got %+v", r)
	}

	var bad ChainRecipe
	if err := yaml.Unmarshal([]byte("type: reverb"), &bad); err == nil {
		t.Error("Expected error for unknown chain type")
	}
}

// TestChainRecipeValidate verifies per-variant parameter ranges
func TestChainRecipeValidate(t *testing.T) {
	testCases := []struct {
		name string
		r    ChainRecipe
		ok   bool
	}{
		{"passthrough", ChainRecipe{Kind: ChainPassThrough}, true},
		{"lowpass", ChainRecipe{Kind: ChainLowPass, Cutoff: 600}, true},
		{"lowpass zero", ChainRecipe{Kind: ChainLowPass}, false},
		{"highpass nyquist", ChainRecipe{Kind: ChainHighPass, Cutoff: 22050}, false},
		{"tremolo", ChainRecipe{Kind: ChainTremolo, Rate: 0.15, Depth: 0.5}, true},
		{"tremolo depth", ChainRecipe{Kind: ChainTremolo, Rate: 0.15, Depth: 2}, false},
		{"tremolo rate", ChainRecipe{Kind: ChainTremolo, Depth: 0.5}, false},
		{"invalid kind", ChainRecipe{Kind: ChainKind(9)}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.r.Validate(44100)
			if tc.ok != (err == nil) {
				t.Errorf("Expected ok=%v, got %v", tc.ok, err)
			}
		})
	}
}

// TestChainPolicy verifies defaults, fallback and overrides
func TestChainPolicy(t *testing.T) {
	p := DefaultChainPolicy()

	if r := p.Recipe("forest"); r.Kind != ChainLowPass || r.Cutoff != 600 {
		t.Errorf("Expected forest lowpass 600, got %+v", r)
	}
	if r := p.Recipe("fire"); r.Kind != ChainHighPass || r.Cutoff != 150 {
		t.Errorf("Expected fire highpass 150, got %+v", r)
	}
	if r := p.Recipe("ocean"); r.Kind != ChainTremolo || r.Rate != 0.15 || r.Depth != 0.5 {
		t.Errorf("Expected ocean tremolo, got %+v", r)
	}
	if r := p.Recipe("rain"); r.Kind != ChainPassThrough {
		t.Errorf("Expected rain pass-through, got %+v", r)
	}

	q := p.With(map[string]ChainRecipe{
		"rain":   {Kind: ChainLowPass, Cutoff: 2000},
		"forest": {Kind: ChainPassThrough},
	})
	if r := q.Recipe("rain"); r.Kind != ChainLowPass {
		t.Errorf("Expected rain override, got %+v", r)
	}
	if r := q.Recipe("forest"); r.Kind != ChainPassThrough {
		t.Errorf("Expected forest override, got %+v", r)
	}
	if r := p.Recipe("forest"); r.Kind != ChainLowPass {
		t.Error("Expected With to leave the original policy untouched")
	}
}

// TestChainKindText verifies text round trip names
func TestChainKindText(t *testing.T) {
	for k := ChainPassThrough; k < chainKindCount; k++ {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) failed: %v", k, err)
		}
		var back ChainKind
		if err := back.UnmarshalText(text); err != nil || back != k {
			t.Errorf("Expected %s back, got %s (%v)", k, back, err)
		}
	}
	if _, err := ChainKind(-1).MarshalText(); err == nil {
		t.Error("Expected error for invalid kind")
	}
}

// TestEngineInvalidRecipeFallsBack verifies a bad override plays pass-through
func TestEngineInvalidRecipeFallsBack(t *testing.T) {
	policy := DefaultChainPolicy().With(map[string]ChainRecipe{
		"storm": {Kind: ChainLowPass, Cutoff: 50000},
	})
	e, _, _ := newTestEngine(t, WithChainPolicy(policy))

	e.Play("storm", NoiseWhite, 0.5)
	info, ok := e.Snapshot("storm")
	if !ok {
		t.Fatal("Expected storm to play")
	}
	if info.Chain != ChainPassThrough || info.Nodes != 2 {
		t.Errorf("Expected pass-through fallback, got %+v", info)
	}
}
