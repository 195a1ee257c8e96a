package expert

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Strob0t/moecore/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMatchQuery_Components(t *testing.T) {
	d := Descriptor{
		ID:             "sec",
		Name:           "Sec",
		Domain:         DomainSecurity,
		Expertise:      "threat modeling",
		Specialization: "web apps",
		Keywords:       []string{"xss", "csrf", "injection", "auth"},
	}

	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"no match", "bake a cake", 0},
		{"one keyword", "prevent XSS", 0.2},
		{"two keywords", "xss and csrf", 0.4},
		{"keyword cap", "xss csrf injection auth", 0.6},
		{"expertise", "do threat modeling now", 0.3},
		{"specialization", "harden web apps", 0.2},
		{"domain phrase", "a security review", 0.1},
		{"everything capped", "security threat modeling for web apps: xss csrf injection auth", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.MatchQuery(tt.query); !approx(got, tt.want) {
				t.Fatalf("MatchQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestMatchQuery_DomainPhraseUsesSpaces(t *testing.T) {
	d := Descriptor{ID: "ux", Name: "UX", Domain: DomainUIUXDesign}
	if got := d.MatchQuery("improve the ui ux design of the app"); !approx(got, 0.1) {
		t.Fatalf("got %v, want 0.1", got)
	}
	if got := d.MatchQuery("ui_ux_design"); got != 0 {
		t.Fatalf("underscored label must not match, got %v", got)
	}
}

func TestMatchQuery_EmptyFieldsNeverMatch(t *testing.T) {
	d := Descriptor{ID: "x", Name: "X", Domain: DomainCore, Keywords: []string{""}}
	if got := d.MatchQuery("anything at all"); got != 0 {
		t.Fatalf("empty expertise/specialization/keyword matched: %v", got)
	}
}

func TestMatchQuery_BoundedAndMonotonic(t *testing.T) {
	kws := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	d := Descriptor{ID: "m", Name: "M", Domain: DomainResearch, Keywords: kws}

	prev := -1.0
	for n := 0; n <= len(kws); n++ {
		q := strings.Join(kws[:n], " ")
		got := d.MatchQuery(q)
		if got < 0 || got > 1 {
			t.Fatalf("score %v out of range for %d keywords", got, n)
		}
		if got < prev {
			t.Fatalf("score decreased from %v to %v at %d keywords", prev, got, n)
		}
		prev = got
	}
}

func TestMatchedKeywords_PreservesOrder(t *testing.T) {
	d := Descriptor{Keywords: []string{"mesh", "Model", "gcode"}}
	got := d.MatchedKeywords("fix the MODEL and mesh")
	if len(got) != 2 || got[0] != "mesh" || got[1] != "Model" {
		t.Fatalf("got %v", got)
	}
}

func TestValidate(t *testing.T) {
	valid := Descriptor{ID: "a", Name: "A", Domain: DomainCore}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		d    Descriptor
	}{
		{"missing id", Descriptor{Name: "A", Domain: DomainCore}},
		{"missing name", Descriptor{ID: "a", Domain: DomainCore}},
		{"bad domain", Descriptor{ID: "a", Name: "A", Domain: "astrology"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	bad := Descriptor{ID: "a", Name: "A", Domain: "astrology"}
	if err := bad.Validate(); !errors.Is(err, ErrUnknownDomain) {
		t.Fatalf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	d := Descriptor{Keywords: []string{"mesh", " Mesh ", "", "stl", "mesh"}}
	d.Normalize()
	if d.Version != DefaultVersion {
		t.Fatalf("version = %q", d.Version)
	}
	if len(d.Keywords) != 2 || d.Keywords[0] != "mesh" || d.Keywords[1] != "stl" {
		t.Fatalf("keywords = %v", d.Keywords)
	}
	if d.Dependencies == nil {
		t.Fatal("dependencies should be non-nil after normalize")
	}
}

func TestClone_IsDeep(t *testing.T) {
	p := "/models/a.bin"
	d := &Descriptor{ID: "a", Keywords: []string{"x"}, ModelPath: &p}
	c := d.Clone()
	c.Keywords[0] = "y"
	*c.ModelPath = "/other"
	if d.Keywords[0] != "x" || *d.ModelPath != "/models/a.bin" {
		t.Fatal("clone shares state with original")
	}
}

func TestDescriptorJSON_DomainAsLabel(t *testing.T) {
	d := Descriptor{ID: "a", Name: "A", Domain: DomainThreeDPrint}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"domain":"3d_printing"`) {
		t.Fatalf("domain not encoded as label: %s", b)
	}
	if strings.Contains(string(b), "model_path") {
		t.Fatalf("absent path should be omitted: %s", b)
	}

	var back Descriptor
	if err := json.Unmarshal([]byte(`{"expert_id":"a","name":"A","domain":"astrology"}`), &back); err == nil {
		t.Fatal("expected unknown domain to be rejected on decode")
	}
}

func TestDescriptorDecodeDefaults(t *testing.T) {
	var d Descriptor
	if err := json.Unmarshal([]byte(`{"expert_id":"a","name":"A","domain":"core"}`), &d); err != nil {
		t.Fatal(err)
	}
	if !d.Enabled || d.Version != DefaultVersion {
		t.Fatalf("defaults not applied: enabled=%v version=%q", d.Enabled, d.Version)
	}

	if err := json.Unmarshal([]byte(`{"expert_id":"a","name":"A","domain":"core","enabled":false}`), &d); err != nil {
		t.Fatal(err)
	}
	if d.Enabled {
		t.Fatal("explicit enabled=false was overridden")
	}
}
