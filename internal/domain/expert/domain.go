// Package expert defines the expert descriptor model, the closed domain
// vocabulary, routing selections and the callable contract used by the
// token dispatch pool.
package expert

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDomain is returned when a domain label is not part of the closed set.
var ErrUnknownDomain = errors.New("unknown expert domain")

// Domain groups experts by area of knowledge.
type Domain string

const (
	DomainCore          Domain = "core"
	DomainMusicTheory   Domain = "music_theory"
	DomainThreeDPrint   Domain = "3d_printing"
	DomainUIUXDesign    Domain = "ui_ux_design"
	DomainEngineering   Domain = "engineering"
	DomainMathematics   Domain = "mathematics"
	DomainSecurity      Domain = "security"
	DomainPerformance   Domain = "performance"
	DomainDocumentation Domain = "documentation"
	DomainTesting       Domain = "testing"
	DomainDeployment    Domain = "deployment"
	DomainAIML          Domain = "ai_ml"
	DomainDataScience   Domain = "data_science"
	DomainEthics        Domain = "ethics"
	DomainResearch      Domain = "research"
)

var allDomains = []Domain{
	DomainCore,
	DomainMusicTheory,
	DomainThreeDPrint,
	DomainUIUXDesign,
	DomainEngineering,
	DomainMathematics,
	DomainSecurity,
	DomainPerformance,
	DomainDocumentation,
	DomainTesting,
	DomainDeployment,
	DomainAIML,
	DomainDataScience,
	DomainEthics,
	DomainResearch,
}

// AllDomains returns every known domain in declaration order.
func AllDomains() []Domain {
	out := make([]Domain, len(allDomains))
	copy(out, allDomains)
	return out
}

// ParseDomain converts a label into a Domain, rejecting anything outside the closed set.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
	}
	return d, nil
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	for _, known := range allDomains {
		if d == known {
			return true
		}
	}
	return false
}

// Phrase is the label as it would appear in prose ("ui_ux_design" -> "ui ux design").
func (d Domain) Phrase() string {
	return strings.ReplaceAll(string(d), "_", " ")
}

// DisplayName is the title-cased phrase ("ui_ux_design" -> "Ui Ux Design").
func (d Domain) DisplayName() string {
	words := strings.Fields(d.Phrase())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (d Domain) String() string { return string(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Domain) MarshalText() ([]byte, error) {
	return []byte(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown labels.
func (d *Domain) UnmarshalText(b []byte) error {
	parsed, err := ParseDomain(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
