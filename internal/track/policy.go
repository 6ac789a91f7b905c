package track

import (
	"fmt"
	"sort"

	"github.com/voxelmind/go-perception/internal/evidence"
)

// #region danger

// Danger is the coarse danger category a kind belongs to. Threat level is a
// monotone function of danger and proximity; the category is what the policy
// table keys distance bands on.
type Danger int

const (
	DangerBenign Danger = iota
	DangerGuarded
	DangerHostile
	DangerLethal
)

var dangerNames = map[string]Danger{
	"benign":  DangerBenign,
	"guarded": DangerGuarded,
	"hostile": DangerHostile,
	"lethal":  DangerLethal,
}

// #endregion danger

// #region policy-spec

// PolicySpec is the serializable form of a threat policy table. The exact
// thresholds are tuning, not correctness, so operators can override the
// compiled-in defaults from the config file.
type PolicySpec struct {
	Kinds      map[string]KindSpec   `yaml:"kinds" json:"kinds"`
	Categories map[string][]BandSpec `yaml:"categories" json:"categories"`
}

// KindSpec assigns one kind to a danger category. Predator kinds are gated
// to ThreatNone while line of sight is blocked.
type KindSpec struct {
	Category string `yaml:"category" json:"category"`
	Predator bool   `yaml:"predator" json:"predator"`
}

// BandSpec maps a distance band (dist bucket <= max_dist) to a threat level.
type BandSpec struct {
	MaxDist int    `yaml:"max_dist" json:"max_dist"`
	Level   string `yaml:"level" json:"level"`
}

// DefaultPolicySpec returns the shipped policy table.
func DefaultPolicySpec() PolicySpec {
	return PolicySpec{
		Kinds: map[string]KindSpec{
			"creeper":   {Category: "lethal", Predator: true},
			"zombie":    {Category: "hostile", Predator: true},
			"skeleton":  {Category: "hostile", Predator: true},
			"spider":    {Category: "hostile", Predator: true},
			"witch":     {Category: "hostile", Predator: true},
			"enderman":  {Category: "guarded", Predator: false},
			"wolf":      {Category: "guarded", Predator: false},
			"player":    {Category: "guarded", Predator: false},
			"villager":  {Category: "benign", Predator: false},
			"livestock": {Category: "benign", Predator: false},
			"item":      {Category: "benign", Predator: false},
			"unknown":   {Category: "benign", Predator: false},
		},
		Categories: map[string][]BandSpec{
			"lethal": {
				{MaxDist: 1, Level: "critical"},
				{MaxDist: 3, Level: "high"},
				{MaxDist: 5, Level: "medium"},
				{MaxDist: 8, Level: "low"},
			},
			"hostile": {
				{MaxDist: 1, Level: "high"},
				{MaxDist: 3, Level: "medium"},
				{MaxDist: 6, Level: "low"},
			},
			"guarded": {
				{MaxDist: 2, Level: "medium"},
				{MaxDist: 5, Level: "low"},
			},
			"benign": {},
		},
	}
}

// #endregion policy-spec

// #region policy

type band struct {
	maxDist int
	level   ThreatLevel
}

type kindRule struct {
	danger   Danger
	predator bool
}

// Policy is a compiled threat policy table. Compilation validates the table
// once so Classify never has to error.
type Policy struct {
	kinds map[evidence.Kind]kindRule
	bands map[Danger][]band
}

// CompilePolicy validates a PolicySpec and compiles it into a Policy.
// Validation is strict: a malformed table is a configuration error, caught
// at load time rather than surfacing as bad classifications at runtime.
func CompilePolicy(spec PolicySpec) (*Policy, error) {
	p := &Policy{
		kinds: make(map[evidence.Kind]kindRule, len(spec.Kinds)),
		bands: make(map[Danger][]band),
	}

	for name, ks := range spec.Kinds {
		danger, ok := dangerNames[ks.Category]
		if !ok {
			return nil, fmt.Errorf("policy: kind %q has unknown category %q", name, ks.Category)
		}
		if !evidence.IsKind(name) {
			return nil, fmt.Errorf("policy: %q is not a recognized kind enum value", name)
		}
		p.kinds[evidence.Kind(name)] = kindRule{danger: danger, predator: ks.Predator}
	}

	for catName, specs := range spec.Categories {
		danger, ok := dangerNames[catName]
		if !ok {
			return nil, fmt.Errorf("policy: unknown category %q", catName)
		}
		bands := make([]band, 0, len(specs))
		for _, bs := range specs {
			lvl := ParseThreatLevel(bs.Level)
			if lvl.String() != bs.Level {
				return nil, fmt.Errorf("policy: category %q has unknown level %q", catName, bs.Level)
			}
			bands = append(bands, band{maxDist: bs.MaxDist, level: lvl})
		}
		sort.Slice(bands, func(i, j int) bool { return bands[i].maxDist < bands[j].maxDist })
		// Monotonicity: closer bands must not be less severe than farther ones.
		for i := 1; i < len(bands); i++ {
			if bands[i].level > bands[i-1].level {
				return nil, fmt.Errorf("policy: category %q is not monotone at max_dist %d", catName, bands[i].maxDist)
			}
		}
		p.bands[danger] = bands
	}

	// Every referenced category needs a band table (possibly empty).
	for kind, rule := range p.kinds {
		if _, ok := p.bands[rule.danger]; !ok {
			return nil, fmt.Errorf("policy: kind %q references category with no bands", kind)
		}
	}

	return p, nil
}

// DefaultPolicy compiles the shipped table. The defaults are known-valid, so
// a compile failure here is a programming error.
func DefaultPolicy() *Policy {
	p, err := CompilePolicy(DefaultPolicySpec())
	if err != nil {
		panic(fmt.Sprintf("default policy invalid: %v", err))
	}
	return p
}

// Classify maps one observation to a threat level. Unknown kinds never
// elevate, and predator kinds with blocked line of sight are gated to
// ThreatNone: the tracker must not claim a threat it cannot see.
func (p *Policy) Classify(kind evidence.Kind, distBucket int, los evidence.LOS) ThreatLevel {
	rule, ok := p.kinds[kind]
	if !ok {
		return ThreatNone
	}
	if rule.predator && los == evidence.LOSBlocked {
		return ThreatNone
	}
	for _, b := range p.bands[rule.danger] {
		if distBucket <= b.maxDist {
			return b.level
		}
	}
	return ThreatNone
}

// #endregion policy
