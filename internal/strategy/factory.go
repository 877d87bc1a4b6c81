package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// Kind names an agent implementation.
type Kind string

const (
	KindLorentzian    Kind = "lorentzian"
	KindSFP           Kind = "sfp"
	KindTrendFollower Kind = "trend_follower"
	KindPanicSeller   Kind = "panic_seller"
)

// Settings carries per-kind parameters; only the section for the built kind is read.
type Settings struct {
	Lorentzian LorentzianConfig    `yaml:"lorentzian"`
	SFP        SFPConfig           `yaml:"sfp"`
	Trend      TrendFollowerConfig `yaml:"trend"`
	Panic      PanicSellerConfig   `yaml:"panic"`
}

var defaultMagic = map[Kind]int{
	KindLorentzian:    5005,
	KindSFP:           888,
	KindTrendFollower: 1001,
	KindPanicSeller:   2002,
}

// DefaultMagic is the strategy identifier used when none is configured.
func DefaultMagic(k Kind) int {
	return defaultMagic[k]
}

// Kinds lists every buildable kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(defaultMagic))
	for k := range defaultMagic {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Build constructs an agent by kind. magic 0 selects the kind's default identifier.
func Build(kind Kind, name, symbol string, magic int, s Settings) (Agent, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(string(kind))))
	if magic == 0 {
		magic = defaultMagic[k]
	}
	switch k {
	case KindLorentzian:
		a, err := NewLorentzian(name, symbol, magic, s.Lorentzian)
		if err != nil {
			return nil, err
		}
		return a, nil
	case KindSFP:
		a, err := NewSFP(name, symbol, magic, s.SFP)
		if err != nil {
			return nil, err
		}
		return a, nil
	case KindTrendFollower:
		a, err := NewTrendFollower(name, symbol, magic, s.Trend)
		if err != nil {
			return nil, err
		}
		return a, nil
	case KindPanicSeller:
		a, err := NewPanicSeller(name, symbol, magic, s.Panic)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", kind)
	}
}
