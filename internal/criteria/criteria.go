package criteria

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Count is the fixed number of criteria every score map carries.
const Count = 20

const (
	MinScore = 1
	MaxScore = 5
)

// RiskLevel identifies one of the four threat tiers.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskExtreme  RiskLevel = "extreme"
)

var riskLabels = map[RiskLevel]string{
	RiskLow:      "Low likelihood of a PSYOP",
	RiskModerate: "Moderate likelihood—look deeper",
	RiskHigh:     "Strong likelihood—manipulation likely",
	RiskExtreme:  "Overwhelming signs of a PSYOP",
}

// Label returns the human-readable description shown next to the gauge.
func (l RiskLevel) Label() string {
	return riskLabels[l]
}

// Criterion is one scoring question of the catalog.
type Criterion struct {
	ID       int    `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Question string `yaml:"question" json:"question"`
	Example  string `yaml:"example" json:"example"`
}

// ScoreRange maps an inclusive total range to a risk tier.
type ScoreRange struct {
	Min   int       `yaml:"min" json:"min"`
	Max   int       `yaml:"max" json:"max"`
	Level RiskLevel `yaml:"level" json:"level"`
	Color string    `yaml:"color" json:"color"`
}

// Contains reports whether total falls inside the closed range.
func (r ScoreRange) Contains(total int) bool {
	return total >= r.Min && total <= r.Max
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Criteria []Criterion  `yaml:"criteria"`
	Ranges   []ScoreRange `yaml:"ranges"`
}

var (
	catalog []Criterion
	ranges  []ScoreRange
	byID    map[int]Criterion
)

func init() {
	c, r, err := parseCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("criteria: %v", err))
	}
	catalog = c
	ranges = r
	byID = make(map[int]Criterion, len(c))
	for _, item := range c {
		byID[item.ID] = item
	}
}

func parseCatalog(raw []byte) ([]Criterion, []ScoreRange, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Criteria) != Count {
		return nil, nil, fmt.Errorf("catalog has %d criteria, want %d", len(file.Criteria), Count)
	}
	seen := make(map[int]bool, Count)
	for _, c := range file.Criteria {
		if c.ID < 1 || c.ID > Count {
			return nil, nil, fmt.Errorf("criterion id %d out of range", c.ID)
		}
		if seen[c.ID] {
			return nil, nil, fmt.Errorf("duplicate criterion id %d", c.ID)
		}
		seen[c.ID] = true
	}
	sort.Slice(file.Criteria, func(i, j int) bool { return file.Criteria[i].ID < file.Criteria[j].ID })

	if len(file.Ranges) == 0 {
		return nil, nil, fmt.Errorf("catalog has no score ranges")
	}
	for i, r := range file.Ranges {
		if _, ok := riskLabels[r.Level]; !ok {
			return nil, nil, fmt.Errorf("unknown risk level %q", r.Level)
		}
		if r.Min > r.Max {
			return nil, nil, fmt.Errorf("range %d: min %d > max %d", i, r.Min, r.Max)
		}
		if i > 0 && r.Min != file.Ranges[i-1].Max+1 {
			return nil, nil, fmt.Errorf("range %d does not continue range %d", i, i-1)
		}
	}
	return file.Criteria, file.Ranges, nil
}

// All returns the criteria ordered by id.
func All() []Criterion {
	out := make([]Criterion, len(catalog))
	copy(out, catalog)
	return out
}

// Ranges returns the score buckets from lowest to highest.
func Ranges() []ScoreRange {
	out := make([]ScoreRange, len(ranges))
	copy(out, ranges)
	return out
}

// IDs returns the known criterion ids in ascending order.
func IDs() []int {
	out := make([]int, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.ID)
	}
	return out
}

// Lookup returns the criterion with the given id.
func Lookup(id int) (Criterion, bool) {
	c, ok := byID[id]
	return c, ok
}

// Known reports whether id belongs to the catalog.
func Known(id int) bool {
	_, ok := byID[id]
	return ok
}

// ClampScore forces a score into [MinScore, MaxScore].
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// ResolveRiskTier returns the first range containing total. Totals outside
// every range (impossible for a valid score map, possible after a corrupted
// load) fall back to the lowest range.
func ResolveRiskTier(total int) ScoreRange {
	for _, r := range ranges {
		if r.Contains(total) {
			return r
		}
	}
	return ranges[0]
}
