package pattern

import (
	"sort"
	"time"
)

// maxInstances bounds the per-pattern instance history used for template
// recomputation.
const maxInstances = 20

// Pattern is a learned regularity: the template holds the features common
// to at least half of the observed instances.
type Pattern struct {
	ID             string              `json:"id"`
	Template       []string            `json:"template"`
	Strength       float64             `json:"strength"`
	Confidence     float64             `json:"confidence"`
	Instances      [][]string          `json:"instances"`
	HierarchyLevel int                 `json:"hierarchy_level"`
	Links          map[string]float64  `json:"links,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	LastMatched    time.Time           `json:"last_matched"`
}

// addInstance appends an observation, dropping the oldest when over the cap.
func (p *Pattern) addInstance(features []string) {
	p.Instances = append(p.Instances, append([]string(nil), features...))
	if len(p.Instances) > maxInstances {
		p.Instances = p.Instances[1:]
	}
}

// recomputeTemplate rebuilds the template as the set of features present in
// at least 50% of the instances.
func (p *Pattern) recomputeTemplate() {
	counts := make(map[string]int)
	for _, inst := range p.Instances {
		for _, f := range inst {
			counts[f]++
		}
	}
	threshold := (len(p.Instances) + 1) / 2
	template := make([]string, 0, len(counts))
	for f, n := range counts {
		if n >= threshold {
			template = append(template, f)
		}
	}
	sort.Strings(template)
	p.Template = template
}

// distinctFeatureCount is the number of distinct features across all
// instances, the denominator of the confidence formula.
func (p *Pattern) distinctFeatureCount() int {
	seen := make(map[string]bool)
	for _, inst := range p.Instances {
		for _, f := range inst {
			seen[f] = true
		}
	}
	return len(seen)
}

// recomputeConfidence blends template consistency with instance count.
func (p *Pattern) recomputeConfidence() {
	distinct := p.distinctFeatureCount()
	if distinct == 0 {
		p.Confidence = 0
		return
	}
	consistency := float64(len(p.Template)) / float64(distinct)
	experience := float64(len(p.Instances)) / 10
	if experience > 1 {
		experience = 1
	}
	p.Confidence = consistency*0.7 + experience*0.3
}
