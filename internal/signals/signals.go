// Package signals implements keyword-based ownership confidence scoring.
//
// The analyzer is deliberately conservative: it favors precision over recall
// because every staged candidate passes through manual review. It is a pure
// function over its input text with no I/O and no error path.
package signals

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsYAML []byte

// MaxScore caps the aggregate confidence score.
const MaxScore = 100

type tier struct {
	Name     string   `yaml:"name"`
	Weight   int      `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

type keywordTable struct {
	Version int    `yaml:"version"`
	Tiers   []tier `yaml:"tiers"`
}

// table is loaded once from the embedded YAML. The file is part of the
// binary, so a parse failure is a build defect and panics at init.
var table keywordTable

func init() {
	if err := yaml.Unmarshal(keywordsYAML, &table); err != nil {
		panic(fmt.Sprintf("signals: parse embedded keyword table: %v", err))
	}
}

// TableVersion returns the version of the embedded keyword table.
func TableVersion() int {
	return table.Version
}

// Result holds the outcome of analyzing one text blob.
type Result struct {
	Score   int      `json:"score"`
	Signals []string `json:"signals"`
}

// Analyze scores text against the keyword table. Matching is case-insensitive
// substring. Signals preserve table order (which makes the result independent
// of keyword order within the text) and are de-duplicated. The score is the
// sum of matched keyword weights, capped at MaxScore.
func Analyze(text string) Result {
	lower := strings.ToLower(text)

	var res Result
	seen := make(map[string]bool)
	for _, t := range table.Tiers {
		for _, kw := range t.Keywords {
			if seen[kw] {
				continue
			}
			if strings.Contains(lower, kw) {
				seen[kw] = true
				res.Signals = append(res.Signals, kw)
				res.Score += t.Weight
			}
		}
	}

	if res.Score > MaxScore {
		res.Score = MaxScore
	}
	return res
}
