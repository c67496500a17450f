package service

import (
	_ "embed"
	"fmt"

	"ielts_exam_backend/internal/model"

	"gopkg.in/yaml.v3"
)

const maxRawScore = 40

//go:embed band_tables.yaml
var bandTablesYAML []byte

type bandRange struct {
	Min  int     `yaml:"min"`
	Max  int     `yaml:"max"`
	Band float64 `yaml:"band"`
}

// BandTable 原始分 0..40 对应的分数段
type BandTable [maxRawScore + 1]float64

// Band 超出 40 的原始分按 40 计
func (t *BandTable) Band(raw int) float64 {
	if raw < 0 {
		return 0
	}
	if raw > maxRawScore {
		raw = maxRawScore
	}
	return t[raw]
}

var defaultBandTables = mustParseBandTables(bandTablesYAML)

func mustParseBandTables(data []byte) map[model.Skill]*BandTable {
	tables, err := ParseBandTables(data)
	if err != nil {
		panic(err)
	}
	return tables
}

// ParseBandTables 解析换算表，要求每张表恰好覆盖 0..40 且单调不减
func ParseBandTables(data []byte) (map[model.Skill]*BandTable, error) {
	var raw map[string][]bandRange
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	tables := make(map[model.Skill]*BandTable, len(raw))
	for name, ranges := range raw {
		table, err := buildBandTable(ranges)
		if err != nil {
			return nil, fmt.Errorf("band table %s: %w", name, err)
		}
		tables[model.Skill(name)] = table
	}

	for _, skill := range []model.Skill{model.SkillListening, model.SkillReading} {
		if _, ok := tables[skill]; !ok {
			return nil, fmt.Errorf("band table %s is missing", skill)
		}
	}
	return tables, nil
}

func buildBandTable(ranges []bandRange) (*BandTable, error) {
	var table BandTable
	var filled [maxRawScore + 1]bool

	for _, r := range ranges {
		if r.Min < 0 || r.Max > maxRawScore || r.Min > r.Max {
			return nil, fmt.Errorf("invalid range %d-%d", r.Min, r.Max)
		}
		for i := r.Min; i <= r.Max; i++ {
			if filled[i] {
				return nil, fmt.Errorf("raw score %d covered twice", i)
			}
			filled[i] = true
			table[i] = r.Band
		}
	}

	for i := 0; i <= maxRawScore; i++ {
		if !filled[i] {
			return nil, fmt.Errorf("raw score %d not covered", i)
		}
		if i > 0 && table[i] < table[i-1] {
			return nil, fmt.Errorf("band decreases at raw score %d", i)
		}
	}
	return &table, nil
}
