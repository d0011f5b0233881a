package rmib

import (
	"sort"

	"github.com/stemsi/exstem-rmib/internal/model"
)

// RankScores maps rank 1..12 (index 0..11) to points.
var RankScores = [...]int{60, 55, 50, 45, 40, 35, 30, 25, 20, 15, 10, 5}

// LevelPoints is the points per level step in level mode.
const LevelPoints = 5

// ScoreOfRank returns the table score for a rank, 0 outside the table.
func ScoreOfRank(rank int) int {
	if rank < 1 || rank > len(RankScores) {
		return 0
	}
	return RankScores[rank-1]
}

// ScoreOfLevel returns level*5, 0 outside [1,12].
func ScoreOfLevel(level int) int {
	if level < MinValue || level > MaxLevel {
		return 0
	}
	return level * LevelPoints
}

// RankTableTotal is the total of a complete ranking, computed from the table.
func RankTableTotal() int {
	total := 0
	for _, s := range RankScores {
		total += s
	}
	return total
}

// Interest is one category in a ranked summary.
type Interest struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	Score    int    `json:"score"`
}

// Summary is the derived result of an assignment.
type Summary struct {
	Scores map[string]int `json:"scores"`
	Total  int            `json:"total"`
	// Top holds up to three interests, strongest first.
	Top []Interest `json:"top"`
}

// Primary returns the strongest interest, if any entry is filled.
func (s Summary) Primary() (Interest, bool) {
	if len(s.Top) == 0 {
		return Interest{}, false
	}
	return s.Top[0], true
}

// Scorer derives points from an assignment.
type Scorer struct {
	mode       Mode
	categories []model.Category
}

// NewScorer creates a Scorer for the given mode and catalog.
func NewScorer(mode Mode, categories []model.Category) *Scorer {
	return &Scorer{mode: mode, categories: categories}
}

// ScoreOf scores a single value under the scorer's mode.
func (sc *Scorer) ScoreOf(value int) int {
	if sc.mode == ModeRank {
		return ScoreOfRank(value)
	}
	return ScoreOfLevel(value)
}

// Total sums the score of every filled entry.
func (sc *Scorer) Total(values map[string]int) int {
	total := 0
	for _, c := range sc.categories {
		if value, ok := values[c.Key]; ok {
			total += sc.ScoreOf(value)
		}
	}
	return total
}

// Summarize returns per-category scores and the top three interests.
// Ranks order ascending, levels descending; ties keep declaration order.
func (sc *Scorer) Summarize(values map[string]int) Summary {
	sum := Summary{Scores: make(map[string]int, len(values))}

	var filled []Interest
	for _, c := range sc.categories {
		value, ok := values[c.Key]
		if !ok {
			continue
		}
		score := sc.ScoreOf(value)
		sum.Scores[c.Key] = score
		sum.Total += score
		filled = append(filled, Interest{Category: c.Key, Value: value, Score: score})
	}

	sort.SliceStable(filled, func(i, j int) bool {
		if sc.mode == ModeRank {
			return filled[i].Value < filled[j].Value
		}
		return filled[i].Value > filled[j].Value
	})
	if len(filled) > 3 {
		filled = filled[:3]
	}
	sum.Top = filled

	return sum
}
