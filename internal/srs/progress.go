package srs

import (
	"math"

	"github.com/samber/lo"
)

const pointsPerKanji = 5

// LevelProgress scores a level's kanji: a passed kanji is worth the full five
// points and any other kanji is worth its stage, capped at five.
type LevelProgress struct {
	Level   int
	Gained  int
	Total   int
	Percent int
}

// KanjiProgress is one kanji of the level. Stage is Lesson for kanji that
// have not been started.
type KanjiProgress struct {
	Stage  Stage
	Passed bool
}

func ComputeLevelProgress(level int, kanji []KanjiProgress) LevelProgress {
	total := len(kanji) * pointsPerKanji
	gained := lo.SumBy(kanji, func(k KanjiProgress) int {
		if k.Passed {
			return pointsPerKanji
		}
		return min(int(k.Stage), pointsPerKanji)
	})
	out := LevelProgress{Level: level, Gained: gained, Total: total}
	if total > 0 {
		out.Percent = int(math.Round(float64(gained) / float64(total) * 100))
	}
	return out
}

// Fraction is Percent in [0,1] for progress bars.
func (p LevelProgress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Gained) / float64(p.Total)
}

// GroupCounts tallies stages into the review groups. Lesson stages are left
// out.
func GroupCounts(stages []Stage) map[Group]int {
	counts := lo.CountValuesBy(lo.Filter(stages, func(s Stage, _ int) bool { return s > Lesson }), func(s Stage) Group {
		return s.Group()
	})
	for _, g := range Groups {
		if _, ok := counts[g]; !ok {
			counts[g] = 0
		}
	}
	return counts
}
