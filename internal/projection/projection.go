package projection

import (
	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// regionalEpsilon is the threshold above which a remaining regional budget
// counts as positive when the category started with no budget.
const regionalEpsilon = 1e-6

// #region segment-map
// SegmentMap names the half-open index ranges of the observation vector.
type SegmentMap struct {
	Period         [2]int `json:"period"`
	OverallBudget  [2]int `json:"overall_budget"`
	Projects       [2]int `json:"projects"`
	CategoryPeriod [2]int `json:"category_period"`
	CategoryTotal  [2]int `json:"category_total"`
	RegionalBudget [2]int `json:"regional_budget"`
	Built          [2]int `json:"built"`
}

// Segments returns the layout for cat. It depends only on the catalog, so it
// is identical for every episode built from the same configuration.
func Segments(cat *catalog.Catalog) SegmentMap {
	nc, ns := cat.NumCategories(), cat.NumSites()
	return SegmentMap{
		Period:         [2]int{0, 1},
		OverallBudget:  [2]int{1, 2},
		Projects:       [2]int{2, 3},
		CategoryPeriod: [2]int{3, 3 + nc},
		CategoryTotal:  [2]int{3 + nc, 3 + 2*nc},
		RegionalBudget: [2]int{3 + 2*nc, 3 + 3*nc},
		Built:          [2]int{3 + 3*nc, 3 + 3*nc + ns},
	}
}

// Segment is one named index range [lo, hi) of the observation.
type Segment struct {
	Name  string
	Range [2]int
}

// Named lists the segments in layout order.
func (m SegmentMap) Named() []Segment {
	return []Segment{
		{"period", m.Period},
		{"overall_budget", m.OverallBudget},
		{"projects", m.Projects},
		{"category_period", m.CategoryPeriod},
		{"category_total", m.CategoryTotal},
		{"regional_budget", m.RegionalBudget},
		{"built", m.Built},
	}
}

// #endregion segment-map

// #region project
// Project encodes st into a new observation vector of cat.ObservationSize().
func Project(cat *catalog.Catalog, st *state.EpisodeState) []float32 {
	return ProjectInto(make([]float32, cat.ObservationSize()), cat, st)
}

// ProjectInto writes the observation into dst, which must have length
// cat.ObservationSize(), and returns it.
//
// Only the regional budget fractions are clamped to [0,1]. The period,
// overall budget and count fractions are emitted as computed; the period
// fraction exceeds 1 once the final pass has advanced past the last period.
func ProjectInto(dst []float32, cat *catalog.Catalog, st *state.EpisodeState) []float32 {
	seg := Segments(cat)
	limits := cat.Limits()

	dst[seg.Period[0]] = periodProgress(st.Period, cat.Periods())
	dst[seg.OverallBudget[0]] = float32(ratio(st.OverallBudget, cat.InitialOverallBudget()))
	dst[seg.Projects[0]] = float32(countRatio(st.ProjectsThisPeriod, limits.ProjectsPerPeriod))

	for ci := 0; ci < cat.NumCategories(); ci++ {
		dst[seg.CategoryPeriod[0]+ci] = float32(countRatio(st.BuiltThisPeriod[ci], limits.SitesInCategoryPerPeriod))
		dst[seg.CategoryTotal[0]+ci] = float32(countRatio(st.BuiltTotal[ci], limits.TotalSitesInCategory))
		dst[seg.RegionalBudget[0]+ci] = regionalFraction(st.RegionalBudget[ci], cat.InitialRegionalBudget(ci))
	}

	for i, built := range st.Built {
		if built {
			dst[seg.Built[0]+i] = 1
		} else {
			dst[seg.Built[0]+i] = 0
		}
	}
	return dst
}

// #endregion project

// #region helpers
func periodProgress(period, periods int) float32 {
	if periods <= 0 {
		return 0
	}
	denom := float64(periods - 1)
	if denom < 1 {
		denom = 1
	}
	return float32(float64(period) / denom)
}

func ratio(remaining, initial float64) float64 {
	if initial <= 0 {
		return 0
	}
	return remaining / initial
}

func countRatio(count, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(count) / float64(limit)
}

func regionalFraction(remaining, initial float64) float32 {
	var v float64
	if initial <= 0 {
		if remaining > regionalEpsilon {
			v = 1
		}
	} else {
		v = remaining / initial
	}
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	return float32(v)
}

// #endregion helpers
