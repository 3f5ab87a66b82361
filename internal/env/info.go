package env

import (
	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/state"
	"github.com/danielpatrickdp/siteplan/internal/update"
)

// #region info
// SiteKey identifies a site by name.
type SiteKey struct {
	Category string `json:"category"`
	SiteType string `json:"site_type"`
}

// Info is the diagnostic record returned with every reset and step. Maps are
// snapshots; mutating them does not affect the environment.
type Info struct {
	CurrentPeriod                  int                `json:"current_period"`
	RemainingOverallBudget         float64            `json:"remaining_overall_budget"`
	RemainingRegionalBudgets       map[string]float64 `json:"remaining_regional_budgets"`
	ProjectsBuiltThisPeriod        int                `json:"projects_built_this_period"`
	SitesBuiltInCategoryThisPeriod map[string]int     `json:"sites_built_in_category_this_period"`
	TotalSitesBuiltInCategory      map[string]int     `json:"total_sites_built_in_category"`
	SiteBuiltMaskReadable          map[string]int     `json:"site_built_mask_readable"` // "Category/SiteType" -> 0|1
	PassActionIndex                int                `json:"pass_action_index"`

	// Set on steps only.
	ActionDescription string   `json:"action_description,omitempty"`
	ActionValid       bool     `json:"action_valid"`
	SiteBuiltKey      *SiteKey `json:"site_built_key"`
	Vetoes            []string `json:"vetoes,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// snapshot copies st into a fresh Info.
func snapshot(cat *catalog.Catalog, st *state.EpisodeState) Info {
	names := cat.Categories()
	info := Info{
		CurrentPeriod:                  st.Period,
		RemainingOverallBudget:         st.OverallBudget,
		RemainingRegionalBudgets:       make(map[string]float64, len(names)),
		ProjectsBuiltThisPeriod:        st.ProjectsThisPeriod,
		SitesBuiltInCategoryThisPeriod: make(map[string]int, len(names)),
		TotalSitesBuiltInCategory:      make(map[string]int, len(names)),
		SiteBuiltMaskReadable:          make(map[string]int, cat.NumSites()),
		PassActionIndex:                cat.PassAction(),
	}
	for ci, name := range names {
		info.RemainingRegionalBudgets[name] = st.RegionalBudget[ci]
		info.SitesBuiltInCategoryThisPeriod[name] = st.BuiltThisPeriod[ci]
		info.TotalSitesBuiltInCategory[name] = st.BuiltTotal[ci]
	}
	for _, site := range cat.Sites() {
		flag := 0
		if st.Built[site.Index] {
			flag = 1
		}
		info.SiteBuiltMaskReadable[site.Key()] = flag
	}
	return info
}

// withResult adds the per-step action fields.
func (info Info) withResult(res update.Result) Info {
	info.ActionDescription = res.Description
	info.ActionValid = res.ActionValid()
	if res.Site != nil {
		info.SiteBuiltKey = &SiteKey{Category: res.Site.CategoryName, SiteType: res.Site.SiteTypeName}
	}
	for _, v := range res.Vetoes {
		info.Vetoes = append(info.Vetoes, string(v.Type))
	}
	if res.Err != nil {
		info.Error = res.Err.Error()
	}
	return info
}

// #endregion info
