package catalog

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// #region errors
var (
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrDuplicateSiteType = errors.New("duplicate site type")
	ErrReservedSeparator = errors.New("name contains the site key separator")
)

// #endregion errors

// #region config
// Config is the external configuration record. It is consumed once, at
// catalog construction, and never mutated by the environment.
type Config struct {
	Periods                     int      `yaml:"Periods" json:"periods" validate:"gt=0"`
	TotalOverallBudget          *float64 `yaml:"Total_Overall_Budget" json:"total_overall_budget" validate:"required"`
	LimitProjectsPerPeriod      *int     `yaml:"Limit_Projects_Per_Period" json:"limit_projects_per_period" validate:"required,gte=0"`
	LimitSitesInRegionPerPeriod *int     `yaml:"Limit_Sites_In_Region_Per_Period" json:"limit_sites_in_region_per_period" validate:"required,gte=0"`
	LimitTotalSitesInRegion     *int     `yaml:"Limit_Total_Sites_In_Region" json:"limit_total_sites_in_region" validate:"required,gte=0"`
	Regions                     Regions  `yaml:"Regions" json:"regions" validate:"dive"`

	// Descriptive only; the environment does not read it.
	GeneralSiteTypeInfo map[string]SiteTypeInfo `yaml:"General_Site_Type_Info,omitempty" json:"general_site_type_info,omitempty"`
}

// Region is one category entry of the config, in declaration order.
type Region struct {
	Name                  string    `yaml:"-" json:"name" validate:"required"`
	SiteTypes             SiteTypes `yaml:"Site_Types_Available" json:"site_types" validate:"dive"`
	InitialRegionalBudget float64   `yaml:"Initial_Regional_Budget" json:"initial_regional_budget"`
	NumberOfNeedy         int       `yaml:"Number_Of_Needy,omitempty" json:"number_of_needy,omitempty"`
	RegionRank            int       `yaml:"Region_Rank,omitempty" json:"region_rank,omitempty"`
}

// SiteType holds the attributes of one site type available in a region.
// Priority_Score and Overall_Cost must be present; Regional_Cost_Impact
// defaults to zero.
type SiteType struct {
	Name               string   `yaml:"-" json:"name" validate:"required"`
	PriorityScore      *float64 `yaml:"Priority_Score" json:"priority_score" validate:"required"`
	OverallCost        *float64 `yaml:"Overall_Cost" json:"overall_cost" validate:"required"`
	RegionalCostImpact float64  `yaml:"Regional_Cost_Impact" json:"regional_cost_impact"`
}

// SiteTypeInfo is the optional per-type descriptive block.
type SiteTypeInfo struct {
	CapacityOrFeature float64 `yaml:"Capacity_Or_Feature" json:"capacity_or_feature"`
}

// #endregion config

// #region ordered-mappings
// Regions decodes a YAML mapping while keeping the declared key order, which
// fixes the category order of the action and observation spaces.
type Regions []Region

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Regions) UnmarshalYAML(node *yaml.Node) error {
	if isNull(node) {
		*r = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: Regions must be a mapping", node.Line)
	}
	out := make(Regions, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return fmt.Errorf("line %d: %w: %q", node.Content[i].Line, ErrDuplicateCategory, name)
		}
		seen[name] = true

		var reg Region
		if err := node.Content[i+1].Decode(&reg); err != nil {
			return fmt.Errorf("region %q: %w", name, err)
		}
		reg.Name = name
		out = append(out, reg)
	}
	*r = out
	return nil
}

// MarshalYAML writes the regions back as a mapping in declared order.
func (r Regions) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, reg := range r {
		var val yaml.Node
		if err := val.Encode(reg); err != nil {
			return nil, fmt.Errorf("encode region %q: %w", reg.Name, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: reg.Name}, &val)
	}
	return node, nil
}

// SiteTypes is the ordered Site_Types_Available mapping of a region.
type SiteTypes []SiteType

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SiteTypes) UnmarshalYAML(node *yaml.Node) error {
	if isNull(node) {
		*s = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: Site_Types_Available must be a mapping", node.Line)
	}
	out := make(SiteTypes, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return fmt.Errorf("line %d: %w: %q", node.Content[i].Line, ErrDuplicateSiteType, name)
		}
		seen[name] = true

		var st SiteType
		if err := node.Content[i+1].Decode(&st); err != nil {
			return fmt.Errorf("site type %q: %w", name, err)
		}
		st.Name = name
		out = append(out, st)
	}
	*s = out
	return nil
}

// MarshalYAML writes the site types back as a mapping in declared order.
func (s SiteTypes) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, st := range s {
		var val yaml.Node
		if err := val.Encode(st); err != nil {
			return nil, fmt.Errorf("encode site type %q: %w", st.Name, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: st.Name}, &val)
	}
	return node, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// #endregion ordered-mappings
