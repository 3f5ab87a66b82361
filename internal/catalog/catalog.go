package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// #region site
// Site is a buildable (category, site type) pair resolved to dense indices.
// Index is the site's action index.
type Site struct {
	Index              int
	Category           int
	CategoryName       string
	SiteType           int // index into Catalog.SiteTypes()
	SiteTypeName       string
	OverallCost        float64
	RegionalCostImpact float64
	PriorityScore      float64
}

// KeySeparator joins category and site-type names in Site.Key. Names may not
// contain it.
const KeySeparator = "/"

// Key is the readable "Category/SiteType" identifier of the site.
func (s Site) Key() string {
	return s.CategoryName + KeySeparator + s.SiteTypeName
}

type siteKey struct {
	category string
	siteType string
}

// #endregion site

// #region limits
// Limits holds the quantity caps enforced by the validator.
type Limits struct {
	ProjectsPerPeriod        int
	SitesInCategoryPerPeriod int
	TotalSitesInCategory     int
}

// #endregion limits

// #region catalog
// Catalog is the immutable, indexed view of a Config. It is safe to share
// between goroutines and between environments.
type Catalog struct {
	periods          int
	overallBudget    float64
	limits           Limits
	categories       []string
	regionalBudgets  []float64
	siteTypes        []string
	sites            []Site
	categoryIndex    map[string]int
	siteIndex        map[siteKey]int
	hash             string
	categorySiteSpan [][2]int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New validates cfg and builds the catalog. It never returns a partially
// built catalog.
func New(cfg Config) (*Catalog, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", describeValidation(err))
	}

	c := &Catalog{
		periods:       cfg.Periods,
		overallBudget: *cfg.TotalOverallBudget,
		limits: Limits{
			ProjectsPerPeriod:        *cfg.LimitProjectsPerPeriod,
			SitesInCategoryPerPeriod: *cfg.LimitSitesInRegionPerPeriod,
			TotalSitesInCategory:     *cfg.LimitTotalSitesInRegion,
		},
		categoryIndex: make(map[string]int, len(cfg.Regions)),
		siteIndex:     make(map[siteKey]int),
	}

	typeSet := make(map[string]struct{})
	for _, reg := range cfg.Regions {
		if err := checkName("category", reg.Name); err != nil {
			return nil, err
		}
		if _, dup := c.categoryIndex[reg.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCategory, reg.Name)
		}
		c.categoryIndex[reg.Name] = len(c.categories)
		c.categories = append(c.categories, reg.Name)
		c.regionalBudgets = append(c.regionalBudgets, reg.InitialRegionalBudget)
		for _, st := range reg.SiteTypes {
			if err := checkName("site type", st.Name); err != nil {
				return nil, fmt.Errorf("region %q: %w", reg.Name, err)
			}
			typeSet[st.Name] = struct{}{}
		}
	}
	for name := range typeSet {
		c.siteTypes = append(c.siteTypes, name)
	}
	sort.Strings(c.siteTypes)
	typeIndex := make(map[string]int, len(c.siteTypes))
	for i, name := range c.siteTypes {
		typeIndex[name] = i
	}

	// Category-major, site types in declared order.
	for ci, reg := range cfg.Regions {
		start := len(c.sites)
		for _, st := range reg.SiteTypes {
			site := Site{
				Index:              len(c.sites),
				Category:           ci,
				CategoryName:       reg.Name,
				SiteType:           typeIndex[st.Name],
				SiteTypeName:       st.Name,
				OverallCost:        *st.OverallCost,
				RegionalCostImpact: st.RegionalCostImpact,
				PriorityScore:      *st.PriorityScore,
			}
			key := siteKey{category: reg.Name, siteType: st.Name}
			if _, dup := c.siteIndex[key]; dup {
				return nil, fmt.Errorf("%w: %q in %q", ErrDuplicateSiteType, st.Name, reg.Name)
			}
			c.siteIndex[key] = site.Index
			c.sites = append(c.sites, site)
		}
		c.categorySiteSpan = append(c.categorySiteSpan, [2]int{start, len(c.sites)})
	}

	canonical, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}
	sum := sha256.Sum256(canonical)
	c.hash = hex.EncodeToString(sum[:])

	return c, nil
}

// #endregion catalog

// #region accessors

// Periods is the number of periods in an episode.
func (c *Catalog) Periods() int { return c.periods }

// InitialOverallBudget is the overall budget at reset.
func (c *Catalog) InitialOverallBudget() float64 { return c.overallBudget }

// InitialRegionalBudget is the regional budget of category ci at reset.
func (c *Catalog) InitialRegionalBudget(ci int) float64 { return c.regionalBudgets[ci] }

func (c *Catalog) Limits() Limits { return c.limits }

// Categories returns the category names in declaration order.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

// SiteTypes returns the sorted union of site-type names.
func (c *Catalog) SiteTypes() []string {
	return append([]string(nil), c.siteTypes...)
}

// Sites returns every site in action-index order.
func (c *Catalog) Sites() []Site {
	return append([]Site(nil), c.sites...)
}

// Site returns the site with action index i. It panics when i is out of range.
func (c *Catalog) Site(i int) Site { return c.sites[i] }

// SitesInCategory returns the action-index range [lo, hi) of category ci.
func (c *Catalog) SitesInCategory(ci int) (lo, hi int) {
	span := c.categorySiteSpan[ci]
	return span[0], span[1]
}

func (c *Catalog) NumCategories() int { return len(c.categories) }

func (c *Catalog) NumSites() int { return len(c.sites) }

// PassAction is the reserved action index that ends the current period.
func (c *Catalog) PassAction() int { return len(c.sites) }

// ActionSpaceSize is NumSites()+1.
func (c *Catalog) ActionSpaceSize() int { return len(c.sites) + 1 }

// ObservationSize is 3 + 3*NumCategories() + NumSites().
func (c *Catalog) ObservationSize() int { return 3 + 3*len(c.categories) + len(c.sites) }

// CategoryIndex resolves a category name.
func (c *Catalog) CategoryIndex(name string) (int, bool) {
	i, ok := c.categoryIndex[name]
	return i, ok
}

// SiteIndex resolves a (category, site type) pair to its action index.
func (c *Catalog) SiteIndex(category, siteType string) (int, bool) {
	i, ok := c.siteIndex[siteKey{category: category, siteType: siteType}]
	return i, ok
}

// Hash is a stable digest of the configuration the catalog was built from.
func (c *Catalog) Hash() string { return c.hash }

// #endregion accessors

// #region validation-errors
// checkName rejects names that would make Site.Key ambiguous.
func checkName(kind, name string) error {
	if strings.Contains(name, KeySeparator) {
		return fmt.Errorf("%w: %s %q contains %q", ErrReservedSeparator, kind, name, KeySeparator)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), err)
}

// #endregion validation-errors
