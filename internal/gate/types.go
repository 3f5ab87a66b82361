package gate

// #region action-kind
// Kind classifies an action index.
type Kind int

const (
	KindInvalid Kind = iota
	KindBuild
	KindPass
)

func (k Kind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindPass:
		return "pass"
	default:
		return "invalid"
	}
}

// #endregion action-kind

// #region veto-type
// VetoType enumerates the build constraints, in evaluation order.
type VetoType string

const (
	VetoAlreadyBuilt       VetoType = "already_built"
	VetoOverallBudget      VetoType = "overall_budget"
	VetoRegionalBudget     VetoType = "regional_budget"
	VetoProjectsPerPeriod  VetoType = "projects_per_period"
	VetoCategoryPerPeriod  VetoType = "category_per_period"
	VetoCategoryTotalLimit VetoType = "category_total"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal is one failed constraint.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region decision
// Decision is the validator's verdict for one action.
type Decision struct {
	Kind     Kind
	Feasible bool
	Vetoes   []VetoSignal // every failed check, empty when feasible
}

// #endregion decision
