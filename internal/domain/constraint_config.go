package domain

// ConstraintSetting is the decoded configuration for one named
// constraint: whether it is active, its tagged-variant parameters,
// and its penalty weight.
type ConstraintSetting struct {
	Enabled bool
	Params  map[string]interface{}
	Penalty float64
}

// ConstraintConfig maps a constraint name to its decoded setting.
type ConstraintConfig map[string]ConstraintSetting
