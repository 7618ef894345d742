package models

// BudgetPeriod defines the time window for a budget policy.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetPolicy caps the number of gateway calls per period.
// An empty Provider matches every provider.
type BudgetPolicy struct {
	Provider string       `json:"provider,omitempty" yaml:"provider,omitempty" toml:"provider"`
	MaxCalls int64        `json:"max_calls" yaml:"max_calls" toml:"max_calls"`
	Period   BudgetPeriod `json:"period" yaml:"period" toml:"period"`
}

// BudgetStatus shows current usage against a policy.
type BudgetStatus struct {
	Policy    BudgetPolicy `json:"policy"`
	Used      int64        `json:"used"`
	Remaining int64        `json:"remaining"`
}
