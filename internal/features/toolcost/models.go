// Package toolcost: models.go describes the per-tool credit price list.
package toolcost

import "fmt"

// Entry is the price of one billable tool.
type Entry struct {
	ToolType   string `json:"tool_type" yaml:"tool_type"`
	Name       string `json:"name" yaml:"name"`
	CreditCost int64  `json:"credit_cost" yaml:"credit_cost"`
	Active     bool   `json:"is_active" yaml:"active"`
}

// Validate rejects entries the catalog cannot price.
func (e Entry) Validate() error {
	if e.ToolType == "" {
		return fmt.Errorf("tool_type is empty")
	}
	if e.CreditCost < 0 {
		return fmt.Errorf("tool %q: credit_cost must be >= 0", e.ToolType)
	}
	return nil
}

// DisplayName returns Name, or the tool type when no name is set.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ToolType
}
