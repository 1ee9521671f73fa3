// Package connector defines exchange connectors, their parameter descriptors and the connector registry.
package connector

import (
	"fmt"
	"strings"

	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// ParameterType tells the host how to collect and display a parameter.
type ParameterType string

const (
	ParameterString ParameterType = "STRING"
	ParameterSecret ParameterType = "SECRET"
)

// ParameterDescriptor describes one user-supplied connector parameter.
type ParameterDescriptor struct {
	ID           string
	Type         ParameterType
	Description  string
	DefaultValue string
}

// Required reports whether the parameter must be supplied.
func (p ParameterDescriptor) Required() bool {
	return p.DefaultValue == ""
}

// Descriptor describes a connector type.
type Descriptor struct {
	ID         string
	Name       string
	ExchangeID string
	Parameters []ParameterDescriptor
}

// ResolveParameters returns params with defaults applied. Missing required
// parameters return an error wrapping ports.ErrConfigurationError.
func (d Descriptor) ResolveParameters(params map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(d.Parameters))
	var missing []string
	for _, p := range d.Parameters {
		value := strings.TrimSpace(params[p.ID])
		if value == "" {
			value = p.DefaultValue
		}
		if value == "" {
			missing = append(missing, p.ID)
			continue
		}
		resolved[p.ID] = value
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: connector %s is missing parameters: %s",
			ports.ErrConfigurationError, d.ID, strings.Join(missing, ", "))
	}
	return resolved, nil
}
