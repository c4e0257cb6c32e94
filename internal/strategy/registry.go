package strategy

import (
	"fmt"
	"sort"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

var registry = map[string]domain.Strategy{}

// Register makes a strategy selectable by name.
func Register(s domain.Strategy) {
	registry[s.Name()] = s
}

func init() {
	Register(None{})
	Register(EMARSI{})
	Register(ReversalTrend{})
	Register(FractalMACD{})
	Register(RestrictedMACD{})
}

// Get returns the registered strategy with the given name.
func Get(name string) (domain.Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

// Names lists registered strategies in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
