package registry

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateEntries(entries []Entry, roles Roles) error {
	if len(entries) == 0 {
		return errors.New("registry: no series defined")
	}

	ids := make(map[string]bool, len(entries))
	columns := make(map[string]string)

	for i, e := range entries {
		if err := validate.Struct(e); err != nil {
			return fmt.Errorf("registry: series %d (%s): %w", i, e.ID, err)
		}
		if ids[e.ID] {
			return fmt.Errorf("registry: duplicate series %q", e.ID)
		}
		ids[e.ID] = true

		if e.Column == nil {
			continue
		}
		if other, ok := columns[e.Column.Name]; ok {
			return fmt.Errorf("registry: column %q used by %s and %s", e.Column.Name, other, e.ID)
		}
		columns[e.Column.Name] = e.ID
	}

	if err := validate.Struct(roles); err != nil {
		return fmt.Errorf("registry: roles: %w", err)
	}
	for role, id := range map[string]string{
		"gdp":          roles.GDP,
		"unemployment": roles.Unemployment,
		"inflation":    roles.Inflation,
		"yield_spread": roles.YieldSpread,
	} {
		if !ids[id] {
			return fmt.Errorf("registry: role %s references unknown series %q", role, id)
		}
	}

	return nil
}
