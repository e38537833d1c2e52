package controller

import "github.com/nerrad567/gray-logic-smartctl/internal/entity"

// Requirements is a set of entities that must read a given value before an
// automaton acts, for example a "home" switch that must be on.
type Requirements struct {
	ids  []string
	want map[string]string
}

// NewRequirements builds requirements from entities that must read on and
// entities that must read off. An entity listed in both keeps its "off"
// requirement.
func NewRequirements(on, off []string) Requirements {
	r := Requirements{want: make(map[string]string, len(on)+len(off))}
	add := func(id, value string) {
		if _, seen := r.want[id]; !seen {
			r.ids = append(r.ids, id)
		}
		r.want[id] = value
	}
	for _, id := range on {
		add(id, entity.StateOn)
	}
	for _, id := range off {
		add(id, entity.StateOff)
	}
	return r
}

// IDs returns the required entities in configuration order.
func (r Requirements) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Has reports whether entityID is one of the required entities.
func (r Requirements) Has(entityID string) bool {
	_, ok := r.want[entityID]
	return ok
}

// Len returns the number of required entities.
func (r Requirements) Len() int { return len(r.ids) }

// Met reports whether every required entity currently reads its wanted
// value in the controller's snapshot. An entity with no reading yet is not
// met. No requirements are always met.
func (r Requirements) Met(c *Controller) bool {
	for _, id := range r.ids {
		st, ok := c.Input(id)
		if !ok || st.Value != r.want[id] {
			return false
		}
	}
	return true
}
