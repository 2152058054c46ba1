// Package authority holds the permission schema and the per-role grant map
// evaluated by the tenant access guard.
package authority

import "sort"

// Matrix maps module name to action name to grant.
type Matrix map[string]map[string]bool

// Wildcard is the module key that grants every permission.
const Wildcard = "*"

type moduleActions struct {
	module  string
	actions []string
}

// schema is the authoritative list of grantable pairs. An action missing
// here can never be granted to a role.
var schema = []moduleActions{
	{"personnel", []string{"read", "create", "edit", "delete"}},
	{"roles", []string{"read", "create", "edit", "delete", "assign_permissions"}},
	{"events", []string{"read", "create", "edit", "delete", "manage_participants", "manage_rooms"}},
	{"enterprise", []string{"read", "edit", "manage_modules", "manage_subscription"}},
	{"absences", []string{"read", "create", "edit", "delete", "approve"}},
	{"tasks", []string{"read", "create", "edit", "delete"}},
}

// DefaultMatrix returns a new all-false matrix. Every call allocates fresh
// maps, so callers may mutate the result freely.
func DefaultMatrix() Matrix {
	return fill(false)
}

// Full returns a matrix with every action granted.
func Full() Matrix {
	return fill(true)
}

func fill(v bool) Matrix {
	m := make(Matrix, len(schema))
	for _, ma := range schema {
		actions := make(map[string]bool, len(ma.actions))
		for _, a := range ma.actions {
			actions[a] = v
		}
		m[ma.module] = actions
	}
	return m
}

// Modules lists the module names in declaration order.
func Modules() []string {
	out := make([]string, 0, len(schema))
	for _, ma := range schema {
		out = append(out, ma.module)
	}
	return out
}

// Actions lists the actions of a module, or nil for an unknown module.
func Actions(module string) []string {
	for _, ma := range schema {
		if ma.module == module {
			return append([]string(nil), ma.actions...)
		}
	}
	return nil
}

// Defines reports whether the pair exists in the schema.
func Defines(module, action string) bool {
	for _, ma := range schema {
		if ma.module != module {
			continue
		}
		for _, a := range ma.actions {
			if a == action {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for module, actions := range m {
		cp := make(map[string]bool, len(actions))
		for a, v := range actions {
			cp[a] = v
		}
		out[module] = cp
	}
	return out
}

// Granted lists the "module.action" pairs set to true, sorted.
func (m Matrix) Granted() []string {
	var out []string
	for module, actions := range m {
		for a, v := range actions {
			if v {
				out = append(out, module+"."+a)
			}
		}
	}
	sort.Strings(out)
	return out
}
