package authority

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Decision is the outcome of evaluating one (module, action) pair.
type Decision int

const (
	Granted Decision = iota
	// Undefined means the pair is not part of the schema.
	Undefined
	Denied
)

// Authority is the grant set persisted on a role: either the wildcard or a
// matrix normalised through Merge.
type Authority struct {
	wildcard bool
	grants   Matrix
}

// Wild returns the super admin authority.
func Wild() Authority {
	return Authority{wildcard: true}
}

// FromMatrix normalises m against the schema.
func FromMatrix(m Matrix) Authority {
	return Authority{grants: MergeMatrix(m)}
}

// FromRaw merges client supplied grants. A nil map yields an all-false
// authority. The wildcard key is never accepted from raw input.
func FromRaw(raw map[string]any) Authority {
	return Authority{grants: Merge(raw)}
}

// IsZero reports whether no grant map is present at all.
func (a Authority) IsZero() bool {
	return !a.wildcard && a.grants == nil
}

func (a Authority) IsWildcard() bool {
	return a.wildcard
}

// Matrix returns a copy of the grants. The wildcard expands to Full.
func (a Authority) Matrix() Matrix {
	if a.wildcard {
		return Full()
	}
	return a.grants.Clone()
}

// Decide evaluates a pair. The wildcard grants pairs outside the schema too.
func (a Authority) Decide(module, action string) Decision {
	if a.wildcard {
		return Granted
	}
	actions, ok := a.grants[module]
	if !ok {
		return Undefined
	}
	granted, ok := actions[action]
	if !ok {
		return Undefined
	}
	if !granted {
		return Denied
	}
	return Granted
}

func (a Authority) Allows(module, action string) bool {
	return a.Decide(module, action) == Granted
}

func (a Authority) MarshalJSON() ([]byte, error) {
	if a.wildcard {
		return json.Marshal(map[string]bool{Wildcard: true})
	}
	if a.grants == nil {
		return []byte("null"), nil
	}
	return json.Marshal(a.grants)
}

// UnmarshalJSON accepts stored or seeded authority documents. A truthy "*"
// key yields the wildcard; anything else is merged against the schema.
func (a *Authority) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding authority: %w", err)
	}
	if raw == nil {
		*a = Authority{}
		return nil
	}
	if v, ok := raw[Wildcard]; ok && truthy(v) {
		*a = Wild()
		return nil
	}
	*a = FromRaw(raw)
	return nil
}

func (a *Authority) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*a = Authority{}
		return nil
	case []byte:
		return a.UnmarshalJSON(v)
	case string:
		return a.UnmarshalJSON([]byte(v))
	}
	return errors.New("authority: unsupported column type")
}

func (a Authority) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (Authority) GormDataType() string {
	return "json"
}
