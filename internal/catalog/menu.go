// Package catalog owns menu identity and the read-only reference snapshot
// (menus plus interval matrix) that every resolution and validation runs
// against.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMenuNotFound is returned when a menu reference matches neither an ID
// nor a display name.
var ErrMenuNotFound = errors.New("catalog: menu not found")

// Menu is a bookable treatment.
type Menu struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// MatrixKeys returns the ID before the name so interval lookups try IDs first.
func (m Menu) MatrixKeys() []string {
	keys := make([]string, 0, 2)
	if id := strings.TrimSpace(m.ID); id != "" {
		keys = append(keys, id)
	}
	if name := strings.TrimSpace(m.Name); name != "" {
		keys = append(keys, name)
	}
	return keys
}

// RequiredCapability classifies the room a menu needs with the default markers.
func (m Menu) RequiredCapability() Capability {
	return DefaultClassifier().Classify(m)
}

// Label is a display string for logs and messages.
func (m Menu) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// MenuRef identifies a menu by ID, display name, or both.
type MenuRef struct {
	ID   string `json:"menu_id,omitempty"`
	Name string `json:"menu_name,omitempty"`
}

// IsZero reports whether the reference carries no identifier at all.
func (r MenuRef) IsZero() bool {
	return strings.TrimSpace(r.ID) == "" && strings.TrimSpace(r.Name) == ""
}

func (r MenuRef) String() string {
	switch {
	case r.ID != "" && r.Name != "":
		return fmt.Sprintf("%s (%s)", r.ID, r.Name)
	case r.ID != "":
		return r.ID
	default:
		return r.Name
	}
}

// Catalog indexes menus by ID and by case-insensitive display name.
type Catalog struct {
	menus  []Menu
	byID   map[string]Menu
	byName map[string]Menu
}

// NewCatalog builds a catalog. Later duplicates of an ID or name are ignored.
func NewCatalog(menus []Menu) *Catalog {
	c := &Catalog{
		byID:   make(map[string]Menu, len(menus)),
		byName: make(map[string]Menu, len(menus)),
	}
	for _, m := range menus {
		id := strings.TrimSpace(m.ID)
		name := nameKey(m.Name)
		if id == "" && name == "" {
			continue
		}
		if id != "" {
			if _, dup := c.byID[id]; dup {
				continue
			}
			c.byID[id] = m
		}
		if name != "" {
			if _, dup := c.byName[name]; !dup {
				c.byName[name] = m
			}
		}
		c.menus = append(c.menus, m)
	}
	sort.Slice(c.menus, func(i, j int) bool { return c.menus[i].ID < c.menus[j].ID })
	return c
}

// Resolve finds a menu by ID first, then by name. This is the only place
// menu aliasing is decided.
func (c *Catalog) Resolve(ref MenuRef) (Menu, error) {
	if c != nil {
		if id := strings.TrimSpace(ref.ID); id != "" {
			if m, ok := c.byID[id]; ok {
				return m, nil
			}
			// Some callers put the display name in the ID field.
			if m, ok := c.byName[nameKey(id)]; ok {
				return m, nil
			}
		}
		if name := nameKey(ref.Name); name != "" {
			if m, ok := c.byName[name]; ok {
				return m, nil
			}
			if m, ok := c.byID[strings.TrimSpace(ref.Name)]; ok {
				return m, nil
			}
		}
	}
	return Menu{}, fmt.Errorf("%w: %s", ErrMenuNotFound, ref)
}

// Menus returns all menus sorted by ID.
func (c *Catalog) Menus() []Menu {
	if c == nil {
		return nil
	}
	out := make([]Menu, len(c.menus))
	copy(out, c.menus)
	return out
}

// Len returns the number of menus.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.menus)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
