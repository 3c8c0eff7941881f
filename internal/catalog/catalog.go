// Package catalog lists the tables included in a backup export.
package catalog

import (
	"fmt"
	"regexp"
	"slices"
)

// DefaultTenantColumn is the column that scopes a row to a practice.
const DefaultTenantColumn = "practice_id"

var identRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Catalog is an immutable, ordered set of exportable tables split into
// global tables (shared across practices) and tenant tables (filtered by
// practice). The zero value is an empty catalog.
type Catalog struct {
	global       []string
	tenant       []string
	globalSet    map[string]struct{}
	tenantColumn string
}

// New builds a catalog. Table names must be SQL identifiers and each name
// may appear in only one list.
func New(global, tenant []string, tenantColumn string) (*Catalog, error) {
	if tenantColumn == "" {
		tenantColumn = DefaultTenantColumn
	}
	if !identRegexp.MatchString(tenantColumn) {
		return nil, fmt.Errorf("invalid tenant column %q", tenantColumn)
	}

	seen := make(map[string]string, len(global)+len(tenant))
	check := func(list, name string) error {
		if !identRegexp.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("table %q listed in %s and %s", name, prev, list)
		}
		seen[name] = list
		return nil
	}

	c := &Catalog{
		global:       slices.Clone(global),
		tenant:       slices.Clone(tenant),
		globalSet:    make(map[string]struct{}, len(global)),
		tenantColumn: tenantColumn,
	}
	for _, t := range c.global {
		if err := check("global", t); err != nil {
			return nil, err
		}
		c.globalSet[t] = struct{}{}
	}
	for _, t := range c.tenant {
		if err := check("tenant", t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on an invalid catalog.
func MustNew(global, tenant []string, tenantColumn string) *Catalog {
	c, err := New(global, tenant, tenantColumn)
	if err != nil {
		panic(err)
	}
	return c
}

// Global returns a copy of the global table list.
func (c *Catalog) Global() []string { return slices.Clone(c.global) }

// Tenant returns a copy of the tenant table list.
func (c *Catalog) Tenant() []string { return slices.Clone(c.tenant) }

// TenantColumn returns the practice-scoping column name.
func (c *Catalog) TenantColumn() string { return c.tenantColumn }

// IsGlobal reports whether table is shared across practices.
func (c *Catalog) IsGlobal(table string) bool {
	_, ok := c.globalSet[table]
	return ok
}

// Tables returns the export set: global followed by tenant tables when full
// is true, tenant tables only otherwise.
func (c *Catalog) Tables(full bool) []string {
	if !full {
		return slices.Clone(c.tenant)
	}
	out := make([]string, 0, len(c.global)+len(c.tenant))
	out = append(out, c.global...)
	return append(out, c.tenant...)
}
