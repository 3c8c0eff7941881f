package catalog

import (
	"slices"
	"testing"
)

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]string{"users"}, []string{"todos", "users"}, "")
	if err == nil {
		t.Fatal("expected error for table in both lists")
	}
}

func TestNewRejectsInvalidNames(t *testing.T) {
	tests := []string{"", "Users", "drop table;", "todos--", "1abc"}
	for _, name := range tests {
		if _, err := New(nil, []string{name}, ""); err == nil {
			t.Errorf("New(%q) = nil error, want error", name)
		}
	}
}

func TestTablesByScope(t *testing.T) {
	c := MustNew([]string{"users", "practices"}, []string{"todos", "contacts"}, "")

	full := c.Tables(true)
	want := []string{"users", "practices", "todos", "contacts"}
	if !slices.Equal(full, want) {
		t.Errorf("Tables(true) = %v, want %v", full, want)
	}

	tenant := c.Tables(false)
	if !slices.Equal(tenant, []string{"todos", "contacts"}) {
		t.Errorf("Tables(false) = %v, want [todos contacts]", tenant)
	}

	if !c.IsGlobal("users") || c.IsGlobal("todos") {
		t.Error("IsGlobal mismatch")
	}
	if c.TenantColumn() != DefaultTenantColumn {
		t.Errorf("tenant column = %q, want %q", c.TenantColumn(), DefaultTenantColumn)
	}
}

func TestTablesReturnsCopy(t *testing.T) {
	c := MustNew([]string{"users"}, []string{"todos"}, "")
	got := c.Tables(true)
	got[0] = "mutated"
	if c.Tables(true)[0] != "users" {
		t.Error("catalog mutated through returned slice")
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()
	if len(c.Global()) != 6 {
		t.Errorf("global tables = %d, want 6", len(c.Global()))
	}
	if len(c.Tenant()) == 0 {
		t.Error("expected tenant tables")
	}
}
