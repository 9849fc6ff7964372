package ticket

import (
	"path/filepath"
	"reflect"
	"testing"
)

func sample() Ticket {
	return Ticket{
		ID:    "HLV-1",
		Title: "Add login",
		AcceptanceCriteria: []AcceptanceCriterion{
			{ID: 1, Description: "Login form renders"},
			{ID: 2, Description: "Bad password shows error"},
		},
	}
}

func TestCriterion(t *testing.T) {
	tk := sample()
	ac, idx, ok := tk.Criterion(2)
	if !ok || idx != 1 || ac.Description != "Bad password shows error" {
		t.Errorf("Criterion(2) = %+v, %d, %v", ac, idx, ok)
	}
	if _, _, ok := tk.Criterion(9); ok {
		t.Error("Criterion(9) should not be found")
	}
}

func TestWithPlanDoesNotMutate(t *testing.T) {
	tk := sample()
	before := sample()
	planned := tk.WithPlan([]string{"a", "b", "c"})

	if !reflect.DeepEqual(tk, before) {
		t.Errorf("WithPlan mutated the receiver: %+v", tk)
	}
	want := []AcceptanceCriterion{{ID: 1, Description: "a"}, {ID: 2, Description: "b"}, {ID: 3, Description: "c"}}
	if !reflect.DeepEqual(planned.AcceptanceCriteria, want) {
		t.Errorf("planned criteria = %+v", planned.AcceptanceCriteria)
	}
	if planned.ID != tk.ID || planned.Title != tk.Title {
		t.Error("WithPlan should keep identity fields")
	}
}

func TestValidate(t *testing.T) {
	tk := sample()
	if err := tk.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	dup := sample()
	dup.AcceptanceCriteria[1].ID = 1
	if err := dup.Validate(); err == nil {
		t.Error("expected duplicate id error")
	}

	untitled := sample()
	untitled.Title = "  "
	if err := untitled.Validate(); err == nil {
		t.Error("expected missing title error")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HLV-1.yaml")
	tk := sample()
	if err := Save(path, &tk); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(*got, tk) {
		t.Errorf("Load() = %+v, want %+v", *got, tk)
	}
}

func TestLoadDefaultsIDFromFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HLV-42.yaml")
	tk := Ticket{Title: "No id"}
	if err := Save(path, &tk); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != "HLV-42" {
		t.Errorf("ID = %q, want HLV-42", got.ID)
	}
}
