package task

import "testing"

func TestResolveHandlerPrefersNewestNode(t *testing.T) {
	m := &Manifest{Execution: map[string]Execution{
		"Node10": {Target: "old.js"},
		"Node16": {Target: "new.js"},
	}}
	name, exec, err := m.ResolveHandler()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "Node16" || exec.Target != "new.js" {
		t.Fatalf("got %q %v", name, exec)
	}
}

func TestResolveHandlerFallsBackToPowerShell(t *testing.T) {
	m := &Manifest{Execution: map[string]Execution{
		"PowerShell": {Target: "legacy.ps1"},
	}}
	name, _, err := m.ResolveHandler()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "PowerShell" {
		t.Fatalf("got %q", name)
	}
}

func TestResolveHandlerNoneDeclaredErrors(t *testing.T) {
	m := &Manifest{Name: "Weird", Execution: map[string]Execution{}}
	if _, _, err := m.ResolveHandler(); err == nil {
		t.Fatal("expected error when no handler is declared")
	}
}

func TestInputByName(t *testing.T) {
	m := &Manifest{Inputs: []InputDef{{Name: "script"}}}
	if _, ok := m.InputByName("script"); !ok {
		t.Fatal("expected to find declared input")
	}
	if _, ok := m.InputByName("missing"); ok {
		t.Fatal("expected not to find undeclared input")
	}
}
