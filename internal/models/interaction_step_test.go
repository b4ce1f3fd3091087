package models

import (
	"testing"

	"github.com/google/uuid"
)

func step(id uuid.UUID, parent *uuid.UUID, script string) *InteractionStep {
	return &InteractionStep{ID: id, ParentID: parent, Script: script}
}

func TestAssembleInteractionSteps(t *testing.T) {
	root := uuid.New()
	childA := uuid.New()
	childB := uuid.New()
	grandchild := uuid.New()

	steps := []*InteractionStep{
		step(root, nil, ""),
		step(childA, &root, ""),
		step(childB, &root, ""),
		step(grandchild, &childA, ""),
	}

	roots := AssembleInteractionSteps(steps)

	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	if roots[0].ID != root {
		t.Errorf("root ID = %v, want %v", roots[0].ID, root)
	}
	if len(roots[0].Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(roots[0].Children))
	}
	if roots[0].Children[0].ID != childA || roots[0].Children[1].ID != childB {
		t.Error("children are out of input order")
	}
	if len(roots[0].Children[0].Children) != 1 || roots[0].Children[0].Children[0].ID != grandchild {
		t.Error("grandchild not attached to its parent")
	}
}

func TestAssembleInteractionStepsOrphanBecomesRoot(t *testing.T) {
	missing := uuid.New()
	orphan := uuid.New()
	plain := uuid.New()

	steps := []*InteractionStep{
		step(plain, nil, ""),
		step(orphan, &missing, ""),
	}

	roots := AssembleInteractionSteps(steps)

	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	if roots[1].ID != orphan {
		t.Errorf("orphan step was not promoted to root")
	}
}

func TestScriptFields(t *testing.T) {
	root := uuid.New()
	child := uuid.New()

	steps := AssembleInteractionSteps([]*InteractionStep{
		step(root, nil, "Hi {firstName}, this is {texterFirstName}"),
		step(child, &root, "Thanks {firstName}! Can we count on you, {lastName}?"),
	})

	fields := ScriptFields(steps)
	want := []string{"firstName", "texterFirstName", "lastName"}

	if len(fields) != len(want) {
		t.Fatalf("got %d fields %v, want %d", len(fields), fields, len(want))
	}
	for i, f := range want {
		if fields[i] != f {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], f)
		}
	}
}

func TestScriptFieldsEmptyAndUnclosed(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{name: "no fields", script: "plain text", want: 0},
		{name: "empty braces", script: "hello {}", want: 0},
		{name: "unclosed brace", script: "hello {firstName", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := ScriptFields([]*InteractionStep{step(uuid.New(), nil, tt.script)})
			if len(fields) != tt.want {
				t.Errorf("got %d fields %v, want %d", len(fields), fields, tt.want)
			}
		})
	}
}
