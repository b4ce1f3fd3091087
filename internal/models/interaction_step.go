package models

import "github.com/google/uuid"

// InteractionStep is one node of a campaign's question/answer script graph.
// Steps are stored flat with a parent pointer; AssembleInteractionSteps
// rebuilds the tree for the aggregate snapshot.
type InteractionStep struct {
	ID                uuid.UUID  `json:"id"`
	CampaignID        uuid.UUID  `json:"campaign_id"`
	ParentID          *uuid.UUID `json:"parent_id,omitempty"`
	Question          string     `json:"question"`
	Script            string     `json:"script"`
	AnswerOption      string     `json:"answer_option"`
	AnswerActions     string     `json:"answer_actions"`
	AnswerActionsData string     `json:"answer_actions_data,omitempty"`
	IsDeleted         bool       `json:"is_deleted"`

	Children []*InteractionStep `json:"children,omitempty"`
}

// AssembleInteractionSteps turns flat parent-pointer rows into a tree of
// root steps with populated Children. Rows must already be ordered; children
// keep the input order. Rows whose parent is missing from the input are
// treated as roots so a partially deleted script still renders.
func AssembleInteractionSteps(steps []*InteractionStep) []*InteractionStep {
	byID := make(map[uuid.UUID]*InteractionStep, len(steps))
	for _, s := range steps {
		s.Children = nil
		byID[s.ID] = s
	}

	var roots []*InteractionStep
	for _, s := range steps {
		if s.ParentID == nil {
			roots = append(roots, s)
			continue
		}
		parent, ok := byID[*s.ParentID]
		if !ok {
			roots = append(roots, s)
			continue
		}
		parent.Children = append(parent.Children, s)
	}
	return roots
}

// ScriptFields returns the distinct {field} placeholders used across all
// step scripts in the tree, in first-seen order.
func ScriptFields(steps []*InteractionStep) []string {
	seen := map[string]bool{}
	var fields []string

	var walk func(list []*InteractionStep)
	walk = func(list []*InteractionStep) {
		for _, s := range list {
			for _, f := range extractFields(s.Script) {
				if !seen[f] {
					seen[f] = true
					fields = append(fields, f)
				}
			}
			walk(s.Children)
		}
	}
	walk(steps)
	return fields
}

// extractFields pulls {name} tokens out of a script body.
func extractFields(script string) []string {
	var fields []string
	start := -1
	for i, r := range script {
		switch r {
		case '{':
			start = i + 1
		case '}':
			if start >= 0 && i > start {
				fields = append(fields, script[start:i])
			}
			start = -1
		}
	}
	return fields
}
