package evaluators

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// Evaluator names.
const (
	NameSuccessPattern  = "success_pattern"
	NameMistakeLearning = "mistake_learning"
	NameGoalProgress    = "goal_progress"
	NameRelationship    = "relationship"
	NameEfficiency      = "efficiency"
)

// action is the decoded view of one action event.
type action struct {
	Tool        string
	Success     bool
	Reward      float64
	Description string
	TargetID    string
}

// decodeActions extracts action events from the window, oldest first.
func decodeActions(events []model.Event) []action {
	var out []action
	for _, ev := range events {
		if ev.Kind != model.EventAction {
			continue
		}
		a := action{
			Tool:        str(ev.Payload, "tool"),
			Description: str(ev.Payload, "description"),
		}
		if v, ok := ev.Payload["success"].(bool); ok {
			a.Success = v
		}
		if v, ok := ev.Payload["reward"].(float64); ok {
			a.Reward = v
		}
		if args, ok := ev.Payload["arguments"].(map[string]any); ok {
			a.TargetID = str(args, "target_id")
		}
		out = append(out, a)
	}
	return out
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// SuccessPatternEvaluator groups successful actions by tool and reports
// occurrence counts and average rewards. Confidence grows with repetition:
// min(count/10, 1.0).
type SuccessPatternEvaluator struct{}

func (SuccessPatternEvaluator) Name() string { return NameSuccessPattern }

func (SuccessPatternEvaluator) Evaluate(events []model.Event, _ uuid.UUID) (model.EvaluationResult, error) {
	type group struct {
		count int
		total float64
	}
	groups := make(map[string]*group)
	for _, a := range decodeActions(events) {
		if !a.Success || a.Tool == "" {
			continue
		}
		g := groups[a.Tool]
		if g == nil {
			g = &group{}
			groups[a.Tool] = g
		}
		g.count++
		g.total += a.Reward
	}

	var res model.EvaluationResult
	for _, tool := range sortedGroupKeys(groups) {
		g := groups[tool]
		avg := g.total / float64(g.count)
		confidence := min(float64(g.count)/10.0, 1.0)

		res.Facts = append(res.Facts, model.Fact{
			Type:       model.MemoryPattern,
			Content:    fmt.Sprintf("%s succeeded %d times with average reward %.1f", tool, g.count, avg),
			Confidence: confidence,
		})
		res.Patterns = append(res.Patterns, model.Pattern{
			ID:           "success:" + tool,
			Occurrences:  g.count,
			Significance: confidence,
		})
		if avg > 2 {
			res.Recommendations = append(res.Recommendations,
				fmt.Sprintf("keep using %s, it pays off", tool))
		}
	}
	return res, nil
}

// MistakeLearningEvaluator turns failed actions into lessons.
// Confidence grows with repetition of the same failure: min(count/5, 1.0).
type MistakeLearningEvaluator struct{}

func (MistakeLearningEvaluator) Name() string { return NameMistakeLearning }

func (MistakeLearningEvaluator) Evaluate(events []model.Event, _ uuid.UUID) (model.EvaluationResult, error) {
	counts := make(map[string]int)
	for _, a := range decodeActions(events) {
		if a.Success || a.Tool == "" {
			continue
		}
		key := a.Tool
		if a.Description != "" {
			key = a.Description
		}
		counts[key]++
	}

	var res model.EvaluationResult
	for _, key := range sortedIntKeys(counts) {
		count := counts[key]
		res.Facts = append(res.Facts, model.Fact{
			Type:       model.MemoryLesson,
			Content:    "avoid repeating: " + key,
			Confidence: min(float64(count)/5.0, 1.0),
		})
	}
	if len(res.Facts) > 0 {
		res.Recommendations = append(res.Recommendations,
			"check preconditions (visibility, inventory) before acting")
	}
	return res, nil
}

// GoalProgressEvaluator counts quest-relevant actions and sums their reward.
type GoalProgressEvaluator struct{}

func (GoalProgressEvaluator) Name() string { return NameGoalProgress }

func (GoalProgressEvaluator) Evaluate(events []model.Event, _ uuid.UUID) (model.EvaluationResult, error) {
	var count int
	var reward float64
	for _, a := range decodeActions(events) {
		if a.Tool != "quest_action" {
			continue
		}
		count++
		reward += a.Reward
	}

	var res model.EvaluationResult
	if count == 0 {
		res.Recommendations = append(res.Recommendations,
			"no quest progress this window; consider working toward an objective")
		return res, nil
	}

	res.Facts = append(res.Facts, model.Fact{
		Type:       model.MemoryGoal,
		Content:    fmt.Sprintf("made quest progress: %d actions worth %.1f reward", count, reward),
		Confidence: min(float64(count)/5.0, 1.0),
	})
	return res, nil
}

// RelationshipEvaluator counts interactions per entity and buckets them:
// fewer than 2 is initial, 2..4 developing, 5 and up strong.
type RelationshipEvaluator struct{}

func (RelationshipEvaluator) Name() string { return NameRelationship }

func (RelationshipEvaluator) Evaluate(events []model.Event, _ uuid.UUID) (model.EvaluationResult, error) {
	counts := make(map[string]int)
	for _, a := range decodeActions(events) {
		if a.TargetID == "" {
			continue
		}
		counts[a.TargetID]++
	}

	var res model.EvaluationResult
	for _, entityID := range sortedIntKeys(counts) {
		count := counts[entityID]
		bucket := "initial"
		switch {
		case count >= 5:
			bucket = "strong"
		case count >= 2:
			bucket = "developing"
		}
		res.Facts = append(res.Facts, model.Fact{
			Type:       model.MemoryRelationship,
			Content:    fmt.Sprintf("relationship with %s: %s (%d interactions)", entityID, bucket, count),
			Confidence: min(float64(count)/10.0, 1.0),
		})
	}
	return res, nil
}

// EfficiencyEvaluator rates reward per action over the window:
// poor at or below 0, fair above 0, good above 1, excellent above 2.
type EfficiencyEvaluator struct{}

func (EfficiencyEvaluator) Name() string { return NameEfficiency }

func (EfficiencyEvaluator) Evaluate(events []model.Event, _ uuid.UUID) (model.EvaluationResult, error) {
	actions := decodeActions(events)
	if len(actions) == 0 {
		return model.EvaluationResult{}, nil
	}

	var total float64
	for _, a := range actions {
		total += a.Reward
	}
	perAction := total / float64(len(actions))

	rating := "poor"
	switch {
	case perAction > 2:
		rating = "excellent"
	case perAction > 1:
		rating = "good"
	case perAction > 0:
		rating = "fair"
	}

	res := model.EvaluationResult{
		Facts: []model.Fact{{
			Type:       model.MemoryFact,
			Content:    fmt.Sprintf("efficiency %s: %.2f reward per action over %d actions", rating, perAction, len(actions)),
			Confidence: min(float64(len(actions))/10.0, 1.0),
		}},
	}
	if rating == "poor" {
		res.Recommendations = append(res.Recommendations,
			"recent actions lost reward; prefer known-good actions")
	}
	return res, nil
}

func sortedGroupKeys[V any](m map[string]*V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
