package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweaver-ai/questweaver/internal/model"
)

func testState() model.WorldState {
	return model.WorldState{
		Environment: "darkwood",
		Position:    model.Position{X: 1, Y: 2, Z: 0},
		Stats:       map[string]int{"health": 100},
		Inventory: []model.InventoryItem{
			{ID: "potion_1", Name: "Healing Potion", Quantity: 2},
			{ID: "sword_1", Name: "Iron Sword", Quantity: 1},
		},
		VisibleEntities: []model.Entity{
			{ID: "goblin_1", Type: "goblin", Position: model.Position{X: 3, Y: 2, Z: 0}},
			{ID: "chest_1", Type: "chest", Position: model.Position{X: 0, Y: 1, Z: 0}},
		},
		ActiveQuests: []model.Quest{
			{
				ID:   "q_clear_woods",
				Name: "Clear the Woods",
				Objectives: []model.QuestObjective{
					{ID: "o_find", Description: "find the camp", Completed: true},
					{ID: "o_goblin", Description: "defeat the goblin"},
				},
			},
		},
		AvailableActions: []string{"move", "attack", "interact"},
	}
}

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewDefaultRegistry()
	require.NoError(t, err)
	return r
}

func TestDefaultRegistryCatalog(t *testing.T) {
	r := mustRegistry(t)

	want := []string{"move", "interact", "attack", "use_item", "speak", "quest_action", "inventory_action", "wait"}
	assert.Equal(t, want, r.Names())

	catalog := r.Catalog()
	require.Len(t, catalog, len(want))
	for i, entry := range catalog {
		assert.Equal(t, want[i], entry.Name)
		assert.NotEmpty(t, entry.Description)
		assert.Equal(t, "object", entry.Parameters["type"])
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := mustRegistry(t)

	_, err := r.Execute(model.ToolInvocation{Tool: "teleport"}, testState())
	require.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecuteInvalidArguments(t *testing.T) {
	r := mustRegistry(t)

	tests := []struct {
		name string
		inv  model.ToolInvocation
	}{
		{"missing required", model.ToolInvocation{Tool: "move", Arguments: map[string]any{"x": 1.0}}},
		{"wrong type", model.ToolInvocation{Tool: "attack", Arguments: map[string]any{"target_id": 7}},
		},
		{"unknown property", model.ToolInvocation{Tool: "wait", Arguments: map[string]any{"mood": "zen"}}},
		{"bad enum", model.ToolInvocation{Tool: "inventory_action", Arguments: map[string]any{"action": "burn", "item_id": "sword_1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(tt.inv, testState())
			require.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestFailedResultPreservesState(t *testing.T) {
	r := mustRegistry(t)
	state := testState()

	invocations := []model.ToolInvocation{
		{Tool: "interact", Arguments: map[string]any{"target_id": "ghost_9"}},
		{Tool: "attack", Arguments: map[string]any{"target_id": "ghost_9"}},
		{Tool: "use_item", Arguments: map[string]any{"item_id": "elixir_9"}},
		{Tool: "speak", Arguments: map[string]any{"message": "hello?", "target_id": "ghost_9"}},
		{Tool: "quest_action", Arguments: map[string]any{"quest_id": "q_nope"}},
		{Tool: "inventory_action", Arguments: map[string]any{"action": "drop", "item_id": "elixir_9"}},
	}

	for _, inv := range invocations {
		t.Run(inv.Tool, func(t *testing.T) {
			res, err := r.Execute(inv, state)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Negative(t, res.Reward)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, state, res.WorldState, "failure must not drift world state")
		})
	}
}

func TestMove(t *testing.T) {
	r := mustRegistry(t)

	res, err := r.Execute(model.ToolInvocation{
		Tool:      "move",
		Arguments: map[string]any{"x": 5.0, "y": 6.0, "z": 1.0},
	}, testState())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, RewardMove, res.Reward)
	assert.Equal(t, model.Position{X: 5, Y: 6, Z: 1}, res.WorldState.Position)
}

func TestAttackVisibleEntity(t *testing.T) {
	r := mustRegistry(t)
	state := testState()

	res, err := r.Execute(model.ToolInvocation{
		Tool:      "attack",
		Arguments: map[string]any{"target_id": "goblin_1"},
	}, state)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, RewardAttack, res.Reward)
	assert.Contains(t, res.Description, "goblin_1")

	// Unchanged except logged history.
	assert.Equal(t, state.Position, res.WorldState.Position)
	assert.Equal(t, state.Inventory, res.WorldState.Inventory)
	assert.Equal(t, state.VisibleEntities, res.WorldState.VisibleEntities)
	require.Len(t, res.WorldState.RecentEvents, len(state.RecentEvents)+1)
}

func TestUseItemDecrements(t *testing.T) {
	r := mustRegistry(t)
	state := testState()

	res, err := r.Execute(model.ToolInvocation{
		Tool:      "use_item",
		Arguments: map[string]any{"item_id": "potion_1"},
	}, state)
	require.NoError(t, err)
	require.True(t, res.Success)

	item, ok := res.WorldState.Item("potion_1")
	require.True(t, ok)
	assert.Equal(t, 1, item.Quantity)

	// Input state untouched.
	orig, _ := state.Item("potion_1")
	assert.Equal(t, 2, orig.Quantity)

	// Using the last unit removes the stack.
	res2, err := r.Execute(model.ToolInvocation{
		Tool:      "use_item",
		Arguments: map[string]any{"item_id": "potion_1"},
	}, res.WorldState)
	require.NoError(t, err)
	_, ok = res2.WorldState.Item("potion_1")
	assert.False(t, ok)
}

func TestQuestObjectiveThenCompletion(t *testing.T) {
	r := mustRegistry(t)
	state := testState()

	res, err := r.Execute(model.ToolInvocation{
		Tool:      "quest_action",
		Arguments: map[string]any{"quest_id": "q_clear_woods", "objective_id": "o_goblin"},
	}, state)
	require.NoError(t, err)
	require.True(t, res.Success)

	// Last objective done: the whole quest completes for the big reward.
	assert.Equal(t, RewardQuestComplete, res.Reward)
	quest, _ := res.WorldState.Quest("q_clear_woods")
	assert.True(t, quest.Completed)

	// Acting on a completed quest is a domain failure.
	res2, err := r.Execute(model.ToolInvocation{
		Tool:      "quest_action",
		Arguments: map[string]any{"quest_id": "q_clear_woods"},
	}, res.WorldState)
	require.NoError(t, err)
	assert.False(t, res2.Success)
}

func TestRewardAccountingSequence(t *testing.T) {
	r := mustRegistry(t)
	state := testState()

	var total float64
	steps := []model.ToolInvocation{
		{Tool: "move", Arguments: map[string]any{"x": 3.0, "y": 2.0, "z": 0.0}},
		{Tool: "attack", Arguments: map[string]any{"target_id": "goblin_1"}},
		{Tool: "interact", Arguments: map[string]any{"target_id": "door_7"}},
	}
	for _, inv := range steps {
		res, err := r.Execute(inv, state)
		require.NoError(t, err)
		total += res.Reward
		state = res.WorldState
	}

	assert.InDelta(t, 4.6, total, 1e-9) // +0.1 +5.0 -0.5
}

func TestDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(WaitTool{}))
	require.Error(t, r.Register(WaitTool{}))
}
