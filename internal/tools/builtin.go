package tools

import (
	"fmt"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// MoveTool moves the agent to an absolute position.
type MoveTool struct{}

func (MoveTool) Name() string { return "move" }

func (MoveTool) Description() string {
	return "Move to a position in the world. Arguments: x, y, z coordinates."
}

func (MoveTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"x": {"type": "number"},
			"y": {"type": "number"},
			"z": {"type": "number"}
		},
		"required": ["x", "y", "z"],
		"additionalProperties": false
	}`
}

func (MoveTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	next := state.Clone()
	next.Position = model.Position{
		X: argFloat(args, "x"),
		Y: argFloat(args, "y"),
		Z: argFloat(args, "z"),
	}
	desc := fmt.Sprintf("moved to (%.1f, %.1f, %.1f)", next.Position.X, next.Position.Y, next.Position.Z)
	next.RecentEvents = append(next.RecentEvents, desc)
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardMove, Description: desc}
}

// InteractTool interacts with a visible entity.
type InteractTool struct{}

func (InteractTool) Name() string { return "interact" }

func (InteractTool) Description() string {
	return "Interact with a visible entity (open, examine, touch). Arguments: target_id."
}

func (InteractTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"target_id": {"type": "string", "minLength": 1}
		},
		"required": ["target_id"],
		"additionalProperties": false
	}`
}

func (InteractTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	targetID := argString(args, "target_id")
	entity, ok := state.Entity(targetID)
	if !ok {
		return model.Failure(state, PenaltyTargetMissing,
			fmt.Sprintf("cannot interact: no visible entity %q", targetID))
	}

	next := state.Clone()
	desc := fmt.Sprintf("interacted with %s %q", entity.Type, entity.ID)
	next.RecentEvents = append(next.RecentEvents, desc)
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardInteract, Description: desc}
}

// AttackTool attacks a visible entity.
type AttackTool struct{}

func (AttackTool) Name() string { return "attack" }

func (AttackTool) Description() string {
	return "Attack a visible entity. Arguments: target_id."
}

func (AttackTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"target_id": {"type": "string", "minLength": 1}
		},
		"required": ["target_id"],
		"additionalProperties": false
	}`
}

func (AttackTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	targetID := argString(args, "target_id")
	entity, ok := state.Entity(targetID)
	if !ok {
		return model.Failure(state, PenaltyAttackMissing,
			fmt.Sprintf("cannot attack: no visible entity %q", targetID))
	}

	next := state.Clone()
	desc := fmt.Sprintf("attacked %s %q", entity.Type, entity.ID)
	next.RecentEvents = append(next.RecentEvents, desc)
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardAttack, Description: desc}
}

// UseItemTool consumes one unit of an inventory item.
type UseItemTool struct{}

func (UseItemTool) Name() string { return "use_item" }

func (UseItemTool) Description() string {
	return "Use one unit of an inventory item, optionally on a target. Arguments: item_id, target_id (optional)."
}

func (UseItemTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"item_id": {"type": "string", "minLength": 1},
			"target_id": {"type": "string"}
		},
		"required": ["item_id"],
		"additionalProperties": false
	}`
}

func (UseItemTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	itemID := argString(args, "item_id")
	item, ok := state.Item(itemID)
	if !ok || item.Quantity <= 0 {
		return model.Failure(state, PenaltyItemMissing,
			fmt.Sprintf("cannot use item: %q not in inventory", itemID))
	}

	if targetID := argString(args, "target_id"); targetID != "" {
		if _, visible := state.Entity(targetID); !visible {
			return model.Failure(state, PenaltyTargetMissing,
				fmt.Sprintf("cannot use item on %q: entity not visible", targetID))
		}
	}

	next := state.Clone()
	for i := range next.Inventory {
		if next.Inventory[i].ID != itemID {
			continue
		}
		next.Inventory[i].Quantity--
		if next.Inventory[i].Quantity <= 0 {
			next.Inventory = append(next.Inventory[:i], next.Inventory[i+1:]...)
		}
		break
	}

	desc := fmt.Sprintf("used %s", item.Name)
	next.RecentEvents = append(next.RecentEvents, desc)
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardUseItem, Description: desc}
}

// SpeakTool says something, optionally addressed at a visible entity.
type SpeakTool struct{}

func (SpeakTool) Name() string { return "speak" }

func (SpeakTool) Description() string {
	return "Say something aloud or to a visible entity. Arguments: message, target_id (optional)."
}

func (SpeakTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"message": {"type": "string", "minLength": 1},
			"target_id": {"type": "string"}
		},
		"required": ["message"],
		"additionalProperties": false
	}`
}

func (SpeakTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	message := argString(args, "message")
	targetID := argString(args, "target_id")

	if targetID != "" {
		if _, visible := state.Entity(targetID); !visible {
			return model.Failure(state, PenaltyTargetMissing,
				fmt.Sprintf("cannot speak to %q: entity not visible", targetID))
		}
	}

	next := state.Clone()
	line := fmt.Sprintf("said %q", message)
	if targetID != "" {
		line = fmt.Sprintf("said %q to %q", message, targetID)
	}
	if next.ActiveDialogue != nil && (targetID == "" || next.ActiveDialogue.SpeakerID == targetID) {
		next.ActiveDialogue.History = append(next.ActiveDialogue.History, message)
	}
	next.RecentEvents = append(next.RecentEvents, line)
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardSpeak, Description: line}
}

// QuestActionTool advances or completes an active quest.
type QuestActionTool struct{}

func (QuestActionTool) Name() string { return "quest_action" }

func (QuestActionTool) Description() string {
	return "Advance an active quest by completing its next (or a named) objective. Arguments: quest_id, objective_id (optional)."
}

func (QuestActionTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"quest_id": {"type": "string", "minLength": 1},
			"objective_id": {"type": "string"}
		},
		"required": ["quest_id"],
		"additionalProperties": false
	}`
}

func (QuestActionTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	questID := argString(args, "quest_id")
	objectiveID := argString(args, "objective_id")

	quest, ok := state.Quest(questID)
	if !ok {
		return model.Failure(state, PenaltyQuestUnknown,
			fmt.Sprintf("no active quest %q", questID))
	}
	if quest.Completed {
		return model.Failure(state, PenaltyTargetMissing,
			fmt.Sprintf("quest %q is already complete", questID))
	}

	next := state.Clone()
	for qi := range next.ActiveQuests {
		if next.ActiveQuests[qi].ID != questID {
			continue
		}
		q := &next.ActiveQuests[qi]

		done := false
		var objName string
		for oi := range q.Objectives {
			o := &q.Objectives[oi]
			if o.Completed {
				continue
			}
			if objectiveID != "" && o.ID != objectiveID {
				continue
			}
			o.Completed = true
			objName = o.Description
			done = true
			break
		}
		if !done {
			return model.Failure(state, PenaltyTargetMissing,
				fmt.Sprintf("quest %q has no matching incomplete objective", questID))
		}

		remaining := 0
		for _, o := range q.Objectives {
			if !o.Completed {
				remaining++
			}
		}
		if remaining == 0 {
			q.Completed = true
			desc := fmt.Sprintf("completed quest %q", q.Name)
			next.RecentEvents = append(next.RecentEvents, desc)
			return model.ToolResult{Success: true, WorldState: next, Reward: RewardQuestComplete, Description: desc}
		}

		desc := fmt.Sprintf("completed objective %q of quest %q", objName, q.Name)
		next.RecentEvents = append(next.RecentEvents, desc)
		return model.ToolResult{Success: true, WorldState: next, Reward: RewardObjectiveDone, Description: desc}
	}

	// Unreachable: the quest was found above.
	return model.Failure(state, PenaltyQuestUnknown, fmt.Sprintf("no active quest %q", questID))
}

// InventoryActionTool drops or equips an inventory item.
type InventoryActionTool struct{}

func (InventoryActionTool) Name() string { return "inventory_action" }

func (InventoryActionTool) Description() string {
	return "Manage the inventory: drop or equip an item. Arguments: action (drop|equip), item_id, quantity (optional, drop only)."
}

func (InventoryActionTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["drop", "equip"]},
			"item_id": {"type": "string", "minLength": 1},
			"quantity": {"type": "integer", "minimum": 1}
		},
		"required": ["action", "item_id"],
		"additionalProperties": false
	}`
}

func (InventoryActionTool) Execute(args map[string]any, state model.WorldState) model.ToolResult {
	action := argString(args, "action")
	itemID := argString(args, "item_id")

	item, ok := state.Item(itemID)
	if !ok {
		return model.Failure(state, PenaltyItemMissing,
			fmt.Sprintf("cannot %s: %q not in inventory", action, itemID))
	}

	next := state.Clone()
	var desc string
	switch action {
	case "drop":
		qty := argInt(args, "quantity")
		if qty <= 0 || qty > item.Quantity {
			qty = item.Quantity
		}
		for i := range next.Inventory {
			if next.Inventory[i].ID != itemID {
				continue
			}
			next.Inventory[i].Quantity -= qty
			if next.Inventory[i].Quantity <= 0 {
				next.Inventory = append(next.Inventory[:i], next.Inventory[i+1:]...)
			}
			break
		}
		desc = fmt.Sprintf("dropped %d x %s", qty, item.Name)
	case "equip":
		desc = fmt.Sprintf("equipped %s", item.Name)
	}

	next.RecentEvents = append(next.RecentEvents, desc)
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardInventory, Description: desc}
}

// WaitTool passes time without acting.
type WaitTool struct{}

func (WaitTool) Name() string { return "wait" }

func (WaitTool) Description() string {
	return "Do nothing for a moment and observe. Arguments: none."
}

func (WaitTool) SchemaJSON() string {
	return `{
		"type": "object",
		"properties": {},
		"additionalProperties": false
	}`
}

func (WaitTool) Execute(_ map[string]any, state model.WorldState) model.ToolResult {
	next := state.Clone()
	next.RecentEvents = append(next.RecentEvents, "waited")
	return model.ToolResult{Success: true, WorldState: next, Reward: RewardWait, Description: "waited"}
}

// argString reads a string argument, returning "" when absent.
func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// argFloat reads a numeric argument; JSON decoding yields float64, Go callers
// may pass int.
func argFloat(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func argInt(args map[string]any, key string) int {
	return int(argFloat(args, key))
}
