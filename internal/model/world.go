package model

// Position is a location in the game world.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// InventoryItem is one stack in the agent's inventory.
type InventoryItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Entity is something visible to the agent in the world.
type Entity struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// QuestObjective is one step of an active quest.
type QuestObjective struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Quest is an active quest with nested objectives.
type Quest struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Objectives []QuestObjective `json:"objectives"`
	Completed  bool             `json:"completed"`
}

// Dialogue is the active dialogue context, if the agent is mid-conversation.
type Dialogue struct {
	SpeakerID string   `json:"speaker_id"`
	Topic     string   `json:"topic,omitempty"`
	History   []string `json:"history,omitempty"`
}

// WorldState is an immutable snapshot of the game world as the agent sees it.
// Tools receive the current value and return a new one; nothing edits a
// WorldState in place. The runtime holds the single authoritative value per
// session and replaces it after each successful tool execution.
type WorldState struct {
	Environment      string            `json:"environment"`
	Position         Position          `json:"position"`
	Stats            map[string]int    `json:"stats,omitempty"`
	Inventory        []InventoryItem   `json:"inventory,omitempty"`
	VisibleEntities  []Entity          `json:"visible_entities,omitempty"`
	ActiveQuests     []Quest           `json:"active_quests,omitempty"`
	AvailableActions []string          `json:"available_actions,omitempty"`
	RecentEvents     []string          `json:"recent_events,omitempty"`
	ActiveDialogue   *Dialogue         `json:"active_dialogue,omitempty"`
}

// Clone returns a deep copy of the world state. Tools mutate the copy and
// return it; the input value stays untouched.
func (w WorldState) Clone() WorldState {
	out := w

	if w.Stats != nil {
		out.Stats = make(map[string]int, len(w.Stats))
		for k, v := range w.Stats {
			out.Stats[k] = v
		}
	}
	if w.Inventory != nil {
		out.Inventory = make([]InventoryItem, len(w.Inventory))
		copy(out.Inventory, w.Inventory)
	}
	if w.VisibleEntities != nil {
		out.VisibleEntities = make([]Entity, len(w.VisibleEntities))
		copy(out.VisibleEntities, w.VisibleEntities)
	}
	if w.ActiveQuests != nil {
		out.ActiveQuests = make([]Quest, len(w.ActiveQuests))
		for i, q := range w.ActiveQuests {
			cq := q
			if q.Objectives != nil {
				cq.Objectives = make([]QuestObjective, len(q.Objectives))
				copy(cq.Objectives, q.Objectives)
			}
			out.ActiveQuests[i] = cq
		}
	}
	if w.AvailableActions != nil {
		out.AvailableActions = make([]string, len(w.AvailableActions))
		copy(out.AvailableActions, w.AvailableActions)
	}
	if w.RecentEvents != nil {
		out.RecentEvents = make([]string, len(w.RecentEvents))
		copy(out.RecentEvents, w.RecentEvents)
	}
	if w.ActiveDialogue != nil {
		d := *w.ActiveDialogue
		if w.ActiveDialogue.History != nil {
			d.History = make([]string, len(w.ActiveDialogue.History))
			copy(d.History, w.ActiveDialogue.History)
		}
		out.ActiveDialogue = &d
	}

	return out
}

// Entity returns the visible entity with the given id, if any.
func (w WorldState) Entity(id string) (Entity, bool) {
	for _, e := range w.VisibleEntities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Item returns the inventory item with the given id, if any.
func (w WorldState) Item(id string) (InventoryItem, bool) {
	for _, it := range w.Inventory {
		if it.ID == id {
			return it, true
		}
	}
	return InventoryItem{}, false
}

// Quest returns the active quest with the given id, if any.
func (w WorldState) Quest(id string) (Quest, bool) {
	for _, q := range w.ActiveQuests {
		if q.ID == id {
			return q, true
		}
	}
	return Quest{}, false
}
