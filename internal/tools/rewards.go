package tools

// Fixed reward values per tool and outcome. Evaluators and performance
// tracking depend on these exact numbers; changing one changes what the
// agent learns.
const (
	RewardMove          = 0.1
	RewardInteract      = 1.0
	RewardAttack        = 5.0
	RewardUseItem       = 0.5
	RewardSpeak         = 0.5
	RewardObjectiveDone = 2.0
	RewardQuestComplete = 10.0
	RewardInventory     = 0.2
	RewardWait          = 0.0

	PenaltyTargetMissing = -0.5
	PenaltyAttackMissing = -1.0
	PenaltyItemMissing   = -0.5
	PenaltyQuestUnknown  = -1.0
)
