package wizard

// Checkpoint classifies a step transition for the autosave orchestrator.
type Checkpoint string

const (
	// CheckpointNone marks a transition with no autosave side effect.
	CheckpointNone Checkpoint = ""
	// CheckpointCreate marks the transition where the minimum contact fields
	// are expected to be populated for the first time.
	CheckpointCreate Checkpoint = "create"
	// CheckpointUpdate marks a transition that resends the entire current
	// record. Each update is comprehensive, so a missed checkpoint loses no
	// data: the next one resends everything.
	CheckpointUpdate Checkpoint = "update"
)

// updateCheckpoints are the steps whose completion triggers a comprehensive
// remote update: after plan confirmation, after add-on selection, and before
// the final step.
var updateCheckpoints = map[int]bool{
	StepPlanRecommend:   true,
	StepSummary:         true,
	StepAutomationAreas: true,
}

// CheckpointFor classifies the transition from prev to next. Only forward
// transitions autosave; retreating never does. Classification is keyed on the
// step being left so that conditional skips downstream cannot move a
// checkpoint.
func CheckpointFor(prev, next int) Checkpoint {
	if next <= prev {
		return CheckpointNone
	}
	switch {
	case prev == StepBusinessDetails:
		return CheckpointCreate
	case updateCheckpoints[prev]:
		return CheckpointUpdate
	default:
		return CheckpointNone
	}
}
