package billing

import "onboard/internal/types"

// Recommend maps the customer's technical comfort level and expected workflow
// volume to a plan tier. It is a pure, total function: every input pair yields
// a valid plan key, and later rules override earlier ones.
//
// Base tier comes from the technical level; a high workflow volume then pushes
// the recommendation up, and an uncertain or growing volume lifts a bare
// Essentials recommendation to Support Plus.
func Recommend(level types.TechLevel, volume types.WorkflowVolume) types.PlanKey {
	rec := types.PlanEssentials

	switch level {
	case types.TechFullService:
		rec = types.PlanPro
	case types.TechSomeHelp:
		rec = types.PlanSupportPlus
	}

	switch {
	case volume == types.VolumeFullEngine:
		if level == types.TechFullService {
			rec = types.PlanEmbedded
		} else {
			rec = types.PlanPro
		}
	case volume == types.VolumeGrowing && rec == types.PlanEssentials:
		rec = types.PlanSupportPlus
	case volume == types.VolumeUnsure && rec == types.PlanEssentials:
		rec = types.PlanSupportPlus
	}

	return rec
}
