package billing

import (
	"testing"

	"onboard/internal/types"
)

func TestRecommend_DecisionTable(t *testing.T) {
	cases := []struct {
		level  types.TechLevel
		volume types.WorkflowVolume
		want   types.PlanKey
	}{
		{types.TechSelfSufficient, types.VolumeStarter, types.PlanEssentials},
		{types.TechSelfSufficient, types.VolumeGrowing, types.PlanSupportPlus},
		{types.TechSelfSufficient, types.VolumeUnsure, types.PlanSupportPlus},
		{types.TechSelfSufficient, types.VolumeFullEngine, types.PlanPro},

		{types.TechSomeHelp, types.VolumeStarter, types.PlanSupportPlus},
		{types.TechSomeHelp, types.VolumeGrowing, types.PlanSupportPlus},
		{types.TechSomeHelp, types.VolumeUnsure, types.PlanSupportPlus},
		{types.TechSomeHelp, types.VolumeFullEngine, types.PlanPro},

		{types.TechFullService, types.VolumeStarter, types.PlanPro},
		{types.TechFullService, types.VolumeGrowing, types.PlanPro},
		{types.TechFullService, types.VolumeUnsure, types.PlanPro},
		{types.TechFullService, types.VolumeFullEngine, types.PlanEmbedded},
	}

	for _, tc := range cases {
		got := Recommend(tc.level, tc.volume)
		if got != tc.want {
			t.Errorf("Recommend(%s, %s) = %s, want %s", tc.level, tc.volume, got, tc.want)
		}
	}
}

// Every enum combination must yield a valid plan key, and repeated calls must
// agree with each other.
func TestRecommend_TotalAndDeterministic(t *testing.T) {
	for _, level := range types.AllTechLevels {
		for _, volume := range types.AllWorkflowVolumes {
			first := Recommend(level, volume)
			if !types.IsValidPlanKey(first) {
				t.Errorf("Recommend(%s, %s) = %q, not a valid plan key", level, volume, first)
			}
			for i := 0; i < 3; i++ {
				if again := Recommend(level, volume); again != first {
					t.Errorf("Recommend(%s, %s) not deterministic: %s then %s", level, volume, first, again)
				}
			}
		}
	}
}

func TestRecommend_UnknownInputsStillResolve(t *testing.T) {
	// Recommend is total even over values outside the enum domain; the
	// default tier applies.
	if got := Recommend(types.TechLevel("bogus"), types.WorkflowVolume("bogus")); got != types.PlanEssentials {
		t.Errorf("Recommend over unknown inputs = %s, want %s", got, types.PlanEssentials)
	}
}
