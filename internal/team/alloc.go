package team

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hanapbuhay/backend/internal/models"
)

var (
	ErrNoSlots         = errors.New("team job requires at least one skill slot")
	ErrBadAllocation   = errors.New("manual allocation does not sum to job budget")
	ErrUnknownPolicy   = errors.New("unknown budget allocation policy")
	ErrNoWorkersNeeded = errors.New("slot requires at least one worker")
)

// Skill-level weights for SKILL_WEIGHTED allocation.
var skillWeights = map[string]decimal.Decimal{
	models.SkillLevelEntry:        decimal.NewFromInt(1),
	models.SkillLevelIntermediate: decimal.RequireFromString("1.3"),
	models.SkillLevelExpert:       decimal.RequireFromString("1.7"),
}

// Allocate distributes the job budget across skill slots according to the
// chosen policy, writing BudgetAllocatedCentavos on each slot in place. The
// resulting slot budgets always sum exactly to totalCentavos: fractional
// centavos left by the division are handed out largest-remainder-first.
func Allocate(policy string, totalCentavos int64, slots []*models.JobSkillSlot) error {
	if len(slots) == 0 {
		return ErrNoSlots
	}
	for _, s := range slots {
		if s.WorkersNeeded < 1 {
			return fmt.Errorf("%w: slot %s", ErrNoWorkersNeeded, s.ID)
		}
	}

	switch policy {
	case models.AllocEqualPerSkill:
		weights := make([]decimal.Decimal, len(slots))
		for i := range slots {
			weights[i] = decimal.NewFromInt(1)
		}
		apportion(totalCentavos, slots, weights)
	case models.AllocEqualPerWorker:
		weights := make([]decimal.Decimal, len(slots))
		for i, s := range slots {
			weights[i] = decimal.NewFromInt(int64(s.WorkersNeeded))
		}
		apportion(totalCentavos, slots, weights)
	case models.AllocSkillWeighted:
		weights := make([]decimal.Decimal, len(slots))
		for i, s := range slots {
			w, ok := skillWeights[s.SkillLevelRequired]
			if !ok {
				w = decimal.NewFromInt(1)
			}
			weights[i] = w.Mul(decimal.NewFromInt(int64(s.WorkersNeeded)))
		}
		apportion(totalCentavos, slots, weights)
	case models.AllocManualAllocation:
		var sum int64
		largest := 0
		for i, s := range slots {
			sum += s.BudgetAllocatedCentavos
			if s.BudgetAllocatedCentavos > slots[largest].BudgetAllocatedCentavos {
				largest = i
			}
		}
		// Client-supplied budgets may miss the total by one centavo of
		// rounding; the largest share absorbs the delta. Anything bigger is
		// a bad allocation.
		delta := totalCentavos - sum
		if delta < -1 || delta > 1 {
			return fmt.Errorf("%w: got %d, want %d", ErrBadAllocation, sum, totalCentavos)
		}
		slots[largest].BudgetAllocatedCentavos += delta
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	return nil
}

// apportion splits total proportionally to weights with exact conservation.
func apportion(total int64, slots []*models.JobSkillSlot, weights []decimal.Decimal) {
	weightSum := decimal.Zero
	for _, w := range weights {
		weightSum = weightSum.Add(w)
	}
	totalDec := decimal.NewFromInt(total)

	type part struct {
		idx  int
		frac decimal.Decimal
	}
	parts := make([]part, len(slots))
	var assigned int64
	for i := range slots {
		exact := totalDec.Mul(weights[i]).Div(weightSum)
		floor := exact.Floor()
		slots[i].BudgetAllocatedCentavos = floor.IntPart()
		assigned += floor.IntPart()
		parts[i] = part{idx: i, frac: exact.Sub(floor)}
	}
	sort.SliceStable(parts, func(a, b int) bool {
		return parts[a].frac.GreaterThan(parts[b].frac)
	})
	for i := int64(0); i < total-assigned; i++ {
		slots[parts[i%int64(len(parts))].idx].BudgetAllocatedCentavos++
	}
}

// FillPercentage is filled positions over total positions, 0..100.
func FillPercentage(slots []*models.JobSkillSlot, active []*models.JobWorkerAssignment) int {
	var needed int
	for _, s := range slots {
		needed += s.WorkersNeeded
	}
	if needed == 0 {
		return 0
	}
	var filled int
	for _, a := range active {
		if a.AssignmentStatus == models.AssignmentActive || a.AssignmentStatus == models.AssignmentCompleted {
			filled++
		}
	}
	return filled * 100 / needed
}
