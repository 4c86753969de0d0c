package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/clubbot/core/plan"
)

func TestPlanTitle(t *testing.T) {
	assert.Equal(t, "1 месяц", planTitle(plan.Plan{Days: 30}))
	assert.Equal(t, "3 месяца", planTitle(plan.Plan{Days: 90}))
	assert.Equal(t, "1 год", planTitle(plan.Plan{Days: 365}))
	assert.Equal(t, "14 дней", planTitle(plan.Plan{Days: 14}))
}

func TestPlanButtonText(t *testing.T) {
	assert.Equal(t, "1 месяц — 555 ₽", planButtonText(plan.Plan{Days: 30, Amount: 555}))
}
