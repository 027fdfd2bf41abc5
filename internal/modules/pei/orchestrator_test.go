package pei

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePlanIncompleteSkipsBackend(t *testing.T) {
	gen := &countingGenerator{reply: "{}"}
	o := NewOrchestrator(gen)

	out, err := o.GeneratePlan(context.Background(), 3, sampleStudent(), sampleResponses(2))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncomplete, out.Status)
	assert.Nil(t, out.Plan)
	assert.Equal(t, 1, out.Completion.Pending)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestGeneratePlanComplete(t *testing.T) {
	gen := &countingGenerator{reply: mustJSON(t, validPlanMap())}
	fixed := time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC)
	o := NewOrchestrator(gen, WithClock(func() time.Time { return fixed }))

	out, err := o.GeneratePlan(context.Background(), 2, sampleStudent(), sampleResponses(2))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Status)
	require.NotNil(t, out.Plan)
	assert.Equal(t, fixed, out.Plan.GeneratedAt)
	assert.True(t, out.Completion.IsComplete)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestGeneratePlanSchemaFailurePropagates(t *testing.T) {
	m := validPlanMap()
	delete(m, "confidence_score")
	gen := &countingGenerator{reply: mustJSON(t, m)}

	out, err := NewOrchestrator(gen).GeneratePlan(context.Background(), 2, sampleStudent(), sampleResponses(2))
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, IsGenerationError(err))
}

func TestAdaptMaterialPassthrough(t *testing.T) {
	gen := &countingGenerator{reply: mustJSON(t, validAdaptationMap())}
	o := NewOrchestrator(gen, WithTextLimiter(halfLimiter{}))

	res, err := o.AdaptMaterial(context.Background(), "conteúdo do material original", MaterialMetadata{Subject: "Matemática"}, samplePlan(t))
	require.NoError(t, err)
	assert.Equal(t, "Matemática", res.OriginalMetadata.Subject)
	assert.Equal(t, int32(1), gen.calls.Load())
}
