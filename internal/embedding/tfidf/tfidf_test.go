package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

var (
	_ domain.Embedder = (*Embedder)(nil)
	_ domain.Fitter   = (*Embedder)(nil)
)

func TestEmbed_RequiresFit(t *testing.T) {
	_, err := New().Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestFit_LeavesReceiverUntouched(t *testing.T) {
	base := New()
	fitted, err := base.Fit([]string{"refund policy", "shipping times"})
	require.NoError(t, err)

	assert.Equal(t, 0, base.Dimension())
	assert.Equal(t, 4, fitted.(*Embedder).Dimension())
}

func TestFit_Errors(t *testing.T) {
	_, err := New().Fit(nil)
	assert.Error(t, err)

	_, err = New().Fit([]string{"the and of", "   "})
	assert.Error(t, err)
}

func TestEmbed_NormalizedAndDiscriminative(t *testing.T) {
	ctx := context.Background()
	fitted, err := New().Fit([]string{
		"Refunds are issued within 30 days of purchase.",
		"Shipping takes five business days.",
		"Our office is open on weekdays.",
	})
	require.NoError(t, err)

	q, err := fitted.Embed(ctx, "How are refunds issued?")
	require.NoError(t, err)
	refund, err := fitted.Embed(ctx, "Refunds are issued within 30 days of purchase.")
	require.NoError(t, err)
	shipping, err := fitted.Embed(ctx, "Shipping takes five business days.")
	require.NoError(t, err)

	sum := 0.0
	for _, v := range refund {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.Greater(t, dot(q, refund), dot(q, shipping))
}

func TestEmbed_UnknownTermsZeroVector(t *testing.T) {
	fitted, err := New().Fit([]string{"alpha beta"})
	require.NoError(t, err)

	vec, err := fitted.Embed(context.Background(), "gamma delta")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func dot(a, b []float32) float64 {
	s := 0.0
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
