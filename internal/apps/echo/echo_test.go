package echo_test

import (
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/apps/echo"
	"github.com/jlindermeir/ami0/internal/schema"
)

func echoAction(t *testing.T, message, effect string) app.Action {
	t.Helper()
	raw, err := jsoniter.Marshal(map[string]string{
		"type":    echo.Tag,
		"message": message,
		"effect":  effect,
	})
	require.NoError(t, err)
	return app.Action{Tag: echo.Tag, Payload: raw}
}

func TestHandleAction_Effects(t *testing.T) {
	testCases := []struct {
		effect  string
		message string
		want    string
	}{
		{effect: echo.EffectUppercase, message: "Hello World", want: "Echo (uppercase): HELLO WORLD"},
		{effect: echo.EffectLowercase, message: "Hello World", want: "Echo (lowercase): hello world"},
		{effect: echo.EffectReverse, message: "Hello", want: "Echo (reverse): olleH"},
		{effect: echo.EffectAlternating, message: "hello world", want: "Echo (alternating): HeLlO WoRlD"},
		{effect: echo.EffectReverse, message: "héllo", want: "Echo (reverse): olléh"},
	}

	a := echo.New()
	for _, tc := range testCases {
		t.Run(tc.effect+"/"+tc.message, func(t *testing.T) {
			result, err := a.HandleAction(context.Background(), echoAction(t, tc.message, tc.effect))
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Text)
		})
	}
}

func TestHandleAction_UnknownEffect(t *testing.T) {
	a := echo.New()
	_, err := a.HandleAction(context.Background(), echoAction(t, "hi", "shouting"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shouting")
}

func TestActionModels_EffectEnumIsClosed(t *testing.T) {
	models := echo.New().ActionModels()
	require.Len(t, models, 1)
	assert.Equal(t, echo.Tag, models[0].Tag)

	effect := models[0].Payload.Properties["effect"]
	require.NotNil(t, effect)
	assert.ElementsMatch(t, []string{
		echo.EffectUppercase, echo.EffectLowercase, echo.EffectReverse, echo.EffectAlternating,
	}, effect.Enum)

	// A payload with an out-of-enum effect fails validation before it
	// could ever reach the handler.
	err := schema.Validate(models[0].Wire(), []byte(`{"type": "echo", "message": "hi", "effect": "shouting"}`))
	require.Error(t, err)
}

func TestAppMetadata(t *testing.T) {
	a := echo.New()
	assert.Equal(t, "echo", a.Name())
	assert.NotEmpty(t, a.Description())
	assert.NotEmpty(t, a.UsagePrompt())
	assert.NoError(t, a.Close())
}
