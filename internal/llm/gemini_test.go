package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestRetryable(t *testing.T) {
	t.Run("Should retry rate limits and server errors", func(t *testing.T) {
		assert.True(t, Retryable(&googleapi.Error{Code: 429}))
		assert.True(t, Retryable(errors.Wrap(&googleapi.Error{Code: 503}, "call")))
		assert.True(t, Retryable(context.DeadlineExceeded))
	})

	t.Run("Should not retry client errors", func(t *testing.T) {
		assert.False(t, Retryable(nil))
		assert.False(t, Retryable(&googleapi.Error{Code: 400}))
		assert.False(t, Retryable(&googleapi.Error{Code: 403}))
		assert.False(t, Retryable(errors.New("boom")))
	})
}

func TestResponseText(t *testing.T) {
	t.Run("Should join text parts of the first candidate", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Stay "), genai.Text("indoors.")}},
		}}}
		got, err := ResponseText(resp)
		require.NoError(t, err)
		assert.Equal(t, "Stay indoors.", got)
	})

	t.Run("Should fail on empty responses", func(t *testing.T) {
		_, err := ResponseText(nil)
		assert.ErrorIs(t, err, ErrEmptyResponse)

		_, err = ResponseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}})
		assert.ErrorIs(t, err, ErrEmptyResponse)

		_, err = ResponseText(&genai.GenerateContentResponse{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestSupportsGenerate(t *testing.T) {
	t.Run("Should look for generateContent", func(t *testing.T) {
		assert.True(t, SupportsGenerate([]string{"countTokens", "generateContent"}))
		assert.False(t, SupportsGenerate([]string{"embedContent"}))
		assert.False(t, SupportsGenerate(nil))
	})
}
