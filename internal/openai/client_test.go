package openai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	dimensions int
	calls      int
	batches    [][]string
	embedErr   error

	completion    string
	completionErr error
	systems       []string
	users         []string
}

func (f *fakeAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batches = append(f.batches, texts)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dimensions)
		v[0] = float32(i + 1)
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeAPI) CreateJSONCompletion(ctx context.Context, system, user string) (string, error) {
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.completionErr != nil {
		return "", f.completionErr
	}
	return f.completion, nil
}

func newTestClient(api *fakeAPI) *Client {
	return &Client{embeddings: api, completion: api, dimensions: api.dimensions}
}

func TestEmbedTexts_SingleBatchCall(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	texts := []string{"first chunk", "second chunk", "third chunk"}
	vectors, err := client.EmbedTexts(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, texts, api.batches[0])
}

func TestEmbedTexts_OrderMatchesInput(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	vectors, err := client.EmbedTexts(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	for i, v := range vectors {
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	vectors, err := client.EmbedTexts(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, api.calls)
}

func TestEmbedTexts_RejectsEmptyText(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	_, err := client.EmbedTexts(context.Background(), []string{"ok", ""})

	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, api.calls)
}

func TestEmbedTexts_WrongDimensions(t *testing.T) {
	api := &fakeAPI{dimensions: 8}
	client := &Client{embeddings: api, completion: api, dimensions: 1536}

	_, err := client.EmbedTexts(context.Background(), []string{"chunk"})

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestEmbedTexts_APIError(t *testing.T) {
	api := &fakeAPI{dimensions: 1536, embedErr: errors.New("rate limited")}
	client := newTestClient(api)

	_, err := client.EmbedTexts(context.Background(), []string{"chunk"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEmbedQuery(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	vector, err := client.EmbedQuery(context.Background(), "how do discount codes work")

	require.NoError(t, err)
	assert.Len(t, vector, 1536)
	assert.Equal(t, 1, api.calls)
}

func TestEmbedQuery_EmptyReturnsEmptyVector(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	vector, err := client.EmbedQuery(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, vector)
	assert.Zero(t, api.calls)
}

func TestGenerateJSON(t *testing.T) {
	api := &fakeAPI{dimensions: 1536, completion: `{"test_cases":[]}`}
	client := newTestClient(api)

	out, err := client.GenerateJSON(context.Background(), "you are a test designer", "generate cases")

	require.NoError(t, err)
	assert.Equal(t, `{"test_cases":[]}`, out)
	require.Len(t, api.systems, 1)
	assert.Equal(t, "you are a test designer", api.systems[0])
	assert.Equal(t, "generate cases", api.users[0])
}

func TestGenerateJSON_EmptyPrompt(t *testing.T) {
	api := &fakeAPI{dimensions: 1536}
	client := newTestClient(api)

	_, err := client.GenerateJSON(context.Background(), "system", "")

	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestGenerateJSON_APIError(t *testing.T) {
	api := &fakeAPI{dimensions: 1536, completionErr: fmt.Errorf("model overloaded")}
	client := newTestClient(api)

	_, err := client.GenerateJSON(context.Background(), "system", "user")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}
