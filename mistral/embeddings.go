package mistral

import (
	"context"
	"fmt"
)

// EncodingFormatFloat is the only embedding encoding the API offers.
const EncodingFormatFloat = "float"

// EmbeddingRequest asks for the embeddings of a batch of texts.
type EmbeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// EmbeddingResponse holds one embedding per input, in input order.
type EmbeddingResponse struct {
	ID     string            `json:"id"`
	Object string            `json:"object"`
	Data   []EmbeddingResult `json:"data"`
	Model  string            `json:"model"`
	Usage  *Usage            `json:"usage,omitempty"`
}

// EmbeddingResult is the embedding of one input.
type EmbeddingResult struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// Vectors returns the embeddings ordered by input index.
func (r *EmbeddingResponse) Vectors() [][]float64 {
	out := make([][]float64, len(r.Data))
	for _, d := range r.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out
}

// Embeddings computes embeddings for req.Input.
func (c *Client) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if req == nil || len(req.Input) == 0 {
		return nil, fmt.Errorf("%w: embedding input is empty", ErrInvalidRequest)
	}
	wire := *req
	if wire.Model == "" {
		wire.Model = ModelMistralEmbed
	}
	if wire.EncodingFormat == "" {
		wire.EncodingFormat = EncodingFormatFloat
	}

	var resp EmbeddingResponse
	if err := c.postJSON(ctx, "embeddings", &wire, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
