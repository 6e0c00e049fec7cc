package mistral

import "context"

// ModelList is the set of models available to the account.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model describes one available model.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ListModels lists the models available to the account.
func (c *Client) ListModels(ctx context.Context) (*ModelList, error) {
	var list ModelList
	if err := c.getJSON(ctx, "models", &list); err != nil {
		return nil, err
	}
	return &list, nil
}
