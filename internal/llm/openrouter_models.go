package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sahilm/fuzzy"
)

const (
	// FreeSuffix marks model ids that can be used at no cost.
	FreeSuffix = ":free"
	// DefaultModelLimit caps the free model list so a selector stays usable.
	DefaultModelLimit = 20

	maxCatalogSize = 16 * 1024 * 1024
)

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// ListModels fetches the full model catalog.
func (c *Client) ListModels(ctx context.Context, credential string) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, strings.TrimSpace(credential))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("read models response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}
	return parsed.Data, nil
}

// FreeModels returns up to limit no-cost models in catalog order. Failures
// are logged and produce an empty list.
func (c *Client) FreeModels(ctx context.Context, credential string, limit int) []ModelDescriptor {
	models, err := c.ListModels(ctx, credential)
	if err != nil {
		c.logger.Warn("failed to fetch models", "error", err)
		return []ModelDescriptor{}
	}
	return SelectFreeModels(models, limit)
}

// SelectFreeModels filters a catalog down to free models, falling back to the
// id when a model has no display name.
func SelectFreeModels(models []ModelInfo, limit int) []ModelDescriptor {
	if limit <= 0 {
		limit = DefaultModelLimit
	}
	out := make([]ModelDescriptor, 0, min(limit, len(models)))
	for _, m := range models {
		if !strings.HasSuffix(m.ID, FreeSuffix) {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		out = append(out, ModelDescriptor{ID: m.ID, Name: name})
		if len(out) == limit {
			break
		}
	}
	return out
}

type descriptorSource []ModelDescriptor

func (d descriptorSource) String(i int) string { return d[i].ID + " " + d[i].Name }
func (d descriptorSource) Len() int            { return len(d) }

// FilterModels fuzzy-matches query against model ids and names, best match first.
func FilterModels(models []ModelDescriptor, query string) []ModelDescriptor {
	query = strings.TrimSpace(query)
	if query == "" {
		return models
	}
	matches := fuzzy.FindFrom(query, descriptorSource(models))
	out := make([]ModelDescriptor, 0, len(matches))
	for _, m := range matches {
		out = append(out, models[m.Index])
	}
	return out
}
