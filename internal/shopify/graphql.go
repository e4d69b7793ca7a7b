package shopify

import (
	"context"
	"net/http"
	"strings"
)

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// UserError is a mutation-level validation error.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// PageInfo is the Relay cursor block of a connection.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Connection is a GraphQL connection queried through its nodes field.
type Connection[N any] struct {
	Nodes    []N      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}

// Page converts the connection into a Page whose cursor is the end cursor.
func (c Connection[N]) Page() Page[N] {
	next := ""
	if c.PageInfo.HasNextPage {
		next = c.PageInfo.EndCursor
	}
	return Page[N]{Items: c.Nodes, Next: next}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// Query posts a GraphQL document and decodes data into T.
// A response carrying errors fails; a THROTTLED error is reported as 429 so
// the pager treats it like a REST rate limit.
func Query[T any](ctx context.Context, c *Client, query string, vars map[string]interface{}) (*T, error) {
	var resp graphQLResponse[T]
	httpResp, err := c.Post(ctx, "graphql.json", graphQLRequest{Query: query, Variables: vars}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		status := 0
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
			if code, _ := e.Extensions["code"].(string); code == "THROTTLED" {
				status = http.StatusTooManyRequests
			}
		}
		return nil, &UpstreamError{URL: httpResp.URL, Status: status, Message: "graphql: " + strings.Join(messages, "; ")}
	}
	if resp.Data == nil {
		return nil, &UpstreamError{URL: httpResp.URL, Message: "graphql: empty data"}
	}
	return resp.Data, nil
}

// userErrorsErr turns mutation userErrors into an UpstreamError, or nil.
func (c *Client) userErrorsErr(mutation string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if len(e.Field) > 0 {
			messages = append(messages, strings.Join(e.Field, ".")+": "+e.Message)
		} else {
			messages = append(messages, e.Message)
		}
	}
	return &UpstreamError{
		URL:     c.resolve("graphql.json"),
		Status:  http.StatusUnprocessableEntity,
		Message: mutation + ": " + strings.Join(messages, "; "),
	}
}
