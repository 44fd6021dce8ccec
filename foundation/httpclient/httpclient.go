// Package httpclient provides basic http functions
package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JSONClient retrieves json documents over http with a fixed request timeout
type JSONClient struct {
	client http.Client
}

// MakeJSONClient creates a JSONClient with timeout applied to every request
func MakeJSONClient(timeout time.Duration) *JSONClient {
	return &JSONClient{
		client: http.Client{
			Timeout: timeout,
		},
	}
}

// Get retrieves url and unmarshalls the json response body into target.
// Non 200 responses are returned as errors
func (c *JSONClient) Get(url string, target interface{}) error {
	resp, err := c.client.Get(url)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body from %s, error: %w", url, err)
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return fmt.Errorf("unable to parse response body from %s, error: %w", url, err)
	}
	return nil
}
