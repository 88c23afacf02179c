package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tablelink/internal/core"
)

// ImportFile asks the server to import a file from the user's storage into
// a table or view. path is the file's path in the user's files.
func (c *Client) ImportFile(ctx context.Context, t Target, path string, createMissingColumns bool) (*ImportResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fieldRequired("path")
	}

	target := fmt.Sprintf("/import/table/%d", t.TableID)
	if t.ViewID > 0 {
		target = fmt.Sprintf("/import/views/%d", t.ViewID)
	}

	var res ImportResult
	params := map[string]any{"path": path, "createMissingColumns": createMissingColumns}
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: target, Params: params}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func invalidChoice(field, value string, allowed ...string) *core.Error {
	return core.NewValidationError(field, value, "must be one of: %s", strings.Join(allowed, ", "))
}
