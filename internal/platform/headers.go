package platform

import (
	"net/http"
)

// ToolHeaders returns the headers the remote tool server needs to act on
// behalf of externalUserID. appSlug may be empty.
func (c *Client) ToolHeaders(externalUserID, appSlug string) (http.Header, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("x-pd-project-id", c.projectID)
	h.Set("x-pd-environment", c.environment)
	h.Set("x-pd-external-user-id", externalUserID)
	if appSlug != "" {
		h.Set("x-pd-app-slug", appSlug)
	}
	return h, nil
}
