package delivery

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// statusError describes a non-success response, including a short
// excerpt of the body to make provider errors readable in logs.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected HTTP %d: %s", resp.StatusCode, msg)
}
