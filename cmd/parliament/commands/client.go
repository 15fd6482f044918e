package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/parliament/internal/api"
	"github.com/dyluth/parliament/pkg/parliament"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// fetch GETs path from a peer's API and returns the body.
func fetch(ctx context.Context, base, path string) ([]byte, error) {
	endpoint := strings.TrimRight(base, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// fetchSnapshot loads the current state of the archive for key.
func fetchSnapshot(ctx context.Context, base string, key parliament.Key) (json.RawMessage, error) {
	path := fmt.Sprintf("/archives/%s/%s/%s",
		url.PathEscape(key.Class), url.PathEscape(key.Attr), url.PathEscape(key.Value))
	return fetch(ctx, base, path)
}

// fetchArchives lists the archive keys a peer tracks.
func fetchArchives(ctx context.Context, base string) ([]parliament.Key, error) {
	body, err := fetch(ctx, base, "/archives")
	if err != nil {
		return nil, err
	}
	var list api.ArchiveList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode archive list: %w", err)
	}
	return list.Archives, nil
}
