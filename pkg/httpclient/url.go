package httpclient

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL joins a base URL and path and sets every non-empty query parameter
func BuildURL(baseURL, path string, params map[string]string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if len(params) > 0 {
		query := parsedURL.Query()
		for key, value := range params {
			if value != "" {
				query.Set(key, value)
			}
		}
		parsedURL.RawQuery = query.Encode()
	}

	return parsedURL.String(), nil
}
