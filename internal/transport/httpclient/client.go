package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/vriesdemichael/git-service-cli/internal/domain/errors"
)

const versionPath = "/api/v4/version"

// Client probes the GitLab REST API of one host.
type Client struct {
	baseURL  string
	http     *http.Client
	token    func() string
	retries  uint
	interval time.Duration
}

type HealthStatus struct {
	Healthy       bool   `json:"healthy"`
	StatusCode    int    `json:"status_code"`
	Authenticated bool   `json:"authenticated"`
	Version       string `json:"version,omitempty"`
	Message       string `json:"message"`
}

func New(baseURL string, token func() string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		token:    token,
		retries:  3,
		interval: 250 * time.Millisecond,
	}
}

func NewForHost(hostname string, token func() string) *Client {
	return New("https://"+hostname, token)
}

func (client *Client) Health(ctx context.Context) (HealthStatus, error) {
	operation := func() (HealthStatus, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.baseURL+versionPath, nil)
		if err != nil {
			return HealthStatus{}, backoff.Permanent(apperrors.New(apperrors.KindValidation, "invalid health probe URL", err))
		}

		request.Header.Set("Accept", "application/json")
		client.applyAuth(request)

		response, err := client.http.Do(request)
		if err != nil {
			return HealthStatus{}, apperrors.New(apperrors.KindTransient, "health probe failed", err)
		}

		body, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		_ = response.Body.Close()

		switch {
		case response.StatusCode >= 200 && response.StatusCode < 300:
			status := HealthStatus{
				Healthy:       true,
				StatusCode:    response.StatusCode,
				Authenticated: true,
				Message:       "GitLab API reachable and authenticated",
			}
			var payload struct {
				Version string `json:"version"`
			}
			if readErr == nil && json.Unmarshal(body, &payload) == nil {
				status.Version = payload.Version
			}
			return status, nil
		case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
			return HealthStatus{
				Healthy:       true,
				StatusCode:    response.StatusCode,
				Authenticated: false,
				Message:       "GitLab reachable but the token is missing or insufficient",
			}, nil
		case response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests:
			return HealthStatus{}, mapStatusError(response.StatusCode)
		default:
			return HealthStatus{}, backoff.Permanent(mapStatusError(response.StatusCode))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = client.interval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(client.retries),
	)
}

func (client *Client) applyAuth(request *http.Request) {
	if client.token == nil {
		return
	}

	if token := client.token(); token != "" {
		request.Header.Set("PRIVATE-TOKEN", token)
	}
}

func mapStatusError(status int) error {
	baseMessage := fmt.Sprintf("gitlab API returned %d: %s", status, http.StatusText(status))

	switch status {
	case http.StatusNotFound:
		return apperrors.New(apperrors.KindNotFound, baseMessage, nil)
	case http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindTransient, baseMessage, nil)
	default:
		if status >= 500 {
			return apperrors.New(apperrors.KindTransient, baseMessage, nil)
		}
		return apperrors.New(apperrors.KindPermanent, baseMessage, nil)
	}
}
