package queue

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/spf13/viper"
)

// Deliverer ships one payload to the external system. An error (or timeout)
// means the payload goes back to the queue for redelivery.
type Deliverer interface {
	Deliver(ctx context.Context, payload models.SyncPayload) error
}

type HTTPDeliverer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDeliverer() *HTTPDeliverer {
	return &HTTPDeliverer{
		endpoint: viper.GetString("sync.endpoint"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, payload models.SyncPayload) error {
	raw, err := jsoniter.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode sync payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := d.client.Do(request)
	if err != nil {
		return fmt.Errorf("failed to reach sync endpoint: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint replied with status %d", response.StatusCode)
	}

	return nil
}
