package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/infrastructure/resilience"
)

const (
	defaultTimeout   = 30 * time.Second
	predictOperation = "inference.predict"
)

// Client posts images to the ImageInferenceService endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(endpoint string) *Client {
	return NewWithOptions(endpoint, Options{})
}

func NewWithOptions(endpoint string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

// Predict sends one multipart request and decodes the JSON body. It never
// retries; validation of the decoded values is left to the caller.
func (c *Client) Predict(ctx context.Context, image domain.SelectedImage) (domain.RawPrediction, error) {
	var out domain.RawPrediction
	call := func(callCtx context.Context) error {
		out = domain.RawPrediction{}
		return c.postImage(callCtx, image, &out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, predictOperation, call, classifyInferenceError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.RawPrediction{}, wrapInferenceError(err)
	}
	return out, nil
}
