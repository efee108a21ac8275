package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/platform/logging"
	"github.com/riskibarqy/match-tracker/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

var errWebhookTransient = crerr.New("webhook transient failure")

type WebhookRelayConfig struct {
	URL            string
	Timeout        time.Duration
	Retries        int
	CircuitBreaker resilience.CircuitBreakerConfig
}

// WebhookRelay fans change notifications out to an external consumer over
// HTTP. The relay is best-effort: a notification that cannot be delivered is
// logged and dropped so the aggregation path never stalls behind a slow or
// dead webhook target.
type WebhookRelay struct {
	client         *fasthttp.Client
	url            string
	retries        int
	timeout        time.Duration
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	logger         *logging.Logger
}

func NewWebhookRelay(cfg WebhookRelayConfig, logger *logging.Logger) (*WebhookRelay, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("webhook url %q must use http or https", url)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &WebhookRelay{
		client:         &fasthttp.Client{},
		url:            url,
		retries:        cfg.Retries,
		timeout:        timeout,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
		logger:         logger,
	}, nil
}

func (r *WebhookRelay) Name() string { return "webhook-relay" }

type webhookPayload struct {
	Kind      string `json:"kind"`
	EventID   string `json:"event_id"`
	MatchID   string `json:"match_id"`
	Timestamp string `json:"timestamp"`
	Team      string `json:"team"`
	Opponent  string `json:"opponent"`
	EventType string `json:"event_type"`
	Details   string `json:"event_details"`
}

func (r *WebhookRelay) HandleChange(ctx context.Context, change event.ChangeNotification) error {
	if change.Kind != event.ChangeInsert || change.NewImage == nil {
		return nil
	}

	if r.circuitEnabled {
		if err := r.breaker.Allow(); err != nil {
			r.logger.WarnContext(ctx, "webhook circuit breaker rejected notification",
				"event_id", change.NewImage.EventID,
				"state", r.breaker.State(),
			)
			return nil
		}
	}

	item := *change.NewImage
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(webhookPayload{
		Kind:      string(change.Kind),
		EventID:   item.EventID,
		MatchID:   item.MatchID,
		Timestamp: item.Timestamp,
		Team:      item.Team,
		Opponent:  item.Opponent,
		EventType: item.EventType,
		Details:   item.RawDetails,
	}); err != nil {
		r.recordFailure()
		r.logger.ErrorContext(ctx, "encode webhook payload failed", "event_id", item.EventID, "error", err)
		return nil
	}

	if err := r.post(buf.Bytes()); err != nil {
		r.recordFailure()
		r.logger.ErrorContext(ctx, "webhook delivery failed; notification dropped",
			"event_id", item.EventID,
			"url", r.url,
			"error", err,
		)
		return nil
	}

	if r.circuitEnabled {
		r.breaker.RecordSuccess()
	}
	r.logger.DebugContext(ctx, "change notification relayed", "event_id", item.EventID, "url", r.url)
	return nil
}

func (r *WebhookRelay) post(body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(r.url)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.SetBody(body)

		err := r.client.DoTimeout(req, resp, r.timeout)
		status := resp.StatusCode()
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if err != nil {
			lastErr = crerr.WithSecondaryError(errWebhookTransient, err)
			continue
		}
		if status/100 != 2 {
			lastErr = crerr.Wrapf(errWebhookTransient, "status=%d", status)
			continue
		}
		return nil
	}
	return lastErr
}

func (r *WebhookRelay) recordFailure() {
	if r.circuitEnabled {
		r.breaker.RecordFailure()
	}
}
