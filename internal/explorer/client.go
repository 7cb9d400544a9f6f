package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"eventScope/internal/network"
)

const statusOK = "1"

// Config holds the explorer API credentials and endpoint overrides.
type Config struct {
	APIKey    string
	Endpoints map[network.Network]string
}

// Observer receives one notification per upstream request.
type Observer interface {
	ObserveResolve(net network.Network, status string, elapsed time.Duration)
}

// Response mirrors the upstream getabi answer.
type Response struct {
	ABI        string `json:"abi"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Address    string `json:"-"`
}

// Err classifies the response. A nil result means ABI holds interface JSON.
func (r Response) Err() error {
	if r.Status == statusOK && r.HTTPStatus >= 200 && r.HTTPStatus < 300 {
		return nil
	}
	return &ResolutionError{
		Address:    r.Address,
		HTTPStatus: r.HTTPStatus,
		Status:     r.Status,
		Message:    r.Message,
		Result:     r.ABI,
	}
}

type upstreamResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client queries an etherscan-compatible explorer for contract ABIs.
type Client struct {
	httpClient *http.Client
	cfg        Config
	observer   Observer
	logger     *zap.Logger
}

// NewClient builds a Client. A nil httpClient uses http.DefaultClient.
func NewClient(hc *http.Client, cfg Config, observer Observer, logger *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: hc,
		cfg:        cfg,
		observer:   observer,
		logger:     logger,
	}
}

// Endpoint returns the explorer base URL for net.
func (c *Client) Endpoint(net network.Network) (string, error) {
	if endpoint := c.cfg.Endpoints[net]; endpoint != "" {
		return endpoint, nil
	}
	endpoint := net.Info().ExplorerURL
	if endpoint == "" {
		return "", fmt.Errorf("no explorer endpoint for network %s", net)
	}
	return endpoint, nil
}

// Resolve fetches the ABI for address. Only transport failures are returned as
// errors; upstream verdicts travel in the Response and are classified by Err.
func (c *Client) Resolve(ctx context.Context, address string, net network.Network) (Response, error) {
	endpoint, err := c.Endpoint(net)
	if err != nil {
		return Response{}, err
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getabi")
	params.Set("address", address)
	params.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(net, "transport_error", started)
		return Response{}, fmt.Errorf("request abi: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		c.observe(net, "transport_error", started)
		return Response{}, fmt.Errorf("read abi response: %w", err)
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.observe(net, "invalid_body", started)
		return Response{}, fmt.Errorf("parse abi response (http %d): %w", res.StatusCode, err)
	}
	c.observe(net, parsed.Status, started)

	out := Response{
		ABI:        resultString(parsed.Result),
		Status:     parsed.Status,
		Message:    parsed.Message,
		HTTPStatus: res.StatusCode,
		Address:    address,
	}

	if out.Err() != nil {
		c.logger.Warn("abi not resolved",
			zap.String("address", address),
			zap.String("network", net.String()),
			zap.Int("http_status", out.HTTPStatus),
			zap.String("status", out.Status),
			zap.String("message", out.Message),
		)
	} else {
		c.logger.Debug("abi resolved", zap.String("address", address), zap.String("network", net.String()))
	}

	return out, nil
}

func (c *Client) observe(net network.Network, status string, started time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveResolve(net, status, time.Since(started))
}

// resultString unwraps the upstream result, which is a JSON string for getabi
// but may be another JSON value for some explorer errors.
func resultString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
