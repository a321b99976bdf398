package beckn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"villagestay/models"
	"villagestay/utils"

	"go.uber.org/zap"
)

// Config describes the subscriber and the gateway it talks to.
type Config struct {
	GatewayURL    string
	SubscriberID  string
	SubscriberURI string
	Domain        string
	Country       string
	City          string
	CoreVersion   string
	Timeout       time.Duration
}

// Client sends the four negotiation phases to a gateway.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
	metrics *utils.Metrics
	now     func() time.Time
}

func NewClient(cfg Config, tokens TokenSource, httpClient *http.Client, logger *zap.Logger, metrics *utils.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	return &Client{cfg: cfg, http: httpClient, tokens: tokens, logger: logger, metrics: metrics, now: time.Now}
}

func (c *Client) newContext(transactionID string, action Action) TransactionContext {
	return TransactionContext{
		Domain:        c.cfg.Domain,
		Country:       c.cfg.Country,
		City:          c.cfg.City,
		Action:        action,
		CoreVersion:   c.cfg.CoreVersion,
		BapID:         c.cfg.SubscriberID,
		BapURI:        c.cfg.SubscriberURI,
		TransactionID: transactionID,
		MessageID:     newID("msg"),
		Timestamp:     models.FormatTimestamp(c.now()),
	}
}

// call POSTs {context, message} to the action endpoint and decodes the
// response message into out.
func (c *Client) call(ctx context.Context, txn *Transaction, action Action, message, out any) (err error) {
	defer func() { c.metrics.ObservePhase(string(action), err) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return newPhaseError(KindAuth, action, "could not sign request", err)
	}

	reqCtx := c.newContext(txn.ID, action)
	body, err := json.Marshal(envelope{Context: reqCtx, Message: message})
	if err != nil {
		return newPhaseError(KindProtocol, action, "could not encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL+"/"+string(action), bytes.NewReader(body))
	if err != nil {
		return newPhaseError(KindGatewayUnavailable, action, "could not build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return newPhaseError(KindGatewayUnavailable, action, "gateway request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return newPhaseError(KindGatewayUnavailable, action, "could not read gateway response", err)
	}

	c.logger.Debug("Gateway phase completed",
		zap.String("action", string(action)),
		zap.String("transactionId", txn.ID),
		zap.String("messageId", reqCtx.MessageID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", c.now().Sub(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newPhaseError(KindAuth, action, fmt.Sprintf("gateway rejected signature (%d)", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		return newPhaseError(KindGatewayUnavailable, action, fmt.Sprintf("gateway returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return newPhaseError(KindProtocol, action, fmt.Sprintf("gateway returned %d", resp.StatusCode), nil)
	}

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return newPhaseError(KindProtocol, action, "malformed response envelope", err)
	}
	if env.Error != nil {
		return newPhaseError(KindProtocol, action, fmt.Sprintf("gateway error %s: %s", env.Error.Code, env.Error.Message), nil)
	}
	if env.Context != nil && env.Context.TransactionID != "" && env.Context.TransactionID != txn.ID {
		return newPhaseError(KindProtocol, action, "response belongs to transaction "+env.Context.TransactionID, nil)
	}
	if len(env.Message) == 0 || string(env.Message) == "null" {
		return newPhaseError(KindProtocol, action, "response has no message", nil)
	}
	if err := json.Unmarshal(env.Message, out); err != nil {
		return newPhaseError(KindProtocol, action, "malformed response message", err)
	}
	return nil
}
