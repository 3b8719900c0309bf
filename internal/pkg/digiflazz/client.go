package digiflazz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable marks every transport-level provider failure: network
// errors, non-2xx responses and malformed JSON all collapse into it.
// Business-level failures are reported through the response status instead.
var ErrUnavailable = errors.New("digiflazz unavailable")

// Commands accepted by the /transaction endpoint. An empty command is a
// direct prepaid purchase or prepaid status re-check (same ref_id).
const (
	CommandInqPasca    = "inq-pasca"
	CommandPayPasca    = "pay-pasca"
	CommandStatusPasca = "status-pasca"
)

// Config holds Digiflazz API configuration
type Config struct {
	BaseURL       string
	Username      string
	DevKey        string // sandbox API key
	ProdKey       string // production API key
	UseProduction bool
	Timeout       time.Duration
}

// APIKey returns the key selected by the production flag
func (c Config) APIKey() string {
	if c.UseProduction {
		return c.ProdKey
	}
	return c.DevKey
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("digiflazz config error: username is empty")
	}
	if strings.TrimSpace(c.APIKey()) == "" {
		return fmt.Errorf("digiflazz config error: api key is empty")
	}
	return nil
}

// Client calls the Digiflazz PPOB aggregator. One JSON POST per call, no
// internal retries; retry policy belongs to the caller.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates new Digiflazz API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.digiflazz.com/v1"
	}

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type balanceRequest struct {
	Cmd      string `json:"cmd"`
	Username string `json:"username"`
	Sign     string `json:"sign"`
}

type balanceResponse struct {
	Data struct {
		Deposit float64 `json:"deposit"`
	} `json:"data"`
}

// CheckBalance returns the remaining deposit balance at the provider
func (c *Client) CheckBalance(ctx context.Context) (float64, error) {
	if err := c.config.validate(); err != nil {
		return 0, err
	}

	req := balanceRequest{
		Cmd:      "deposit",
		Username: c.config.Username,
		Sign:     Sign(c.config.Username, c.config.APIKey(), SignDiscriminatorDeposit),
	}

	var out balanceResponse
	if _, err := c.post(ctx, "/cek-saldo", req, &out); err != nil {
		return 0, err
	}
	return out.Data.Deposit, nil
}

type plnInquiryRequest struct {
	Username   string `json:"username"`
	CustomerNo string `json:"customer_no"`
	Sign       string `json:"sign"`
}

// PLNInquiry is the subscriber record returned by /inquiry-pln
type PLNInquiry struct {
	Message      string `json:"message"`
	Status       string `json:"status"`
	RC           string `json:"rc"`
	CustomerNo   string `json:"customer_no"`
	MeterNo      string `json:"meter_no"`
	SubscriberID string `json:"subscriber_id"`
	Name         string `json:"name"`
	SegmentPower string `json:"segment_power"`
}

type plnInquiryResponse struct {
	Data PLNInquiry `json:"data"`
}

// InquiryPLN validates a PLN customer number against the provider
func (c *Client) InquiryPLN(ctx context.Context, customerNo string) (*PLNInquiry, error) {
	if err := c.config.validate(); err != nil {
		return nil, err
	}

	req := plnInquiryRequest{
		Username:   c.config.Username,
		CustomerNo: customerNo,
		Sign:       Sign(c.config.Username, c.config.APIKey(), customerNo),
	}

	var out plnInquiryResponse
	if _, err := c.post(ctx, "/inquiry-pln", req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// TransactionParams describes one call to the /transaction endpoint
type TransactionParams struct {
	Commands     string // empty for prepaid topup / prepaid status check
	BuyerSKUCode string
	CustomerNo   string
	RefID        string
	Amount       int64 // customer-chosen nominal, e-money products only
}

type transactionRequest struct {
	Commands     string `json:"commands,omitempty"`
	Username     string `json:"username"`
	BuyerSKUCode string `json:"buyer_sku_code"`
	CustomerNo   string `json:"customer_no"`
	RefID        string `json:"ref_id"`
	Sign         string `json:"sign"`
	Amount       int64  `json:"amount,omitempty"`
	Testing      bool   `json:"testing,omitempty"`
}

// TransactionData holds the bit-relevant fields of the provider envelope;
// the full payload is preserved in TransactionResult.RawResponse.
type TransactionData struct {
	RefID        string `json:"ref_id"`
	CustomerNo   string `json:"customer_no"`
	BuyerSKUCode string `json:"buyer_sku_code"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	RC           string `json:"rc"`
	SN           string `json:"sn"`
	Price        int64  `json:"price"`
	SellingPrice int64  `json:"selling_price"`
}

type transactionResponse struct {
	Data TransactionData `json:"data"`
}

// TransactionResult carries the parsed outcome plus the raw payloads
// retained for audit and dispute resolution.
type TransactionResult struct {
	Data        TransactionData
	RawRequest  []byte
	RawResponse []byte
}

// Transaction submits a purchase, inquiry, payment or status command.
// The signature discriminator is the ref_id for every transactional call.
func (c *Client) Transaction(ctx context.Context, params TransactionParams) (*TransactionResult, error) {
	if err := c.config.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.RefID) == "" {
		return nil, fmt.Errorf("validation error: ref_id must be non-empty")
	}

	req := transactionRequest{
		Commands:     params.Commands,
		Username:     c.config.Username,
		BuyerSKUCode: params.BuyerSKUCode,
		CustomerNo:   params.CustomerNo,
		RefID:        params.RefID,
		Sign:         Sign(c.config.Username, c.config.APIKey(), params.RefID),
		Amount:       params.Amount,
		Testing:      !c.config.UseProduction,
	}

	rawReq, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode digiflazz request: %w", err)
	}

	var out transactionResponse
	rawResp, err := c.post(ctx, "/transaction", req, &out)
	result := &TransactionResult{
		Data:        out.Data,
		RawRequest:  rawReq,
		RawResponse: rawResp,
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// post sends one JSON POST and decodes the response into out. It returns the
// raw body even on failure so callers can persist it for forensics.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", ErrUnavailable, err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			Str("response_body", string(body)).
			Msg("Digiflazz returned non-2xx status")
		return body, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		log.Error().
			Str("endpoint", path).
			Str("response_body", string(body)).
			Err(err).
			Msg("Digiflazz returned malformed JSON")
		return body, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}

	return body, nil
}
