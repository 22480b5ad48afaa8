package ton

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrTxNotFound = errors.New("transaction not found")

// Client is a small tonapi.io client used to show wallet balances and to
// look up submitted payments.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	network    Network
}

// NewClient creates a new TON API client
func NewClient(network Network, apiKey string) *Client {
	baseURL := TonAPIMainnet
	if network == NetworkTestnet {
		baseURL = TonAPITestnet
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		network: network,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL points the client at another endpoint (tests, self-hosted tonapi).
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

func (c *Client) Network() Network { return c.network }

// AccountRef is an account reference inside tonapi objects
type AccountRef struct {
	Address string `json:"address"`
}

// Message represents a TON message
type Message struct {
	Hash        string      `json:"hash"`
	Source      *AccountRef `json:"source"`
	Destination *AccountRef `json:"destination"`
	Value       int64       `json:"value"`
}

// Transaction represents a TON transaction
type Transaction struct {
	Hash    string     `json:"hash"`
	Lt      int64      `json:"lt"`
	Account AccountRef `json:"account"`
	Utime   int64      `json:"utime"`
	Success bool       `json:"success"`
	InMsg   *Message   `json:"in_msg"`
	OutMsgs []Message  `json:"out_msgs"`
}

// AccountInfo represents account information
type AccountInfo struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	Status  string `json:"status"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetAccountInfo retrieves account information
func (c *Client) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	var account AccountInfo
	if err := c.get(ctx, "/accounts/"+address, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// TransactionByMessage finds the transaction created by an external message hash.
func (c *Client) TransactionByMessage(ctx context.Context, msgHash string) (*Transaction, error) {
	var tx Transaction
	if err := c.get(ctx, "/blockchain/messages/"+msgHash+"/transaction", &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// WaitForMessage polls until the message lands on chain or ctx/timeout ends.
func (c *Client) WaitForMessage(ctx context.Context, msgHash string, timeout, every time.Duration) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		tx, err := c.TransactionByMessage(ctx, msgHash)
		if err == nil {
			return tx, nil
		}
		if ctx.Err() != nil {
			return nil, ErrTxNotFound
		}
		if !errors.Is(err, ErrTxNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ErrTxNotFound
		case <-time.After(every):
		}
	}
}
