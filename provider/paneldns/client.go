// Package paneldns implements the provider client for the panel's
// plaintext DNS API. Every call is an HTTP POST keyed by the account's
// shared secret; responses carry a status token on the first line and,
// for listings, one tab-separated record per following line.
package paneldns

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dnsdrift/dnsdrift/metrics"
	"github.com/dnsdrift/dnsdrift/provider"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	userAgent = "dnsdrift/1.0"
)

// Httper allows substituting the HTTP client in tests.
type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	apiURL  string
	key     string
	http    Httper
	metrics *metrics.Metrics
}

var _ provider.Client = (*Client)(nil)

// New constructs a client for the panel at apiURL. Every call is bounded
// by timeout so a stalled panel cannot wedge a run.
func New(apiURL, key string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		apiURL:  apiURL,
		key:     key,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}
}

func (c *Client) ListRecords(ctx context.Context) ([]provider.Record, error) {
	slog.Info("Fetching DNS records from panel")

	lines, err := c.call(ctx, "list", nil)
	if err != nil {
		c.metrics.IncProviderRequest("list", false)
		return nil, provider.WrapOp("list", err)
	}

	records := make([]provider.Record, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := parseRow(line)
		if err != nil {
			c.metrics.IncProviderRequest("list", false)
			return nil, provider.WrapOp("list", fmt.Errorf("row %d: %w", i+1, err))
		}
		records = append(records, record)
	}
	c.metrics.IncProviderRequest("list", true)
	return records, nil
}

func (c *Client) AddRecord(ctx context.Context, hostname, recordType, value, comment string) error {
	slog.Info("Creating DNS record", "hostname", hostname, "type", recordType, "value", value)

	form := url.Values{}
	form.Set("hostname", hostname)
	form.Set("type", recordType)
	form.Set("value", value)
	if comment != "" {
		form.Set("comment", comment)
	}

	_, err := c.call(ctx, "add", form)
	c.metrics.IncProviderRequest("add", err == nil)
	return provider.WrapOp("add", err)
}

func (c *Client) RemoveRecord(ctx context.Context, hostname, recordType, value string) error {
	slog.Info("Deleting DNS record", "hostname", hostname, "type", recordType, "value", value)

	form := url.Values{}
	form.Set("hostname", hostname)
	form.Set("type", recordType)
	form.Set("value", value)

	_, err := c.call(ctx, "remove", form)
	c.metrics.IncProviderRequest("remove", err == nil)
	return provider.WrapOp("remove", err)
}

// call posts one panel action and returns the response lines after the
// status line. An empty body or a non-success status is an error; for
// listings no row parsing is attempted in that case.
func (c *Client) call(ctx context.Context, action string, form url.Values) ([]string, error) {
	if form == nil {
		form = url.Values{}
	}
	form.Set("key", c.key)
	form.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: panel returned status %d", provider.ErrQueryFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", provider.ErrQueryFailed, err)
	}

	lines := strings.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
	status := strings.TrimSpace(lines[0])
	if status == "" {
		return nil, fmt.Errorf("%w: empty response body", provider.ErrQueryFailed)
	}
	if status != statusSuccess {
		return nil, statusToError(status)
	}
	return lines[1:], nil
}

// statusToError maps a panel error status line to a sentinel error.
func statusToError(status string) error {
	reason := strings.TrimSpace(strings.TrimPrefix(status, statusError))
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))

	switch reason {
	case "record_already_exists_remove_first":
		return provider.ErrRecordExists
	case "invalid_record_type":
		return provider.ErrInvalidType
	case "no_such_zone":
		return provider.ErrNoSuchZone
	case "no_such_record":
		return provider.ErrNoSuchRecord
	case "bad_key", "unauthorized":
		return provider.ErrUnauthorized
	}

	if reason == "" {
		return provider.ErrQueryFailed
	}
	return fmt.Errorf("%w: %s", provider.ErrQueryFailed, reason)
}

// Listing columns in panel order. Trailing columns may be absent.
const (
	colAccountID = iota
	colZone
	colHostname
	colType
	colValue
	colComment
	colEditable

	// comment and editable are optional
	minColumns = colValue + 1
)

func parseRow(line string) (provider.Record, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < minColumns {
		return provider.Record{}, fmt.Errorf("short row: %d columns, want at least %d", len(cols), minColumns)
	}

	record := provider.Record{
		AccountID: cols[colAccountID],
		Zone:      cols[colZone],
		Hostname:  cols[colHostname],
		Type:      cols[colType],
		Value:     cols[colValue],
	}
	if len(cols) > colComment {
		record.Comment = cols[colComment]
	}
	if len(cols) > colEditable {
		record.Editable = parseEditable(cols[colEditable])
	}
	return record, nil
}

func parseEditable(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "TRUE", "1":
		return true
	}
	return false
}
