package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"price-signal-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultStooqURL    = "https://stooq.com/q/d/l/"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// ErrNoData is returned when the source answers with an empty table.
var ErrNoData = errors.New("no data returned")

// StooqClient implements PriceSource over the stooq.com daily CSV endpoint.
type StooqClient struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures StooqClient.
type ClientOption func(*StooqClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *StooqClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *StooqClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *StooqClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *StooqClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *StooqClient) {
		c.client = client
	}
}

// WithRateLimit caps outgoing requests per second, shared by all callers
// of the client. Retries wait on the limiter too.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *StooqClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewStooqClient creates a client for baseURL (DefaultStooqURL when empty).
func NewStooqClient(baseURL string, opts ...ClientOption) *StooqClient {
	if baseURL == "" {
		baseURL = DefaultStooqURL
	}
	c := &StooqClient{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ PriceSource = (*StooqClient)(nil)

// StooqSymbol maps a ticker to the stooq code: lower case with a ".us"
// suffix for the us market and ".wa" (Warsaw) for pl.
func StooqSymbol(symbol, market string) (string, error) {
	s := strings.ToLower(symbol)
	switch market {
	case domain.MarketUS:
		return s + ".us", nil
	case domain.MarketPL:
		return s + ".wa", nil
	default:
		return "", fmt.Errorf("%w: unknown market %q", domain.ErrValue, market)
	}
}

// StooqDate formats d as YYYYMMDD.
func StooqDate(d time.Time) string {
	return d.Format("20060102")
}

// Fetch downloads daily bars for symbol over [start, end].
func (c *StooqClient) Fetch(ctx context.Context, symbol, market string, start, end time.Time) ([]domain.PriceBar, error) {
	code, err := StooqSymbol(symbol, market)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("s", code)
	q.Set("i", "d")
	q.Set("d1", StooqDate(start))
	q.Set("d2", StooqDate(end))

	body, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", code, err)
	}

	bars, err := DecodeCSV(bytes.NewReader(body), symbol, market)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", code, err)
	}
	return bars, nil
}

// get performs a GET with retries and exponential backoff.
// Transport errors, 429 and non-200 responses are retried.
func (c *StooqClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// DecodeCSV parses a stooq daily table (Date,Open,High,Low,Close[,Volume]).
// Header names are matched case-insensitively. A missing volume column
// reads as 0. Bars are returned in file order with Symbol upper-cased and
// Market set. A body without data rows, including stooq's plain-text
// "No data" answer, yields ErrNoData. A leading byte order mark is
// honoured (UTF-8 or UTF-16), as saved spreadsheet exports carry one.
func DecodeCSV(r io.Reader, symbol, market string) ([]domain.PriceBar, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{domain.ColDate, domain.ColOpen, domain.ColHigh, domain.ColLow, domain.ColClose} {
		if _, ok := idx[col]; !ok {
			if len(header) == 1 {
				return nil, ErrNoData
			}
			return nil, &domain.SchemaError{Missing: []string{col}}
		}
	}
	volIdx, hasVolume := idx[domain.ColVolume]

	var bars []domain.PriceBar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		date, err := time.Parse(time.DateOnly, field(idx[domain.ColDate]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad date %q", domain.ErrType, line, field(idx[domain.ColDate]))
		}

		b := domain.PriceBar{
			Symbol: strings.ToUpper(symbol),
			Market: market,
			Date:   date,
		}
		for _, p := range []struct {
			col string
			dst *float64
		}{
			{domain.ColOpen, &b.Open},
			{domain.ColHigh, &b.High},
			{domain.ColLow, &b.Low},
			{domain.ColClose, &b.Close},
		} {
			d, err := decimal.NewFromString(field(idx[p.col]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad %s %q", domain.ErrType, line, p.col, field(idx[p.col]))
			}
			*p.dst = d.InexactFloat64()
		}

		if hasVolume && field(volIdx) != "" {
			v, err := decimal.NewFromString(field(volIdx))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad volume %q", domain.ErrType, line, field(volIdx))
			}
			b.Volume = v.IntPart()
		}

		bars = append(bars, b)
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}
