package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"price-signal-lab/internal/domain"
)

const aaplCSV = `Date,Open,High,Low,Close,Volume
2024-01-02,187.15,188.44,183.885,185.64,82488674
2024-01-03,184.22,185.88,183.43,184.25,58414460
`

func TestStooqSymbol(t *testing.T) {
	tests := []struct {
		symbol, market, want string
	}{
		{"AAPL", domain.MarketUS, "aapl.us"},
		{"PKN", domain.MarketPL, "pkn.wa"},
	}
	for _, tt := range tests {
		got, err := StooqSymbol(tt.symbol, tt.market)
		if err != nil {
			t.Fatalf("StooqSymbol(%s, %s) failed: %v", tt.symbol, tt.market, err)
		}
		if got != tt.want {
			t.Errorf("StooqSymbol(%s, %s): expected %s, got %s", tt.symbol, tt.market, tt.want, got)
		}
	}

	if _, err := StooqSymbol("VOD", "uk"); !errors.Is(err, domain.ErrValue) {
		t.Errorf("expected ErrValue for unknown market, got %v", err)
	}
}

func TestStooqDate(t *testing.T) {
	if got := StooqDate(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)); got != "20240307" {
		t.Errorf("expected 20240307, got %s", got)
	}
}

func TestDecodeCSV(t *testing.T) {
	bars, err := DecodeCSV(strings.NewReader(aaplCSV), "aapl", domain.MarketUS)
	if err != nil {
		t.Fatalf("DecodeCSV failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	b := bars[0]
	if b.Symbol != "AAPL" || b.Market != domain.MarketUS {
		t.Errorf("expected AAPL/us, got %s/%s", b.Symbol, b.Market)
	}
	if !b.Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", b.Date)
	}
	if b.Low != 183.885 || b.Close != 185.64 {
		t.Errorf("unexpected prices %+v", b)
	}
	if b.Volume != 82488674 {
		t.Errorf("expected volume 82488674, got %d", b.Volume)
	}
}

func TestDecodeCSV_HeaderCaseAndMissingVolume(t *testing.T) {
	bars, err := DecodeCSV(strings.NewReader("DATE,OPEN,HIGH,LOW,CLOSE\n2024-01-02,10,11,9,10.5\n"), "wig20", domain.MarketPL)
	if err != nil {
		t.Fatalf("DecodeCSV failed: %v", err)
	}
	if bars[0].Volume != 0 || bars[0].Close != 10.5 {
		t.Errorf("unexpected bar %+v", bars[0])
	}
}

func TestDecodeCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"empty body", "", ErrNoData},
		{"no data answer", "No data\n", ErrNoData},
		{"header only", "Date,Open,High,Low,Close,Volume\n", ErrNoData},
		{"missing column", "Date,Open,High,Close\n2024-01-02,1,1,1\n", domain.ErrSchema},
		{"bad price", "Date,Open,High,Low,Close\n2024-01-02,x,1,1,1\n", domain.ErrType},
		{"bad date", "Date,Open,High,Low,Close\n02/01/2024,1,1,1,1\n", domain.ErrType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tt.body), "X", domain.MarketUS)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStooqClient_FetchSendsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(aaplCSV))
	}))
	defer srv.Close()

	c := NewStooqClient(srv.URL+"/q/d/l/", WithRetryDelay(time.Millisecond))
	bars, err := c.Fetch(context.Background(), "AAPL", domain.MarketUS,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("expected 2 bars, got %d", len(bars))
	}
	for _, want := range []string{"s=aapl.us", "i=d", "d1=20240101", "d2=20240131"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestStooqClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(aaplCSV))
		}
	}))
	defer srv.Close()

	c := NewStooqClient(srv.URL, WithRetryDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))
	if _, err := c.Fetch(context.Background(), "AAPL", domain.MarketUS, time.Now(), time.Now()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestStooqClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewStooqClient(srv.URL, WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	_, err := c.Fetch(context.Background(), "AAPL", domain.MarketUS, time.Now(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Fatalf("expected max retries error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestStooqClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("No data"))
	}))
	defer srv.Close()

	_, err := NewStooqClient(srv.URL).Fetch(context.Background(), "ZZZZ", domain.MarketUS, time.Now(), time.Now())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestStooqClient_ContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewStooqClient(srv.URL, WithRetryDelay(time.Second), WithMaxRetries(5))
	_, err := c.Fetch(ctx, "AAPL", domain.MarketUS, time.Now(), time.Now())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDecodeCSV_ByteOrderMark(t *testing.T) {
	bars, err := DecodeCSV(strings.NewReader("\ufeff"+aaplCSV), "AAPL", domain.MarketUS)
	if err != nil {
		t.Fatalf("DecodeCSV failed: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("expected 2 bars, got %d", len(bars))
	}
}
