// Package eastmoney implements the primary China A-share daily bar source
// against the Eastmoney quote history API.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lumen/internal/domain"
	"lumen/internal/source"
	"lumen/internal/validate"
)

const defaultBaseURL = "https://push2his.eastmoney.com"

// shanghai is the exchange timezone; trading days are taken as local
// midnight there before conversion to UTC.
var shanghai = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}()

// Options configures the source.
type Options struct {
	// BaseURL overrides the API host, mainly for tests.
	BaseURL string
	// Adjust selects price adjustment: "" (none), "qfq", "hfq".
	Adjust string
	Pool   source.PoolConfig
	// HTTPClient overrides the default tuned client.
	HTTPClient *http.Client
}

// Source fetches daily OHLCVA bars, one HTTP call per symbol, through the
// shared fan-out pool.
type Source struct {
	baseURL string
	adjust  string
	pool    source.PoolConfig
	client  *http.Client
	log     *slog.Logger
}

var _ source.Source = (*Source)(nil)
var _ source.SymbolNormalizer = (*Source)(nil)

// New creates the eastmoney source.
func New(opts Options) *Source {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = newHTTPClient()
	}
	return &Source{
		baseURL: strings.TrimRight(base, "/"),
		adjust:  opts.Adjust,
		pool:    opts.Pool,
		client:  client,
		log:     slog.Default().With("source", "eastmoney"),
	}
}

// newHTTPClient builds the shared HTTP client with conservative transport
// limits for a long-running crawl.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   16,
		},
		Timeout: time.Minute,
	}
}

// Name returns the registry key.
func (s *Source) Name() string { return "eastmoney" }

// NormalizeSymbol maps user input to the A-share storage form, e.g.
// "000001" to "000001.SZ".
func (s *Source) NormalizeSymbol(raw string) string {
	_, storeSymbol := domain.NormalizeCNSymbol(raw)
	return storeSymbol
}

// Capabilities declares daily bars for the ohlcva dataset, in UTC.
func (s *Source) Capabilities() map[string]source.Capability {
	return map[string]source.Capability{
		"ohlcva": {Intervals: []string{domain.Interval1d}, TZ: "UTC"},
	}
}

// FetchBars fans out one fetch per symbol and yields finalized batches in
// completion order. Unsupported intervals yield an immediately-closed
// channel.
func (s *Source) FetchBars(ctx context.Context, req source.FetchRequest) <-chan source.Batch {
	if req.Interval != domain.Interval1d {
		out := make(chan source.Batch)
		close(out)
		return out
	}

	adjust := s.adjust
	if v, ok := req.Options["adjust"]; ok {
		adjust = v
	}

	return source.FanOut(ctx, s.pool, req.Symbols, func(ctx context.Context, sym string) ([]domain.Bar, error) {
		return s.fetchSymbol(ctx, sym, req.Start, req.End, adjust)
	})
}

// klineResponse is the wire shape of the quote history endpoint.
type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// fetchSymbol retrieves and finalizes all daily bars for one symbol.
func (s *Source) fetchSymbol(ctx context.Context, sym string, start, end time.Time, adjust string) ([]domain.Bar, error) {
	fetchCode, storeSymbol := domain.NormalizeCNSymbol(sym)

	q := url.Values{}
	q.Set("secid", secID(storeSymbol, fetchCode))
	q.Set("klt", "101") // daily
	q.Set("fqt", fqt(adjust))
	q.Set("beg", start.UTC().Format("20060102"))
	q.Set("end", end.UTC().Format("20060102"))
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57")

	u := s.baseURL + "/api/qt/stock/kline/get?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("kline request for %s: status %d", storeSymbol, resp.StatusCode)
	}

	var payload klineResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding kline response for %s: %w", storeSymbol, err)
	}
	if payload.Data == nil || len(payload.Data.Klines) == 0 {
		return nil, nil
	}

	ingestTS := time.Now().UTC()
	bars := make([]domain.Bar, 0, len(payload.Data.Klines))
	for _, line := range payload.Data.Klines {
		b, ok := parseKline(line)
		if !ok {
			continue
		}
		b.Symbol = storeSymbol
		b.Interval = domain.Interval1d
		b.Source = s.Name()
		b.IngestTS = ingestTS
		bars = append(bars, b)
	}

	clean, report := validate.Finalize(bars)
	if dropped := report.Dropped(); dropped > 0 {
		s.log.Debug("rows dropped during finalize", "symbol", storeSymbol, "dropped", dropped)
	}
	return clean, nil
}

// parseKline decodes one "date,open,close,high,low,volume,amount" line.
// Unparseable numbers become NaN and are left to the validator; a missing
// or unparseable date invalidates the line.
func parseKline(line string) (domain.Bar, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return domain.Bar{}, false
	}

	day, err := time.ParseInLocation("2006-01-02", fields[0], shanghai)
	if err != nil {
		return domain.Bar{}, false
	}

	return domain.Bar{
		TS:         day.UTC(),
		TradingDay: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		Open:       parseFloat(fields[1]),
		Close:      parseFloat(fields[2]),
		High:       parseFloat(fields[3]),
		Low:        parseFloat(fields[4]),
		Volume:     parseFloat(fields[5]),
		Amount:     parseFloat(fields[6]),
	}, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return domain.NaN()
	}
	return v
}

// secID maps a storage symbol to the API's market-prefixed id:
// 1.<code> for Shanghai, 0.<code> for Shenzhen.
func secID(storeSymbol, fetchCode string) string {
	if strings.HasSuffix(storeSymbol, ".SH") {
		return "1." + fetchCode
	}
	return "0." + fetchCode
}

// fqt maps the adjustment name to the API parameter.
func fqt(adjust string) string {
	switch strings.ToLower(adjust) {
	case "qfq":
		return "1"
	case "hfq":
		return "2"
	default:
		return "0"
	}
}
