// Package universe resolves symbol selections (whole market, index,
// industry board, concept board, explicit lists) into 6-digit A-share codes
// using the eastmoney push2 list endpoints.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lumen/internal/util"
)

// Market screens for the full A-share spot table: SZ main/GEM, SH main/STAR,
// and BSE listings.
const allAScreen = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048"

// Universe aliases accepted by Resolve.
var universeAliases = map[string]struct{}{
	"ALL_A":   {},
	"A_SHARE": {},
	"CN_A":    {},
}

// Listing is one row of the spot table.
type Listing struct {
	Code string // 6-digit code
	Name string
}

// Client queries the eastmoney push2 universe endpoints.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
	log      *slog.Logger
}

// Options configure a Client. Zero values get sane defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	PageSize   int
	Log        *slog.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:  opts.BaseURL,
		http:     opts.HTTPClient,
		pageSize: opts.PageSize,
		log:      opts.Log,
	}
	if c.baseURL == "" {
		c.baseURL = "https://82.push2.eastmoney.com"
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.pageSize <= 0 {
		c.pageSize = 200
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Selector names one way of choosing symbols. Exactly one field may be set.
type Selector struct {
	Symbols  []string
	Universe string // ALL_A | A_SHARE | CN_A
	Index    string // e.g. "000300"
	Industry string // board name or BK code
	Concept  string // board name or BK code
}

func (s Selector) count() int {
	n := 0
	if len(s.Symbols) > 0 {
		n++
	}
	for _, v := range []string{s.Universe, s.Index, s.Industry, s.Concept} {
		if v != "" {
			n++
		}
	}
	return n
}

// Resolve turns a selector into 6-digit codes.
func (c *Client) Resolve(ctx context.Context, sel Selector) ([]string, error) {
	switch n := sel.count(); {
	case n == 0:
		return nil, fmt.Errorf("empty selector: need symbols, universe, index, industry, or concept")
	case n > 1:
		return nil, fmt.Errorf("ambiguous selector: pick exactly one of symbols, universe, index, industry, concept")
	}

	switch {
	case len(sel.Symbols) > 0:
		return sel.Symbols, nil
	case sel.Universe != "":
		alias := strings.ToUpper(strings.TrimSpace(sel.Universe))
		if _, ok := universeAliases[alias]; !ok {
			return nil, fmt.Errorf("unknown universe %q (want ALL_A, A_SHARE, or CN_A)", sel.Universe)
		}
		return c.AllASymbols(ctx)
	case sel.Index != "":
		return c.IndexConstituents(ctx, sel.Index)
	case sel.Industry != "":
		return c.IndustryConstituents(ctx, sel.Industry)
	default:
		return c.ConceptConstituents(ctx, sel.Concept)
	}
}

// AllASymbols lists every A-share code currently on the spot table.
func (c *Client) AllASymbols(ctx context.Context) ([]string, error) {
	listings, err := c.Spot(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(listings))
	for i, l := range listings {
		codes[i] = l.Code
	}
	return codes, nil
}

// Spot returns the full A-share spot table with names, the feed the
// securities master refreshes from.
func (c *Client) Spot(ctx context.Context) ([]Listing, error) {
	return c.list(ctx, allAScreen)
}

// IndexConstituents lists the current members of an index, e.g. "000300".
func (c *Client) IndexConstituents(ctx context.Context, code string) ([]string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("empty index code")
	}
	// SZ-published indexes (399xxx) live on market 0, the rest on market 1.
	market := "1"
	if strings.HasPrefix(code, "399") {
		market = "0"
	}
	return codesOf(c.list(ctx, fmt.Sprintf("i:%s.%s", market, code)))
}

// IndustryConstituents lists the members of an industry board, addressed by
// BK code or by its display name.
func (c *Client) IndustryConstituents(ctx context.Context, nameOrCode string) ([]string, error) {
	return c.boardConstituents(ctx, nameOrCode, "m:90+t:2")
}

// ConceptConstituents lists the members of a concept board, addressed by BK
// code or by its display name.
func (c *Client) ConceptConstituents(ctx context.Context, nameOrCode string) ([]string, error) {
	return c.boardConstituents(ctx, nameOrCode, "m:90+t:3")
}

func (c *Client) boardConstituents(ctx context.Context, nameOrCode, boardScreen string) ([]string, error) {
	nameOrCode = strings.TrimSpace(nameOrCode)
	if nameOrCode == "" {
		return nil, fmt.Errorf("empty board selector")
	}

	code := nameOrCode
	if !strings.HasPrefix(strings.ToUpper(nameOrCode), "BK") {
		boards, err := c.list(ctx, boardScreen)
		if err != nil {
			return nil, fmt.Errorf("listing boards: %w", err)
		}
		code = ""
		for _, b := range boards {
			if b.Name == nameOrCode {
				code = b.Code
				break
			}
		}
		if code == "" {
			return nil, fmt.Errorf("no board named %q", nameOrCode)
		}
	}
	return codesOf(c.list(ctx, "b:"+code))
}

func codesOf(listings []Listing, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(listings))
	for i, l := range listings {
		codes[i] = l.Code
	}
	return codes, nil
}

type clistResponse struct {
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			Code string `json:"f12"`
			Name string `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// list pages through a clist screen until the advertised total is reached or
// a page comes back empty.
func (c *Client) list(ctx context.Context, screen string) ([]Listing, error) {
	var out []Listing
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("pn", strconv.Itoa(page))
		q.Set("pz", strconv.Itoa(c.pageSize))
		q.Set("po", "1")
		q.Set("np", "1")
		q.Set("fltt", "2")
		q.Set("fid", "f12")
		q.Set("fs", screen)
		q.Set("fields", "f12,f14")

		u := c.baseURL + "/api/qt/clist/get?" + q.Encode()

		var body clistResponse
		err := util.Retry(ctx, 3, 500*time.Millisecond, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %s", resp.Status)
			}
			body = clistResponse{}
			return json.NewDecoder(resp.Body).Decode(&body)
		})
		if err != nil {
			return nil, fmt.Errorf("fetching list page %d: %w", page, err)
		}

		if body.Data == nil || len(body.Data.Diff) == 0 {
			return out, nil
		}
		for _, d := range body.Data.Diff {
			code := d.Code
			for len(code) < 6 {
				code = "0" + code
			}
			out = append(out, Listing{Code: code, Name: d.Name})
		}
		if len(out) >= body.Data.Total {
			return out, nil
		}
	}
}
