package official

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"card-sync/core/transport"

	"golang.org/x/net/publicsuffix"
)

// Config holds the official card browser settings.
type Config struct {
	// Enabled turns enrichment on.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// BaseURL is the card browser root.
	BaseURL string `mapstructure:"base_url" default:"https://fftcg.square-enix-games.com"`
	// Language is the browser locale path segment.
	Language string `mapstructure:"language" default:"en"`
	// TimeoutSeconds bounds a single request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"60"`
	// CacheTTL is how long a fetched card list is reused.
	CacheTTL time.Duration `mapstructure:"cache_ttl" default:"1h"`
}

// Filter is the card browser search body. The zero value fetches every card.
type Filter struct {
	Language   string   `json:"language"`
	Text       string   `json:"text"`
	Type       []string `json:"type"`
	Element    []string `json:"element"`
	Cost       []string `json:"cost"`
	Rarity     []string `json:"rarity"`
	Power      []string `json:"power"`
	Category1  []string `json:"category_1"`
	Set        []string `json:"set"`
	Multicard  string   `json:"multicard"`
	ExBurst    string   `json:"ex_burst"`
	Code       string   `json:"code"`
	Special    string   `json:"special"`
	ExactMatch int      `json:"exactmatch"`
}

// Source fetches official cards.
type Source interface {
	Cards(ctx context.Context, f Filter) ([]Record, error)
}

// Client talks to the card browser. The browser requires a session cookie, obtained by loading
// the browser page once before the first search.
type Client struct {
	cfg  Config
	http *transport.Client

	mu      sync.Mutex
	session bool
}

// NewClient creates a client with its own cookie jar.
func NewClient(cfg Config) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	tc := transport.New("official", time.Duration(cfg.TimeoutSeconds)*time.Second)
	tc.HTTP.Jar = jar
	return &Client{cfg: cfg, http: tc}, nil
}

// Cards establishes a session if needed and runs a search.
func (c *Client) Cards(ctx context.Context, f Filter) ([]Record, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	if f.Language == "" {
		f.Language = c.cfg.Language
	}
	f = f.withEmptyLists()

	var resp cardsResponse
	if err := c.http.PostJSON(ctx, c.url("get-cards"), f, &resp); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(resp.Cards))
	for _, raw := range resp.Cards {
		out = append(out, toRecord(raw))
	}
	return out, nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("card-browser"), nil)
	if err != nil {
		return fmt.Errorf("create session request: %w", err)
	}
	if err := c.http.Do(req, nil); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}
	c.session = true
	return nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Language, path)
}

// withEmptyLists replaces nil lists, which the browser rejects, with empty ones.
func (f Filter) withEmptyLists() Filter {
	for _, l := range []*[]string{&f.Type, &f.Element, &f.Cost, &f.Rarity, &f.Power, &f.Category1, &f.Set} {
		if *l == nil {
			*l = []string{}
		}
	}
	return f
}
