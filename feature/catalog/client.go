package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"card-sync/core/retry"
	"card-sync/core/transport"
)

// Config holds the catalog API settings.
type Config struct {
	// BaseURL is the API root, without trailing slash.
	BaseURL string `mapstructure:"base_url" default:"https://tcgcsv.com/tcgplayer"`
	// CategoryID is the catalog category of the card game.
	CategoryID int64 `mapstructure:"category_id" default:"24"`
	// TimeoutSeconds bounds a single request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

// envelope is the wrapper of every catalog response.
type envelope[T any] struct {
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	TotalItems int      `json:"totalItems"`
	Results    []T      `json:"results"`
}

// Source is the catalog API as seen by the sync processors.
type Source interface {
	Groups(ctx context.Context) ([]Group, error)
	Products(ctx context.Context, groupID int64) ([]Product, error)
	Prices(ctx context.Context, groupID int64) ([]PriceRow, error)
}

// Client reads groups, products and prices from the catalog API.
type Client struct {
	cfg  Config
	http *transport.Client
}

// NewClient creates a catalog client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: transport.New("catalog", time.Duration(cfg.TimeoutSeconds)*time.Second),
	}
}

// Groups lists every group of the category.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	return fetch[Group](ctx, c, fmt.Sprintf("%s/%d/groups", c.base(), c.cfg.CategoryID))
}

// Products lists the products of a group in upstream order.
func (c *Client) Products(ctx context.Context, groupID int64) ([]Product, error) {
	return fetch[Product](ctx, c, fmt.Sprintf("%s/%d/%d/products", c.base(), c.cfg.CategoryID, groupID))
}

// Prices lists the price rows of a group.
func (c *Client) Prices(ctx context.Context, groupID int64) ([]PriceRow, error) {
	return fetch[PriceRow](ctx, c, fmt.Sprintf("%s/%d/%d/prices", c.base(), c.cfg.CategoryID, groupID))
}

func (c *Client) base() string {
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

func fetch[T any](ctx context.Context, c *Client, url string) ([]T, error) {
	var env envelope[T]
	if err := c.http.GetJSON(ctx, url, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		msg := strings.Join(env.Errors, "; ")
		if msg == "" {
			msg = "request unsuccessful"
		}
		return nil, retry.Permanent(errors.New("catalog: " + msg))
	}
	return env.Results, nil
}
