// Package prices polls the Pyth Hermes API for live quotes.
package prices

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
)

// DefaultHermesURL is the public Pyth Hermes endpoint.
const DefaultHermesURL = "https://hermes.pyth.network"

// Feed ids for the assets the client trades.
var pythFeeds = map[string]string{
	"ETH":  "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
	"WBTC": "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	"USDC": "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a",
}

type parsedFeed struct {
	ID    string `json:"id"`
	Price struct {
		Price       string `json:"price"`
		Expo        int    `json:"expo"`
		PublishTime int64  `json:"publish_time"`
	} `json:"price"`
}

type hermesResponse struct {
	Parsed []parsedFeed `json:"parsed"`
}

// Service fetches and caches quotes. Consumers read Latest and never block
// on a refresh.
type Service struct {
	baseURL string
	client  *http.Client
	logger  *logging.Logger

	mu        sync.RWMutex
	latest    domain.PriceData
	prev      map[string]float64
	prevFetch time.Time
}

// NewService creates a price service against the given Hermes base URL;
// empty means the public endpoint.
func NewService(baseURL string, logger *logging.Logger) *Service {
	if baseURL == "" {
		baseURL = DefaultHermesURL
	}
	return &Service{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		latest:  domain.PriceData{},
		prev:    make(map[string]float64),
	}
}

// Latest returns the most recent quote map. Possibly empty, never nil.
func (s *Service) Latest() domain.PriceData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.PriceData, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// Fetch pulls fresh quotes and updates the cache. The 24h change is
// estimated from the previous sample; Hermes does not supply it.
func (s *Service) Fetch(ctx context.Context) (domain.PriceData, error) {
	q := url.Values{}
	for _, id := range pythFeeds {
		q.Add("ids[]", id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/v2/updates/price/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "building hermes request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching prices")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("hermes returned status %d", resp.StatusCode)
	}

	var body hermesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decoding hermes response")
	}

	idToSymbol := make(map[string]string, len(pythFeeds))
	for symbol, id := range pythFeeds {
		idToSymbol[strings.TrimPrefix(id, "0x")] = symbol
	}

	out := domain.PriceData{}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, feed := range body.Parsed {
		symbol, ok := idToSymbol[strings.TrimPrefix(feed.ID, "0x")]
		if !ok {
			continue
		}
		raw, err := strconv.ParseFloat(feed.Price.Price, 64)
		if err != nil {
			s.logger.Warn("skipping malformed price", logging.Fields{"symbol": symbol})
			continue
		}
		usd := raw * math.Pow(10, float64(feed.Price.Expo))

		change := 0.0
		if last, ok := s.prev[symbol]; ok && last != 0 && now.After(s.prevFetch) {
			change = (usd - last) / last * 100
		}

		out[symbol] = domain.PricePoint{USD: usd, USD24hChange: change}
		s.prev[symbol] = usd
	}

	// WETH trades at the ETH price.
	if eth, ok := out["ETH"]; ok {
		out["WETH"] = eth
	}

	s.prevFetch = now
	s.latest = out
	return out, nil
}

// Poll refreshes the cache on the given interval until ctx is done. A
// failed refresh keeps the previous snapshot.
func (s *Service) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Fetch(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("price refresh failed", logging.Fields{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
