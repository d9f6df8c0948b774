package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/publicsuffix"

	"github.com/username/smartledger/backend/src/logger"
)

const priceUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// marketSuffixes are the exchange suffixes tried for bare tickers. Taiwanese
// listed stocks resolve under .TW, over-the-counter ones under .TWO.
var marketSuffixes = []string{".TW", ".TWO"}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			Bid                        float64 `json:"bid"`
			Ask                        float64 `json:"ask"`
			Currency                   string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// yahooPriceService implements PriceService against Yahoo Finance. It keeps a
// cookie jar and a crumb for authenticated quote requests, and a short-TTL
// cache so bulk refreshes do not hammer the quote API.
type yahooPriceService struct {
	httpClient http.Client
	crumb      string
	cache      *gocache.Cache
}

// NewPriceService creates the Yahoo-backed price service. It initializes the
// HTTP client with a cookie jar and fetches the session crumb up front;
// failures are logged and retried lazily on first lookup.
func NewPriceService(cacheTTL time.Duration) PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	s := &yahooPriceService{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
		cache: gocache.New(cacheTTL, 2*cacheTTL),
	}

	if err := s.initializeYahooSession(); err != nil {
		logger.L.Error("Failed to initialize Yahoo Finance session. Price fetching may fail.", "error", err)
	}

	return s
}

// initializeYahooSession visits a Yahoo Finance page to get the cookies and
// the crumb the quote endpoints require.
func (s *yahooPriceService) initializeYahooSession() error {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	initURL := "https://finance.yahoo.com/quote/2330.TW"
	req, err := http.NewRequest("GET", initURL, nil)
	if err != nil {
		return err
	}
	// A valid User-Agent is crucial.
	req.Header.Set("User-Agent", priceUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yahoo response body: %w", err)
	}

	re := regexp.MustCompile(`"CrumbStore":{"crumb":"(.*?)"}`)
	matches := re.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return fmt.Errorf("could not find crumb in Yahoo Finance response. The page structure may have changed")
	}

	s.crumb = matches[1]
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return nil
}

// Lookup resolves the current price for a ticker. Bare tickers are tried with
// each market suffix; each candidate symbol goes through the quote endpoint
// (regular price, then previous close, bid, ask) and finally the most recent
// historical close, until a positive price is found.
func (s *yahooPriceService) Lookup(ticker string) (float64, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return 0, ErrPriceUnavailable
	}

	if cached, found := s.cache.Get(ticker); found {
		return cached.(float64), nil
	}

	if s.crumb == "" {
		logger.L.Warn("Yahoo crumb is missing, attempting to re-initialize session.")
		if err := s.initializeYahooSession(); err != nil {
			logger.L.Error("Failed to re-initialize Yahoo session", "error", err)
		}
	}

	for _, symbol := range candidateSymbols(ticker) {
		if price, err := s.priceFromQuote(symbol); err == nil && price > 0 {
			s.cache.SetDefault(ticker, price)
			return price, nil
		} else if err != nil {
			logger.L.Warn("Yahoo quote lookup failed", "symbol", symbol, "error", err)
		}

		if price, err := s.priceFromHistory(symbol); err == nil && price > 0 {
			s.cache.SetDefault(ticker, price)
			return price, nil
		} else if err != nil {
			logger.L.Warn("Yahoo history lookup failed", "symbol", symbol, "error", err)
		}
	}

	return 0, ErrPriceUnavailable
}

// candidateSymbols expands a bare ticker into suffixed market identifiers.
// Tickers that already carry a suffix are used as-is.
func candidateSymbols(ticker string) []string {
	if strings.Contains(ticker, ".") {
		return []string{ticker}
	}
	symbols := make([]string, 0, len(marketSuffixes))
	for _, suffix := range marketSuffixes {
		symbols = append(symbols, ticker+suffix)
	}
	return symbols
}

// priceFromQuote hits the v7 quote endpoint and walks the price fields in
// priority order: regular market price, previous close, bid, ask.
func (s *yahooPriceService) priceFromQuote(symbol string) (float64, error) {
	quoteURL := fmt.Sprintf("https://query2.finance.yahoo.com/v7/finance/quote?symbols=%s&crumb=%s", symbol, s.crumb)
	req, err := http.NewRequest("GET", quoteURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", priceUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call Yahoo quote API for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("yahoo quote API returned status %d for %s. Body: %s", resp.StatusCode, symbol, string(bodyBytes))
	}

	var quoteData yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteData); err != nil {
		return 0, fmt.Errorf("failed to decode Yahoo quote response for %s: %w", symbol, err)
	}

	if quoteData.QuoteResponse.Error != nil || len(quoteData.QuoteResponse.Result) == 0 {
		return 0, fmt.Errorf("yahoo quote API returned an error or no result for %s", symbol)
	}

	result := quoteData.QuoteResponse.Result[0]
	for _, candidate := range []float64{
		result.RegularMarketPrice,
		result.RegularMarketPreviousClose,
		result.Bid,
		result.Ask,
	} {
		if candidate > 0 {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("no positive price field in quote for %s", symbol)
}

// priceFromHistory falls back to the chart endpoint and takes the most recent
// close of the last five trading days.
func (s *yahooPriceService) priceFromHistory(symbol string) (float64, error) {
	chartURL := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?range=5d&interval=1d", symbol)
	req, err := http.NewRequest("GET", chartURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", priceUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call Yahoo chart API for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("yahoo chart API returned status %d for %s", resp.StatusCode, symbol)
	}

	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return 0, fmt.Errorf("failed to decode Yahoo chart response for %s: %w", symbol, err)
	}

	if chartData.Chart.Error != nil || len(chartData.Chart.Result) == 0 {
		return 0, fmt.Errorf("yahoo chart API returned an error or no result for %s", symbol)
	}

	result := chartData.Chart.Result[0]
	for _, quote := range result.Indicators.Quote {
		for i := len(quote.Close) - 1; i >= 0; i-- {
			if quote.Close[i] != nil && *quote.Close[i] > 0 {
				return *quote.Close[i], nil
			}
		}
	}
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}
	return 0, fmt.Errorf("no close price in chart data for %s", symbol)
}
