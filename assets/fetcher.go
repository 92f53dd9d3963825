package assets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// Fetcher produces image bytes for a prompt.
type Fetcher interface {
	Fetch(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// PollinationsFetcher fetches AI-generated images from the
// pollinations.ai prompt endpoint.
type PollinationsFetcher struct {
	Client  *http.Client
	BaseURL string
}

func NewPollinationsFetcher() *PollinationsFetcher {
	return &PollinationsFetcher{
		Client:  &http.Client{Timeout: 60 * time.Second},
		BaseURL: "https://image.pollinations.ai",
	}
}

func (f *PollinationsFetcher) Fetch(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	seed := rand.Intn(100000)
	u := fmt.Sprintf("%s/prompt/%s?seed=%d&width=%d&height=%d&nologo=true",
		f.BaseURL, url.PathEscape(prompt), seed, width, height)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image endpoint returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image endpoint returned an empty body")
	}
	return data, nil
}
