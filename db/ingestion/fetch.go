package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "migration-cost/pkg/errors"
	"migration-cost/pkg/platform"
)

// DefaultBaseURL is the public AWS price list endpoint.
const DefaultBaseURL = "https://pricing.us-east-1.amazonaws.com"

// ServiceComputeSavingsPlan is the offer code of compute savings plan rates,
// published under a different path than regular service offers.
const ServiceComputeSavingsPlan = "AWSComputeSavingsPlan"

// RawDocument is an unparsed offer file.
type RawDocument struct {
	ServiceCode string
	Region      string
	URL         string
	Body        []byte
	Hash        string
	FetchedAt   time.Time
}

func newRawDocument(serviceCode, region, url string, body []byte) *RawDocument {
	sum := sha256.Sum256(body)
	return &RawDocument{
		ServiceCode: serviceCode,
		Region:      region,
		URL:         url,
		Body:        body,
		Hash:        hex.EncodeToString(sum[:]),
		FetchedAt:   time.Now().UTC(),
	}
}

// Fetcher downloads offer files from the AWS price list endpoint.
type Fetcher struct {
	client  *platform.HTTPClient
	baseURL string
	logger  zerolog.Logger
}

func NewFetcher(client *platform.HTTPClient, logger zerolog.Logger) *Fetcher {
	return &Fetcher{client: client, baseURL: DefaultBaseURL, logger: logger}
}

// WithBaseURL points the fetcher at a mirror.
func (f *Fetcher) WithBaseURL(baseURL string) *Fetcher {
	f.baseURL = strings.TrimRight(baseURL, "/")
	return f
}

// OfferURL returns the offer file location for a service and region.
func (f *Fetcher) OfferURL(serviceCode, region string) string {
	if serviceCode == ServiceComputeSavingsPlan {
		return fmt.Sprintf("%s/savingsPlan/v1.0/aws/%s/current/region/%s/index.json", f.baseURL, serviceCode, region)
	}
	if region == "" {
		return fmt.Sprintf("%s/offers/v1.0/aws/%s/current/index.json", f.baseURL, serviceCode)
	}
	return fmt.Sprintf("%s/offers/v1.0/aws/%s/current/%s/index.json", f.baseURL, serviceCode, region)
}

// Fetch downloads the offer for serviceCode in region. Transport failures
// and non-2xx responses come back as retryable fetch errors.
func (f *Fetcher) Fetch(ctx context.Context, serviceCode, region string) (*RawDocument, error) {
	url := f.OfferURL(serviceCode, region)
	start := time.Now()

	f.logger.Info().Str("service", serviceCode).Str("region", region).Str("url", url).Msg("fetching offer file")

	body, err := f.client.GetBytes(ctx, url)
	if err != nil {
		return nil, perrors.NewFetchError(url, err)
	}

	f.logger.Info().
		Str("service", serviceCode).
		Str("region", region).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("fetched offer file")

	return newRawDocument(serviceCode, region, url, body), nil
}

// ReadDocument loads an offer file saved on disk.
func ReadDocument(path, serviceCode, region string) (*RawDocument, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.NewFetchError(path, err)
	}
	return newRawDocument(serviceCode, region, "file://"+path, body), nil
}
