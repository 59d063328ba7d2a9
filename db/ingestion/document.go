package ingestion

import "github.com/goccy/go-json"

// offerHeader is decoded first; products and terms are decoded once the
// document shape is known. Savings plan offers carry products as an array.
type offerHeader struct {
	FormatVersion   string          `json:"formatVersion"`
	OfferCode       string          `json:"offerCode"`
	Version         string          `json:"version"`
	PublicationDate string          `json:"publicationDate"`
	RegionCode      string          `json:"regionCode"`
	Products        json.RawMessage `json:"products"`
	Terms           json.RawMessage `json:"terms"`
}

// offerProduct is one entry of the products map.
type offerProduct struct {
	SKU           string            `json:"sku"`
	ProductFamily string            `json:"productFamily"`
	Attributes    map[string]string `json:"attributes"`
}

// offerTerms is Type -> SKU -> OfferTermCode -> Term.
type offerTerms map[string]map[string]map[string]offerTerm

type offerTerm struct {
	OfferTermCode   string                         `json:"offerTermCode"`
	SKU             string                         `json:"sku"`
	EffectiveDate   string                         `json:"effectiveDate"`
	PriceDimensions map[string]offerPriceDimension `json:"priceDimensions"`
	TermAttributes  map[string]string              `json:"termAttributes"`
}

type offerPriceDimension struct {
	RateCode     string            `json:"rateCode"`
	Description  string            `json:"description"`
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

// savingsPlanProduct is one entry of a savings plan offer's products array.
type savingsPlanProduct struct {
	SKU           string            `json:"sku"`
	ProductFamily string            `json:"productFamily"`
	UsageType     string            `json:"usageType"`
	Attributes    map[string]string `json:"attributes"`
}

type savingsPlanTerms struct {
	SavingsPlan []savingsPlanTerm `json:"savingsPlan"`
}

type savingsPlanTerm struct {
	SKU           string            `json:"sku"`
	EffectiveDate string            `json:"effectiveDate"`
	Rates         []savingsPlanRate `json:"rates"`
}

type savingsPlanRate struct {
	DiscountedUsageType    string `json:"discountedUsageType"`
	DiscountedOperation    string `json:"discountedOperation"`
	DiscountedServiceCode  string `json:"discountedServiceCode"`
	DiscountedRegionCode   string `json:"discountedRegionCode"`
	DiscountedInstanceType string `json:"discountedInstanceType"`
	Unit                   string `json:"unit"`
	DiscountedRate         struct {
		Price    string `json:"price"`
		Currency string `json:"currency"`
	} `json:"discountedRate"`
}

// Product families and term types found in EC2 offers.
const (
	familyComputeInstance = "Compute Instance"
	familyStorage         = "Storage"
	familyComputeSP       = "ComputeSavingsPlans"

	termOnDemand = "OnDemand"
	termReserved = "Reserved"

	offeringClassStandard = "standard"
)
