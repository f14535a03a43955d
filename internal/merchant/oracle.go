package merchant

import "context"

// MCCHint describes a known code so the oracle can prefer existing codes.
type MCCHint struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// OracleRequest asks the oracle to classify a batch of normalized merchants.
type OracleRequest struct {
	MerchantNames []string
	KnownMCCHints []MCCHint
}

// OracleResult is one proposed classification. Fields are untrusted.
// Description names the proposed code; Reasoning is kept for logs.
type OracleResult struct {
	Merchant    string  `json:"merchant"`
	MCCCode     string  `json:"mcc"`
	Category    string  `json:"category"`
	SubCategory string  `json:"subCategory"`
	Description string  `json:"description"`
	Reasoning   string  `json:"reasoning"`
	Confidence  float64 `json:"confidence"`
}

// OracleResponse holds the oracle's results. It may be partial.
type OracleResponse struct {
	Results []OracleResult
}

// Oracle classifies merchants the local strategies could not resolve.
type Oracle interface {
	ResolveMerchants(ctx context.Context, req OracleRequest) (OracleResponse, error)
}

// CategoryCheck is a taxonomy-validated category for an oracle proposal.
type CategoryCheck struct {
	SubCategoryID *int
	CategoryID    int
	Confidence    float64
}

// CategoryValidator maps an oracle's free-text category onto the taxonomy.
type CategoryValidator interface {
	ValidateProposal(label, subLabel, mccCode, merchant string) (CategoryCheck, error)
}
