package model

import (
	"fmt"
	"strings"
)

// RewardCurrency is the unit an offer earns in.
type RewardCurrency string

// Reward currency constants.
const (
	CurrencyCashback RewardCurrency = "cashback"
	CurrencyPoints   RewardCurrency = "points"
	CurrencyMiles    RewardCurrency = "miles"
)

// CapPeriod is the window a reward cap applies to.
type CapPeriod string

// Cap period constants.
const (
	CapMonthly   CapPeriod = "monthly"
	CapQuarterly CapPeriod = "quarterly"
	CapYearly    CapPeriod = "yearly"
	CapStatement CapPeriod = "statement"
)

// RewardCap limits the earnings (not the spend) of an accelerated reward.
type RewardCap struct {
	Period CapPeriod `json:"period" yaml:"period"`
	Limit  float64   `json:"limit" yaml:"limit"`
}

// AcceleratedReward is one reward rule of an offer. A rule with merchant patterns
// is brand specific and only applies to matching merchants.
type AcceleratedReward struct {
	Cap              *RewardCap `json:"cap,omitempty" yaml:"cap,omitempty"`
	RewardCategory   string     `json:"rewardCategory" yaml:"category"`
	MerchantPatterns []string   `json:"merchantPatterns,omitempty" yaml:"merchants,omitempty"`
	MCCCodes         []string   `json:"mccCodes,omitempty" yaml:"mcc,omitempty"`
	Rate             float64    `json:"rate" yaml:"rate"`
}

// IsBrandSpecific reports whether the rule requires a merchant match.
func (r *AcceleratedReward) IsBrandSpecific() bool {
	return len(r.MerchantPatterns) > 0
}

// FeeStructure holds an offer's fees.
type FeeStructure struct {
	JoiningFee float64 `json:"joiningFee" yaml:"joining"`
	AnnualFee  float64 `json:"annualFee" yaml:"annual"`
}

// Eligibility holds minimum applicant requirements.
type Eligibility struct {
	MinIncome      float64 `json:"minIncome" yaml:"min_income"`
	MinCreditScore int     `json:"minCreditScore" yaml:"min_credit_score"`
}

// WelcomeBenefit is a one-time signup benefit with a monetary value.
type WelcomeBenefit struct {
	Description string  `json:"description" yaml:"description"`
	Value       float64 `json:"value" yaml:"value"`
}

// Offer is a credit card in the catalog. Offers are read-only during scoring.
type Offer struct {
	ID                        string              `json:"id" yaml:"id"`
	Name                      string              `json:"name" yaml:"name"`
	Issuer                    string              `json:"issuer" yaml:"issuer"`
	Network                   string              `json:"network" yaml:"network"`
	RewardCurrency            RewardCurrency      `json:"rewardCurrency" yaml:"currency"`
	AcceleratedRewards        []AcceleratedReward `json:"acceleratedRewards" yaml:"rewards"`
	WelcomeBenefits           []WelcomeBenefit    `json:"welcomeBenefits,omitempty" yaml:"welcome,omitempty"`
	DigitalFeatures           []string            `json:"digitalFeatures,omitempty" yaml:"digital_features,omitempty"`
	Fees                      FeeStructure        `json:"fees" yaml:"fees"`
	Eligibility               Eligibility         `json:"eligibility" yaml:"eligibility"`
	BaseRewardRate            float64             `json:"baseRewardRate" yaml:"base_rate"`
	SignupBonusValue          float64             `json:"signupBonusValue,omitempty" yaml:"signup_bonus,omitempty"`
	CustomerSatisfactionScore float64             `json:"customerSatisfactionScore" yaml:"satisfaction"`
	IsActive                  bool                `json:"isActive" yaml:"active"`
	IsLifetimeFree            bool                `json:"isLifetimeFree" yaml:"lifetime_free"`
}

// Validate checks an offer once at the store boundary so scoring can trust it.
func (o *Offer) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("offer id is required")
	}
	if strings.TrimSpace(o.Issuer) == "" {
		return fmt.Errorf("offer %s: issuer is required", o.ID)
	}
	if o.BaseRewardRate < 0 {
		return fmt.Errorf("offer %s: base reward rate cannot be negative", o.ID)
	}
	switch o.RewardCurrency {
	case CurrencyCashback, CurrencyPoints, CurrencyMiles:
	default:
		return fmt.Errorf("offer %s: unknown reward currency %q", o.ID, o.RewardCurrency)
	}
	if o.Fees.JoiningFee < 0 || o.Fees.AnnualFee < 0 {
		return fmt.Errorf("offer %s: fees cannot be negative", o.ID)
	}
	if o.CustomerSatisfactionScore < 0 || o.CustomerSatisfactionScore > 5 {
		return fmt.Errorf("offer %s: satisfaction score must be between 0 and 5", o.ID)
	}
	for i, r := range o.AcceleratedRewards {
		if strings.TrimSpace(r.RewardCategory) == "" && len(r.MerchantPatterns) == 0 && len(r.MCCCodes) == 0 {
			return fmt.Errorf("offer %s: reward %d has no category, merchants or mcc codes", o.ID, i)
		}
		if r.Rate <= 0 {
			return fmt.Errorf("offer %s: reward %d rate must be positive", o.ID, i)
		}
		if r.Cap != nil {
			if r.Cap.Limit <= 0 {
				return fmt.Errorf("offer %s: reward %d cap limit must be positive", o.ID, i)
			}
			switch r.Cap.Period {
			case CapMonthly, CapQuarterly, CapYearly, CapStatement:
			case "":
				o.AcceleratedRewards[i].Cap.Period = CapMonthly
			default:
				return fmt.Errorf("offer %s: reward %d has unknown cap period %q", o.ID, i, r.Cap.Period)
			}
		}
		for _, code := range r.MCCCodes {
			if !IsMCC(code) {
				return fmt.Errorf("offer %s: reward %d has invalid mcc %q", o.ID, i, code)
			}
		}
	}
	return nil
}

// WelcomeValue sums welcome benefits, falling back to the legacy single field.
func (o *Offer) WelcomeValue() float64 {
	if len(o.WelcomeBenefits) == 0 {
		return o.SignupBonusValue
	}
	var total float64
	for _, b := range o.WelcomeBenefits {
		total += b.Value
	}
	return total
}
