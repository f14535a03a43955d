package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
)

type seedCategory struct {
	name string
	subs []string
}

// Category IDs are assigned in this order starting at 1.
var seedTaxonomy = []seedCategory{
	{name: "Dining & Food Delivery", subs: []string{"Restaurants", "Quick Service & Fast Food", "Food Delivery", "Coffee Shops"}},
	{name: "Groceries", subs: []string{"Supermarkets", "Online Grocery"}},
	{name: "Travel", subs: []string{"Airlines", "Hotels", "Travel Agencies"}},
	{name: "Fuel & Transportation", subs: []string{"Fuel Stations", "Ride Sharing", "Public Transit"}},
	{name: "Shopping", subs: []string{"Online Shopping", "Department Stores", "Electronics", "Apparel"}},
	{name: "Entertainment", subs: []string{"Streaming", "Movies & Events"}},
	{name: "Utilities & Bills", subs: []string{"Telecom", "Utilities"}},
	{name: "Health & Wellness", subs: []string{"Pharmacy", "Fitness"}},
	{name: "Other", subs: []string{"Government & Taxes", "Uncategorized"}},
}

type seedMCC struct {
	code        string
	description string
	category    string
	sub         string
	patterns    []string
}

var seedMCCCodes = []seedMCC{
	{"5812", "Eating Places, Restaurants", "Dining & Food Delivery", "Restaurants", []string{"RESTAURANT", "BISTRO", "GRILL", "OLIVE GARDEN", "CHEESECAKE FACTORY"}},
	{"5814", "Fast Food Restaurants", "Dining & Food Delivery", "Quick Service & Fast Food", []string{"MCDONALDS", "BURGER KING", "KFC", "SUBWAY", "DOMINOS", "PIZZA HUT", "TACO BELL", "WENDYS", "CHIPOTLE"}},
	{"5499", "Miscellaneous Food Stores", "Dining & Food Delivery", "Food Delivery", []string{"DOORDASH", "UBER EATS", "GRUBHUB", "SWIGGY", "ZOMATO"}},
	{"5411", "Grocery Stores, Supermarkets", "Groceries", "Supermarkets", []string{"KROGER", "WHOLE FOODS", "TRADER JOE*", "SAFEWAY", "ALDI", "PUBLIX", "BIGBASKET"}},
	{"4511", "Airlines, Air Carriers", "Travel", "Airlines", []string{"DELTA AIR*", "UNITED AIRLINES", "AMERICAN AIRLINES", "SOUTHWEST AIR*", "JETBLUE", "INDIGO"}},
	{"7011", "Hotels, Motels, Resorts", "Travel", "Hotels", []string{"MARRIOTT", "HILTON", "HYATT", "HOLIDAY INN", "TAJ HOTELS"}},
	{"4722", "Travel Agencies, Tour Operators", "Travel", "Travel Agencies", []string{"EXPEDIA", "BOOKING COM", "AIRBNB", "MAKEMYTRIP", "PRICELINE"}},
	{"5541", "Service Stations", "Fuel & Transportation", "Fuel Stations", []string{"SHELL", "CHEVRON", "EXXON*", "BP", "INDIAN OIL", "HPCL"}},
	{"4121", "Taxicabs and Limousines", "Fuel & Transportation", "Ride Sharing", []string{"UBER TRIP", "LYFT", "OLA CABS"}},
	{"4111", "Local and Suburban Commuter Transport", "Fuel & Transportation", "Public Transit", []string{"MTA*", "METRO", "BART", "TRANSIT"}},
	{"5999", "Miscellaneous and Specialty Retail", "Shopping", "Online Shopping", []string{"AMAZON", "AMZN MKTP*", "FLIPKART", "EBAY", "ETSY"}},
	{"5311", "Department Stores", "Shopping", "Department Stores", []string{"TARGET", "MACYS", "NORDSTROM", "KOHLS", "COSTCO"}},
	{"5732", "Electronics Stores", "Shopping", "Electronics", []string{"BEST BUY", "APPLE STORE", "CROMA"}},
	{"5651", "Family Clothing Stores", "Shopping", "Apparel", []string{"ZARA", "UNIQLO", "OLD NAVY", "H M"}},
	{"4899", "Cable, Satellite and Pay Television", "Entertainment", "Streaming", []string{"NETFLIX", "SPOTIFY", "HULU", "DISNEY PLUS", "HBO MAX"}},
	{"7832", "Motion Picture Theaters", "Entertainment", "Movies & Events", []string{"AMC THEATRE*", "REGAL", "CINEMARK", "PVR", "BOOKMYSHOW"}},
	{"4814", "Telecommunication Services", "Utilities & Bills", "Telecom", []string{"VERIZON", "AT T", "T MOBILE", "AIRTEL", "JIO"}},
	{"4900", "Utilities", "Utilities & Bills", "Utilities", []string{"CON EDISON", "PG E", "ELECTRIC", "WATER DEPT"}},
	{"5912", "Drug Stores and Pharmacies", "Health & Wellness", "Pharmacy", []string{"CVS", "WALGREENS", "RITE AID", "APOLLO PHARMACY"}},
	{"7997", "Membership Clubs, Fitness", "Health & Wellness", "Fitness", []string{"PLANET FITNESS", "EQUINOX", "GOLDS GYM", "CULT FIT"}},
	{"9311", "Tax Payments", "Other", "Government & Taxes", []string{"IRS", "TAX PAYMENT"}},
}

type seedAlias struct {
	name       string
	code       string
	aliases    []string
	confidence float64
}

var seedAliases = []seedAlias{
	{"MCDONALDS", "5814", []string{"MCD", "MC DONALDS"}, 0.95},
	{"STARBUCKS", "5814", []string{"SBUX", "STARBUCKS COFFEE"}, 0.95},
	{"AMAZON", "5999", []string{"AMZN", "AMZN MKTP", "AMAZON COM"}, 0.95},
	{"WALMART", "5411", []string{"WAL MART", "WM SUPERCENTER"}, 0.9},
	{"UBER", "4121", []string{"UBER TRIP", "UBER BV"}, 0.9},
	{"NETFLIX", "4899", []string{"NETFLIX COM"}, 0.95},
	{"SHELL", "5541", []string{"SHELL OIL"}, 0.9},
	{"SWIGGY", "5499", []string{"BUNDL TECHNOLOGIES"}, 0.9},
}

func seedReferenceData(tx *sql.Tx) error {
	categoryIDs := make(map[string]int64, len(seedTaxonomy))
	subIDs := make(map[string]int64)

	for _, cat := range seedTaxonomy {
		res, err := tx.Exec(`INSERT INTO categories (name, slug) VALUES (?, ?)`, cat.name, model.Slugify(cat.name))
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", cat.name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read category id: %w", err)
		}
		categoryIDs[cat.name] = id

		for _, sub := range cat.subs {
			res, err := tx.Exec(`INSERT INTO sub_categories (category_id, name, slug) VALUES (?, ?, ?)`,
				id, sub, model.Slugify(sub))
			if err != nil {
				return fmt.Errorf("failed to seed sub-category %s: %w", sub, err)
			}
			subID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read sub-category id: %w", err)
			}
			subIDs[cat.name+"/"+sub] = subID
		}
	}

	for _, m := range seedMCCCodes {
		catID, ok := categoryIDs[m.category]
		if !ok {
			return fmt.Errorf("mcc %s references unknown category %s", m.code, m.category)
		}
		subID, ok := subIDs[m.category+"/"+m.sub]
		if !ok {
			return fmt.Errorf("mcc %s references unknown sub-category %s", m.code, m.sub)
		}
		patterns, err := json.Marshal(m.patterns)
		if err != nil {
			return fmt.Errorf("failed to encode patterns: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO mcc_codes (code, description, category_id, sub_category_id, merchant_patterns, confidence)
			VALUES (?, ?, ?, ?, ?, 1.0)
		`, m.code, m.description, catID, subID, string(patterns)); err != nil {
			return fmt.Errorf("failed to seed mcc %s: %w", m.code, err)
		}
	}

	now := time.Now().UTC()
	for _, a := range seedAliases {
		aliases, err := json.Marshal(a.aliases)
		if err != nil {
			return fmt.Errorf("failed to encode aliases: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO merchant_aliases (merchant_name, aliases, mcc_code, confidence, usage_count, updated_at)
			VALUES (?, ?, ?, ?, 0, ?)
		`, a.name, string(aliases), a.code, a.confidence, now); err != nil {
			return fmt.Errorf("failed to seed alias %s: %w", a.name, err)
		}
	}

	return nil
}

// StarterOffers is the catalog installed by the seed migration.
func StarterOffers() []model.Offer {
	return []model.Offer{
		{
			ID: "everyday-cashback", Name: "Everyday Cashback", Issuer: "HDFC Bank", Network: "VISA",
			RewardCurrency: model.CurrencyCashback, BaseRewardRate: 1,
			AcceleratedRewards: []model.AcceleratedReward{
				{RewardCategory: "Groceries", Rate: 5, Cap: &model.RewardCap{Limit: 500, Period: model.CapMonthly}},
				{RewardCategory: "Utilities & Bills", Rate: 2},
			},
			Fees:                      model.FeeStructure{JoiningFee: 500, AnnualFee: 500},
			Eligibility:               model.Eligibility{MinIncome: 25000, MinCreditScore: 700},
			DigitalFeatures:           []string{"contactless", "virtual card", "instant emi"},
			CustomerSatisfactionScore: 4.2, IsActive: true,
		},
		{
			ID: "foodie-rewards", Name: "Foodie Rewards", Issuer: "Axis Bank", Network: "MASTERCARD",
			RewardCurrency: model.CurrencyCashback, BaseRewardRate: 1,
			AcceleratedRewards: []model.AcceleratedReward{
				{RewardCategory: "Dining & Food Delivery", Rate: 10, Cap: &model.RewardCap{Limit: 500, Period: model.CapMonthly}},
				{RewardCategory: "Dining & Food Delivery", MerchantPatterns: []string{"Swiggy", "Zomato"}, Rate: 15, Cap: &model.RewardCap{Limit: 750, Period: model.CapMonthly}},
			},
			Fees:                      model.FeeStructure{JoiningFee: 0, AnnualFee: 999},
			Eligibility:               model.Eligibility{MinIncome: 30000, MinCreditScore: 720},
			WelcomeBenefits:           []model.WelcomeBenefit{{Description: "Dining voucher", Value: 1000}},
			DigitalFeatures:           []string{"contactless", "app controls"},
			CustomerSatisfactionScore: 4.5, IsActive: true,
		},
		{
			ID: "shopper-prime", Name: "Shopper Prime", Issuer: "ICICI Bank", Network: "VISA",
			RewardCurrency: model.CurrencyPoints, BaseRewardRate: 2,
			AcceleratedRewards: []model.AcceleratedReward{
				{RewardCategory: "Shopping", MerchantPatterns: []string{"Amazon"}, Rate: 20},
				{RewardCategory: "Shopping", Rate: 6, Cap: &model.RewardCap{Limit: 2000, Period: model.CapQuarterly}},
			},
			Eligibility:               model.Eligibility{MinIncome: 20000, MinCreditScore: 650},
			DigitalFeatures:           []string{"contactless", "virtual card", "app controls"},
			CustomerSatisfactionScore: 4.0, IsActive: true, IsLifetimeFree: true,
		},
		{
			ID: "voyager-miles", Name: "Voyager Miles", Issuer: "American Express", Network: "AMEX",
			RewardCurrency: model.CurrencyMiles, BaseRewardRate: 2,
			AcceleratedRewards: []model.AcceleratedReward{
				{RewardCategory: "Travel", MCCCodes: []string{"4511", "7011", "4722"}, Rate: 10},
				{RewardCategory: "Fuel & Transportation", Rate: 4, Cap: &model.RewardCap{Limit: 6000, Period: model.CapYearly}},
			},
			Fees:                      model.FeeStructure{JoiningFee: 4500, AnnualFee: 5000},
			Eligibility:               model.Eligibility{MinIncome: 100000, MinCreditScore: 750},
			WelcomeBenefits:           []model.WelcomeBenefit{{Description: "Bonus miles", Value: 4000}, {Description: "Lounge access", Value: 1500}},
			DigitalFeatures:           []string{"contactless", "lounge app", "virtual card"},
			CustomerSatisfactionScore: 4.6, IsActive: true,
		},
		{
			ID: "fuel-saver", Name: "Fuel Saver", Issuer: "State Bank", Network: "RUPAY",
			RewardCurrency: model.CurrencyCashback, BaseRewardRate: 0.5,
			AcceleratedRewards: []model.AcceleratedReward{
				{RewardCategory: "Fuel", MCCCodes: []string{"5541"}, Rate: 5, Cap: &model.RewardCap{Limit: 250, Period: model.CapMonthly}},
			},
			Fees:                      model.FeeStructure{JoiningFee: 199, AnnualFee: 199},
			Eligibility:               model.Eligibility{MinIncome: 15000},
			CustomerSatisfactionScore: 3.6, IsActive: true,
		},
		{
			ID: "legacy-gold", Name: "Legacy Gold", Issuer: "Citibank", Network: "DINERS",
			RewardCurrency: model.CurrencyPoints, BaseRewardRate: 1,
			Fees:                      model.FeeStructure{AnnualFee: 1500},
			CustomerSatisfactionScore: 2.8, IsActive: false, SignupBonusValue: 500,
		},
	}
}

func seedOffers(tx *sql.Tx) error {
	now := time.Now().UTC()
	for _, offer := range StarterOffers() {
		if err := validateModel(&offer, "offer", ErrInvalidOffer); err != nil {
			return err
		}
		if err := saveOfferTx(context.Background(), tx, &offer, now); err != nil {
			return err
		}
	}
	return nil
}
