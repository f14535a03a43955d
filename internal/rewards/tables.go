package rewards

// brandFamilies groups merchant spellings that belong to one brand. Keys and
// aliases are compact lowercase (no spaces).
var brandFamilies = map[string][]string{
	"amazon":     {"amazon", "amzn", "amazonpay", "amazonprime", "amznmktp", "primevideo"},
	"flipkart":   {"flipkart", "fkrt", "myntra", "cleartrip"},
	"swiggy":     {"swiggy", "instamart", "swiggyinstamart"},
	"zomato":     {"zomato", "blinkit", "zomatoltd"},
	"uber":       {"uber", "ubereats", "ubertrip", "ubertrips"},
	"mcdonalds":  {"mcdonalds", "mcd", "mcdonald"},
	"starbucks":  {"starbucks", "tatastarbucks", "sbux"},
	"makemytrip": {"makemytrip", "mmt", "goibibo"},
	"bigbasket":  {"bigbasket", "bbnow", "bbdaily"},
	"reliance":   {"reliancedigital", "reliancefresh", "ajio", "jiomart", "reliancetrends"},
	"tata":       {"tatacliq", "croma", "tata1mg"},
	"netflix":    {"netflix"},
	"apple":      {"apple", "applecom", "itunes", "appstore"},
	"google":     {"google", "googleplay", "youtube", "googlestorage"},
}

// familyIndex maps each alias back to its family.
var familyIndex = func() map[string]string {
	idx := make(map[string]string)
	for family, aliases := range brandFamilies {
		for _, alias := range aliases {
			if _, taken := idx[alias]; !taken {
				idx[alias] = family
			}
		}
	}
	return idx
}()

// citySuffixes are trailing location tokens statements append to merchants.
var citySuffixes = map[string]bool{
	"bangalore": true, "bengaluru": true, "mumbai": true, "delhi": true,
	"chennai": true, "hyderabad": true, "pune": true, "kolkata": true, "gurgaon": true,
	"gurugram": true, "noida": true, "ahmedabad": true, "jaipur": true, "india": true,
	"in": true, "ind": true, "usa": true, "us": true, "ny": true, "ca": true,
}

// categorySynonyms maps category slugs to a shared taxonomy group.
var categorySynonyms = map[string]string{
	"dining":                  "dining",
	"dining-food-delivery":    "dining",
	"food":                    "dining",
	"food-delivery":           "dining",
	"food-dining":             "dining",
	"restaurants":             "dining",
	"restaurant":              "dining",
	"eating-out":              "dining",
	"quick-service-fast-food": "dining",
	"coffee-shops":            "dining",
	"cafes":                   "dining",
	"groceries":               "groceries",
	"grocery":                 "groceries",
	"supermarkets":            "groceries",
	"supermarket":             "groceries",
	"travel":                  "travel",
	"flights":                 "travel",
	"airlines":                "travel",
	"air-travel":              "travel",
	"hotels":                  "travel",
	"hotel":                   "travel",
	"travel-hotels":           "travel",
	"fuel":                    "fuel",
	"fuel-transportation":     "fuel",
	"gas":                     "fuel",
	"petrol":                  "fuel",
	"transportation":          "fuel",
	"transport":               "fuel",
	"ride-sharing":            "fuel",
	"shopping":                "shopping",
	"online-shopping":         "shopping",
	"retail":                  "shopping",
	"ecommerce":               "shopping",
	"e-commerce":              "shopping",
	"electronics":             "shopping",
	"apparel":                 "shopping",
	"department-stores":       "shopping",
	"entertainment":           "entertainment",
	"movies":                  "entertainment",
	"streaming":               "entertainment",
	"ott":                     "entertainment",
	"streaming-subscriptions": "entertainment",
	"utilities":               "utilities",
	"utilities-bills":         "utilities",
	"bills":                   "utilities",
	"bill-payments":           "utilities",
	"telecom":                 "utilities",
	"recharges":               "utilities",
	"mobile-internet":         "utilities",
	"electricity":             "utilities",
	"health":                  "health",
	"health-wellness":         "health",
	"wellness":                "health",
	"pharmacy":                "health",
	"pharmacies":              "health",
	"medical":                 "health",
	"fitness":                 "health",
	"gyms-fitness":            "health",
}

// mccGroups clusters related merchant category codes.
var mccGroups = map[string]string{
	"5812": "dining", "5813": "dining", "5814": "dining", "5499": "dining",
	"5411": "grocery", "5422": "grocery", "5441": "grocery", "5451": "grocery", "5462": "grocery",
	"4511": "travel", "4722": "travel", "7011": "travel", "4411": "travel", "4112": "travel", "4131": "travel",
	"5541": "fuel", "5542": "fuel", "5983": "fuel", "4121": "fuel", "4111": "fuel",
	"5311": "retail", "5399": "retail", "5651": "retail", "5691": "retail", "5732": "retail", "5999": "retail", "5942": "retail",
	"7832": "entertainment", "7922": "entertainment", "7996": "entertainment", "4899": "entertainment",
	"4814": "utilities", "4900": "utilities",
	"5912": "health", "8011": "health", "8062": "health", "7997": "health",
}
