package categorize

import "github.com/ovoloshko/statement-ingest/internal/domain"

// rule pairs one category with the lowercase keywords that select it.
type rule struct {
	category domain.Category
	keywords []string
}

// defaultRules is the built-in keyword table. Declaration order is the
// priority order: the first category with a matching keyword wins, so
// "uber eats" under Food & Dining beats "uber" under Transportation.
// domain.CategoryOther carries no keywords; it is the fallback.
var defaultRules = []rule{
	{domain.CategoryFoodDining, []string{
		"starbucks", "coffee", "cafe", "restaurant", "mcdonald", "burger",
		"pizza", "kfc", "subway", "deliveroo", "uber eats", "just eat",
		"doordash", "grubhub", "bakery", "diner", "sushi",
	}},
	{domain.CategoryShopping, []string{
		"amazon", "ebay", "walmart", "target", "etsy", "ikea", "zara",
		"best buy", "aliexpress", "asos", "costco", "aldi", "lidl",
		"tesco", "sainsbury", "grocery", "supermarket",
	}},
	{domain.CategoryTransportation, []string{
		"uber", "lyft", "taxi", "cab co", "shell", "chevron", "texaco",
		"fuel", "petrol", "gas station", "parking", "transit", "metro",
		"mta ", "tfl ", "railway",
	}},
	{domain.CategoryBillsUtilities, []string{
		"electric", "water bill", "gas bill", "internet", "broadband",
		"comcast", "verizon", "at&t", "t-mobile", "vodafone", "utility",
		"insurance", "phone bill", "council tax",
	}},
	{domain.CategoryEntertainment, []string{
		"netflix", "spotify", "hulu", "disney", "cinema", "theater",
		"theatre", "steam", "playstation", "xbox", "concert", "ticketmaster",
	}},
	{domain.CategoryHealthcare, []string{
		"pharmacy", "cvs", "walgreens", "boots", "doctor", "dental",
		"clinic", "hospital", "optician", "optical",
	}},
	{domain.CategoryTravel, []string{
		"airline", "airways", "airbnb", "hotel", "hostel", "booking.com",
		"expedia", "ryanair", "easyjet", "delta air", "united air",
	}},
	{domain.CategoryIncome, []string{
		"salary", "payroll", "paycheck", "dividend", "employer",
		"hmrc refund", "tax refund",
	}},
	{domain.CategoryTransfer, []string{
		"transfer", "zelle", "venmo", "paypal", "revolut", "wise",
		"standing order", "iban",
	}},
	{domain.CategoryATMCash, []string{
		"atm", "cash withdrawal", "cashpoint", "cash deposit", "withdrawal",
	}},
}
