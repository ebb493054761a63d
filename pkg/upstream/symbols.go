package upstream

import "strings"

// coin holds the provider-side id and display name for a ticker symbol.
type coin struct {
	ID   string
	Name string
}

// symbolTable maps ticker symbols to their CoinGecko ids and names.
var symbolTable = map[string]coin{
	"BTC":   {"bitcoin", "Bitcoin"},
	"ETH":   {"ethereum", "Ethereum"},
	"ADA":   {"cardano", "Cardano"},
	"BNB":   {"binancecoin", "Binance Coin"},
	"XRP":   {"ripple", "XRP"},
	"SOL":   {"solana", "Solana"},
	"DOT":   {"polkadot", "Polkadot"},
	"DOGE":  {"dogecoin", "Dogecoin"},
	"AVAX":  {"avalanche-2", "Avalanche"},
	"MATIC": {"matic-network", "Polygon"},
	"LINK":  {"chainlink", "Chainlink"},
	"UNI":   {"uniswap", "Uniswap"},
	"LTC":   {"litecoin", "Litecoin"},
	"ATOM":  {"cosmos", "Cosmos"},
	"XLM":   {"stellar", "Stellar"},
	"ALGO":  {"algorand", "Algorand"},
	"VET":   {"vechain", "VeChain"},
	"ICP":   {"internet-computer", "Internet Computer"},
	"FIL":   {"filecoin", "Filecoin"},
	"TRX":   {"tron", "TRON"},
}

// ProviderID returns the provider-side id for a ticker symbol. Unknown
// symbols fall back to the lowercased ticker, which the provider may or
// may not recognize.
func ProviderID(symbol string) string {
	if c, ok := symbolTable[symbol]; ok {
		return c.ID
	}
	return strings.ToLower(symbol)
}

// DisplayName returns the human-readable name for a ticker symbol,
// falling back to the ticker itself.
func DisplayName(symbol string) string {
	if c, ok := symbolTable[symbol]; ok {
		return c.Name
	}
	return symbol
}
