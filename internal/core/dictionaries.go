package core

// Default vocabularies installed by the seed command. Titles equal codes
// until an analyst edits them.
var defaultCodes = map[Dictionary][]string{
	DictEntityTypes: {
		"address", "atm", "bridge", "custodial_wallet", "darknet_market", "dex", "dex_aggregator", "exchange",
		"fraud_shop", "gambling", "iaas", "individual", "lending_platform", "marketplace", "mining_pool", "mixer",
		"nft_marketplace", "non_custodial_wallet", "onchain_platform", "onchain_service", "online_pharmacy",
		"organization", "payment_service_provider", "privacy_protocol", "staking_platform", "validator",
		"csam_shop", "nft_collection", "token_contract", "nonprofit_organization", "ponzi", "yield",
		"yield_aggregator", "wrapped_token", "binary_trading", "hacker", "hacker_group", "illicit_service",
		"malware_service", "csam_vendor", "broker", "otc_desk", "payment_gateway", "onramp_offramp",
		"derivatives_exchange", "stablecoin_issuer", "token_issuer", "oracle", "rpc_provider",
		"blockchain_explorer", "analytics_provider", "gaming_platform",
	},
	DictFlags: {
		"illicit", "risky", "high_risk_jurisdiction", "sanctioned", "terrorist_financing", "no_kyc", "p2p",
		"enforcement_action", "scam_reported", "phishing_associated", "ransomware_associated",
		"malware_associated", "stolen_funds_associated", "under_investigation", "licensed", "unlicensed",
		"defunct", "rebranded", "needs_review", "confirmed", "low_confidence", "kyc_required", "kyc_optional",
		"travel_rule_ready",
	},
	DictAddressRoles: {
		"deposit", "master", "master_deposit", "master_withdrawal", "liquidity_pool", "lp_factory",
		"swap_router", "bridge_gateway", "bridge_router", "staking_contract", "factory_contract",
		"smart_contract", "token_contract", "donation_address", "org_funds", "burning", "seized_funds",
		"vote_contract",
	},
	DictIncidentTypes: {
		"blacklisted", "csam", "donation_scam", "investment_scam", "malware", "phishing", "ransomware", "scam",
		"terrorism_financing", "theft", "exploit", "hack",
	},
	DictNetworks: {"EVM", "BTC", "LTC", "TRX"},
	DictCategories: {
		"cefi_exchange", "defi", "payments", "custody", "lending", "staking", "derivatives", "infrastructure",
		"bridge", "privacy", "mining", "nft", "marketplace_general", "scam", "fraud", "phishing", "ransomware",
		"malware", "darknet", "csam",
	},
}

// DefaultDictionaries returns a fresh copy of the default vocabularies.
func DefaultDictionaries() map[Dictionary][]DictionaryEntry {
	out := make(map[Dictionary][]DictionaryEntry, len(defaultCodes))
	for dict, codes := range defaultCodes {
		entries := make([]DictionaryEntry, len(codes))
		for i, c := range codes {
			entries[i] = DictionaryEntry{Code: c, Title: c}
		}
		out[dict] = entries
	}
	return out
}
