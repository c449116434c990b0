package core

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Address checks are shape checks only; checksums are not verified.
// Networks without a rule are accepted as-is so new networks can be added
// to the dictionary before a format rule exists for them.
var addressRules = map[string]struct {
	pattern *regexp.Regexp
	message string
}{
	"EVM": {regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`), "EVM address must start with 0x and be 42 chars."},
	"BTC": {regexp.MustCompile(`^(bc1|[13])[A-Za-z0-9]{25,39}$`), "BTC address format looks invalid."},
	"LTC": {regexp.MustCompile(`^(ltc1|[LM3])[A-Za-z0-9]{25,39}$`), "LTC address format looks invalid."},
	"TRX": {regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`), "TRX address format looks invalid."},
}

var networkAliases = map[string]string{"TRON": "TRX"}

// ValidateAddress checks address against the rule for network. The network
// code is matched case-insensitively. A nil error means the address passes.
func ValidateAddress(network, address string) error {
	code := strings.ToUpper(strings.TrimSpace(network))
	if alias, ok := networkAliases[code]; ok {
		code = alias
	}
	rule, ok := addressRules[code]
	if !ok {
		return nil
	}
	if !rule.pattern.MatchString(address) {
		return errors.New(rule.message)
	}
	return nil
}
