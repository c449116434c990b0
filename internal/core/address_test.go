package core

import "testing"

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		network string
		address string
		wantErr string
	}{
		{name: "evm ok", network: "EVM", address: "0x52908400098527886E0F7030069857D2E4169EE7"},
		{name: "evm lowercase network", network: "evm", address: "0x52908400098527886e0f7030069857d2e4169ee7"},
		{name: "evm short", network: "EVM", address: "0xdead", wantErr: "EVM address must start with 0x and be 42 chars."},
		{name: "evm no prefix", network: "EVM", address: "52908400098527886E0F7030069857D2E4169EE7AA", wantErr: "EVM address must start with 0x and be 42 chars."},
		{name: "evm non hex", network: "EVM", address: "0xZZ908400098527886E0F7030069857D2E4169EE7", wantErr: "EVM address must start with 0x and be 42 chars."},
		{name: "btc legacy", network: "BTC", address: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"},
		{name: "btc p2sh", network: "BTC", address: "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"},
		{name: "btc bech32", network: "BTC", address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"},
		{name: "btc bad", network: "BTC", address: "dead", wantErr: "BTC address format looks invalid."},
		{name: "ltc legacy", network: "LTC", address: "LVg2kJoFNg45Nbpy53h7Fe1wKyeXVRhMH9"},
		{name: "ltc bech32", network: "LTC", address: "ltc1qg42tkwuuxefutzxezdkdel39gfstuap288mfea"},
		{name: "ltc bad", network: "LTC", address: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", wantErr: "LTC address format looks invalid."},
		{name: "trx ok", network: "TRX", address: "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7"},
		{name: "tron alias", network: "TRON", address: "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7"},
		{name: "trx bad alphabet", network: "TRX", address: "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYj00", wantErr: "TRX address format looks invalid."},
		{name: "unknown network accepted", network: "SOL", address: "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.network, tt.address)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateAddress(%q, %q) = %v, want nil", tt.network, tt.address, err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("ValidateAddress(%q, %q) = %v, want %q", tt.network, tt.address, err, tt.wantErr)
			}
		})
	}
}
