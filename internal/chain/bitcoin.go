package chain

import "github.com/btcsuite/btcd/chaincfg"

func init() {
	Register("BTC", Mainnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin",
		Decimals: 8,
		Net:      &chaincfg.MainNetParams,
	})

	// testnet3 keeps the tb prefix shared with testnet4 and signet
	Register("BTC", Testnet, &Params{
		Symbol:   "BTC",
		Name:     "Bitcoin Testnet",
		Decimals: 8,
		Net:      &chaincfg.TestNet3Params,
	})
}
