package state

import (
	"encoding/hex"
	"fmt"
)

const (
	assetPrefix   = "asset/"
	assetListKey  = "asset/index"
	accountPrefix = "account/"
	intentPrefix  = "intent/"
	auctionPrefix = "auction/"
	escrowPrefix  = "vault/escrow/"
	bondPrefix    = "vault/bond/"
)

func assetKey(symbol string) []byte {
	return []byte(assetPrefix + symbol)
}

func accountKey(addr []byte) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr))
}

func intentKey(id [32]byte) []byte {
	return []byte(intentPrefix + hex.EncodeToString(id[:]))
}

func auctionKey(id [32]byte) []byte {
	return []byte(auctionPrefix + hex.EncodeToString(id[:]))
}

func escrowKey(intentID [32]byte, asset string) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", escrowPrefix, hex.EncodeToString(intentID[:]), asset))
}

func bondKey(auctionID [32]byte, solver [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", bondPrefix, hex.EncodeToString(auctionID[:]), hex.EncodeToString(solver[:])))
}
