package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidClient holds a Hyperliquid exchange handle used for info queries.
type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient creates a client signed by privateKeyHex. An empty key generates a
// throwaway key: candle snapshots are public and never signed.
func NewHyperliquidClient(ctx context.Context, privateKeyHex string, baseURL string) (*HyperliquidClient, error) {
	privateKey, err := loadOrGenerateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	pubECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}
	accountAddr := crypto.PubkeyToAddress(*pubECDSA).Hex()

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		ctx,
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func loadOrGenerateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	if privateKeyHex == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate hyperliquid key")
		}
		return key, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X"))
	if err != nil {
		return nil, errors.Wrap(err, "parse hyperliquid private key")
	}
	return key, nil
}

// Info returns the info API used for candle snapshots.
func (c *HyperliquidClient) Info() *hyperliquid.Info { return c.exchange.Info() }

// AccountAddress returns the address derived from the signing key.
func (c *HyperliquidClient) AccountAddress() string { return c.accountAddr }
