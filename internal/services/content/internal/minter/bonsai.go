// Package minter mints Smart Media NFTs. Bonsai has no Go SDK, so Bonsai simulates
// the protocol: it validates the request and derives a transaction hash without
// touching the chain.
package minter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/wallet"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidMetadataURL = errors.New("metadata url must be an ipfs:// url")

type Result struct {
	TransactionHash string `json:"transactionHash"`
	NftID           string `json:"nftId"`
	Message         string `json:"message"`
}

type Bonsai struct {
	now     func() time.Time
	metrics *metrics.Metrics
}

type BonsaiOption func(*Bonsai) *Bonsai

func WithMetrics(m *metrics.Metrics) BonsaiOption {
	return func(b *Bonsai) *Bonsai {
		b.metrics = m
		return b
	}
}

func WithClock(now func() time.Time) BonsaiOption {
	return func(b *Bonsai) *Bonsai {
		b.now = now
		return b
	}
}

func NewBonsai(opts ...BonsaiOption) *Bonsai {
	b := &Bonsai{now: time.Now}
	for _, opt := range opts {
		b = opt(b)
	}
	return b
}

// Mint records metadataURL as a Smart Media NFT owned by creator.
func (b *Bonsai) Mint(ctx context.Context, creator, metadataURL string) (res Result, err error) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.ObserveUpstream("bonsai", start, err)
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	owner, err := wallet.Normalize(creator)
	if err != nil {
		return Result{}, fmt.Errorf("creator: %w", err)
	}

	cid, ok := strings.CutPrefix(metadataURL, "ipfs://")
	if !ok || cid == "" {
		return Result{}, ErrInvalidMetadataURL
	}

	ts := strconv.FormatInt(b.now().UnixNano(), 10)
	hash := crypto.Keccak256Hash([]byte(owner), []byte(cid), []byte(ts))

	return Result{
		TransactionHash: hash.Hex(),
		NftID:           "BonsaiNFT-" + strconv.FormatUint(hash.Big().Uint64()%1_000_000, 10),
		Message:         "Smart Media NFT minted successfully via Bonsai (simulated).",
	}, nil
}
