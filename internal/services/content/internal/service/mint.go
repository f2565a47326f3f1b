package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/decentrahub/hub/internal/pkg/events"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/pkg/wallet"
	"github.com/decentrahub/hub/internal/services/content/internal/minter"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const metadataVersion = "2.0.0"

type Category string

const (
	CategoryArticle Category = "Article"
	CategoryMusic   Category = "Music"
	CategoryVideo   Category = "Video"
	CategoryArt     Category = "Art"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryArticle, CategoryMusic, CategoryVideo, CategoryArt:
		return true
	}
	return false
}

type MintRequest struct {
	Title          string
	Description    string
	MediaIpfsURL   string
	MediaType      string
	Category       Category
	Tags           []string
	Price          decimal.Decimal
	CreatorAddress string
	// SessionWallet is the wallet of the authenticated caller.
	SessionWallet string
}

type MintResult struct {
	MetadataURL string
	Transaction minter.Result
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type MediaItem struct {
	Item string `json:"item"`
	Type string `json:"type,omitempty"`
}

// Metadata is the NFT metadata document pinned before minting.
type Metadata struct {
	Version      string      `json:"version"`
	MetadataID   string      `json:"metadata_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	ExternalURL  string      `json:"external_url"`
	Image        string      `json:"image,omitempty"`
	AnimationURL string      `json:"animation_url,omitempty"`
	Attributes   []Attribute `json:"attributes"`
	Media        []MediaItem `json:"media"`
	AppID        string      `json:"appId"`
}

type mintedPayload struct {
	CreatorAddress  string `json:"creatorAddress"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	Price           string `json:"price"`
	MetadataURL     string `json:"metadataUrl"`
	TransactionHash string `json:"transactionHash"`
	NftID           string `json:"nftId"`
}

// BuildMetadata assembles the metadata document for r under the given metadata id.
func (c *Content) BuildMetadata(id string, r MintRequest) Metadata {
	m := Metadata{
		Version:     metadataVersion,
		MetadataID:  id,
		Name:        r.Title,
		Description: r.Description,
		ExternalURL: strings.TrimSuffix(c.externalURL, "/") + "/nft/" + id,
		Attributes: []Attribute{
			{TraitType: "Category", Value: string(r.Category)},
			{TraitType: "Price", Value: r.Price.String()},
		},
		Media: []MediaItem{{Item: r.MediaIpfsURL, Type: r.MediaType}},
		AppID: c.appID,
	}

	if r.Category == CategoryArt || r.Category == CategoryVideo {
		m.Image = r.MediaIpfsURL
	}
	if r.Category == CategoryVideo || r.Category == CategoryMusic {
		m.AnimationURL = r.MediaIpfsURL
	}

	for _, tag := range r.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			m.Attributes = append(m.Attributes, Attribute{TraitType: "Tag", Value: tag})
		}
	}

	return m
}

func (r MintRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" ||
		strings.TrimSpace(r.Description) == "" ||
		strings.TrimSpace(r.MediaIpfsURL) == "" ||
		r.Category == "" ||
		strings.TrimSpace(r.CreatorAddress) == "" {
		return serr.BadRequest(nil, "Missing required fields for minting.")
	}

	if !r.Category.Valid() {
		return serr.BadRequest(nil, "Invalid category. Must be one of Article, Music, Video, Art.").With("category", string(r.Category))
	}

	if r.Price.IsNegative() {
		return serr.BadRequest(nil, "Price must not be negative.").With("price", r.Price.String())
	}

	return nil
}

// Mint pins the metadata of r and mints it as a Smart Media NFT for the creator.
func (c *Content) Mint(ctx context.Context, r MintRequest) (res MintResult, err error) {
	defer func() { c.outcome("mint", err) }()

	if err := r.validate(); err != nil {
		return MintResult{}, err
	}

	creator, err := wallet.Normalize(r.CreatorAddress)
	if err != nil {
		return MintResult{}, serr.BadRequest(err, "Invalid creator address.")
	}

	if !strings.EqualFold(creator, r.SessionWallet) {
		return MintResult{}, serr.NewServiceError(nil, http.StatusForbidden, "Creator address does not match the authenticated wallet.").
			With("creator", creator).
			With("session_wallet", r.SessionWallet)
	}

	meta := c.BuildMetadata("decentrahub-nft-"+uuid.NewString(), r)

	metaURL, err := c.pinner.PinJSON(ctx, meta)
	if err != nil {
		return MintResult{}, serr.NewServiceError(fmt.Errorf("pin metadata: %w", err), http.StatusBadGateway, "Failed to pin NFT metadata to IPFS.")
	}

	tx, err := c.minter.Mint(ctx, creator, metaURL)
	if err != nil {
		return MintResult{}, serr.NewServiceError(fmt.Errorf("mint: %w", err), http.StatusBadGateway, "Bonsai Smart Media minting failed.").
			With("metadata_url", metaURL)
	}

	c.publish(ctx, events.New(events.ContentMinted, creator, mintedPayload{
		CreatorAddress:  creator,
		Title:           r.Title,
		Category:        string(r.Category),
		Price:           r.Price.String(),
		MetadataURL:     metaURL,
		TransactionHash: tx.TransactionHash,
		NftID:           tx.NftID,
	}))

	slog.Info("content minted", "creator", creator, "metadata_url", metaURL, "tx", tx.TransactionHash)
	return MintResult{MetadataURL: metaURL, Transaction: tx}, nil
}
