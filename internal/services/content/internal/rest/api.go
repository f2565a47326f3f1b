package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/middleware"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/services/content/internal/minter"
	"github.com/decentrahub/hub/internal/services/content/internal/service"
	"github.com/shopspring/decimal"
)

// multipartOverhead is added to the media size limit to leave room for form headers.
const multipartOverhead = 1 << 20

type contentService interface {
	Mint(ctx context.Context, r service.MintRequest) (service.MintResult, error)
	UploadMedia(ctx context.Context, name string, r io.Reader) (string, error)
}

type APIOption func(*API) *API

func WithContentService(srv contentService) APIOption {
	return func(api *API) *API {
		api.srv = srv
		return api
	}
}

func WithMaxMediaSize(size int64) APIOption {
	return func(api *API) *API {
		api.maxMediaSize = size
		return api
	}
}

// WithAuth sets the middleware that authenticates every content route.
func WithAuth(mw router.Middleware) APIOption {
	return func(api *API) *API {
		api.auth = mw
		return api
	}
}

type API struct {
	srv          contentService
	maxMediaSize int64
	auth         router.Middleware
	mux          *router.Router
}

func NewAPI(opts ...APIOption) *API {
	api := &API{
		maxMediaSize: 50 << 20,
		mux:          router.New(),
	}

	for _, opt := range opts {
		api = opt(api)
	}

	if api.srv == nil {
		panic("content service is required")
	}

	if api.auth == nil {
		panic("auth middleware is required")
	}

	api.mount()
	return api
}

func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.mux.ServeHTTP(w, r)
}

func (api *API) mount() {
	api.mux.Use(api.auth)
	api.mux.HandleFunc("POST /content/mint", api.handleMint)
	api.mux.HandleFunc("POST /content/media", api.handleUploadMedia)
}

type mintRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	MediaIpfsURL   string          `json:"mediaIpfsUrl"`
	MediaType      string          `json:"mediaType"`
	Category       string          `json:"category"`
	Tags           []string        `json:"tags"`
	Price          decimal.Decimal `json:"price"`
	CreatorAddress string          `json:"creatorAddress"`
}

type mintResponse struct {
	Message           string        `json:"message"`
	NftMetadataURL    string        `json:"nftMetadataUrl"`
	BonsaiTransaction minter.Result `json:"bonsaiTransaction"`
}

func (api *API) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, serr.BadRequest(err, "Invalid request body."))
		return
	}

	res, err := api.srv.Mint(r.Context(), service.MintRequest{
		Title:          req.Title,
		Description:    req.Description,
		MediaIpfsURL:   req.MediaIpfsURL,
		MediaType:      req.MediaType,
		Category:       service.Category(req.Category),
		Tags:           req.Tags,
		Price:          req.Price,
		CreatorAddress: req.CreatorAddress,
		SessionWallet:  middleware.WalletFromContext(r.Context()),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusCreated, mintResponse{
		Message:           fmt.Sprintf("Content %q minted successfully as a Smart Media NFT!", req.Title),
		NftMetadataURL:    res.MetadataURL,
		BonsaiTransaction: res.Transaction,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type uploadMediaResponse struct {
	IpfsURL string `json:"ipfsUrl"`
}

func (api *API) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.maxMediaSize+multipartOverhead)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpx.HandleErr(w, r, mediaFormErr(err))
		return
	}
	defer f.Close()

	url, err := api.srv.UploadMedia(r.Context(), hdr.Filename, f)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusCreated, uploadMediaResponse{IpfsURL: url})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

func mediaFormErr(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return serr.NewServiceError(err, http.StatusRequestEntityTooLarge, "Media size exceeded.")
	}
	return serr.BadRequest(err, "Invalid media file.")
}
