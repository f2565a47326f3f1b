package rest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/decentrahub/hub/internal/pkg/middleware"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/decentrahub/hub/internal/pkg/testutil"
	"github.com/decentrahub/hub/internal/services/content/internal/minter"
	"github.com/decentrahub/hub/internal/services/content/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0xabcdef0123456789abcdef0123456789abcdef01"

type mockContentService struct {
	mintFunc        func(ctx context.Context, r service.MintRequest) (service.MintResult, error)
	uploadMediaFunc func(ctx context.Context, name string, r io.Reader) (string, error)
}

func (m *mockContentService) Mint(ctx context.Context, r service.MintRequest) (service.MintResult, error) {
	return m.mintFunc(ctx, r)
}

func (m *mockContentService) UploadMedia(ctx context.Context, name string, r io.Reader) (string, error) {
	return m.uploadMediaFunc(ctx, name, r)
}

// fakeAuth authenticates every request as wallet.
func fakeAuth() router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.ContextWithWallet(r.Context(), wallet)))
		})
	}
}

func newTestAPI(srv contentService, opts ...APIOption) *API {
	return NewAPI(append([]APIOption{WithContentService(srv), WithAuth(fakeAuth())}, opts...)...)
}

func TestPOSTMint(t *testing.T) {
	var got service.MintRequest
	srv := &mockContentService{mintFunc: func(ctx context.Context, r service.MintRequest) (service.MintResult, error) {
		got = r
		return service.MintResult{
			MetadataURL: "ipfs://QmMeta",
			Transaction: minter.Result{TransactionHash: "0xtx", NftID: "BonsaiNFT-1"},
		}, nil
	}}

	rec := testutil.SendRequest(t, newTestAPI(srv), "POST", "/content/mint", `{
		"title": "Night Drive",
		"description": "synthwave",
		"mediaIpfsUrl": "ipfs://QmMedia",
		"mediaType": "audio/mpeg",
		"category": "Music",
		"tags": ["synth"],
		"price": 12.5,
		"creatorAddress": "`+wallet+`"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, wallet, got.SessionWallet)
	assert.Equal(t, service.CategoryMusic, got.Category)
	assert.Equal(t, "12.5", got.Price.String())
	assert.Equal(t, []string{"synth"}, got.Tags)

	resp := testutil.ParseResponse[mintResponse](t, rec)
	assert.Equal(t, `Content "Night Drive" minted successfully as a Smart Media NFT!`, resp.Message)
	assert.Equal(t, "ipfs://QmMeta", resp.NftMetadataURL)
	assert.Equal(t, "0xtx", resp.BonsaiTransaction.TransactionHash)
}

func TestPOSTMint_PriceAsString(t *testing.T) {
	srv := &mockContentService{mintFunc: func(ctx context.Context, r service.MintRequest) (service.MintResult, error) {
		assert.Equal(t, "0.05", r.Price.String())
		return service.MintResult{}, nil
	}}

	rec := testutil.SendRequest(t, newTestAPI(srv), "POST", "/content/mint", `{"title":"x","price":"0.05"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPOSTMint_Errors(t *testing.T) {
	tbl := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed", `{"title":`, nil, http.StatusBadRequest},
		{"bad price", `{"price":"abc"}`, nil, http.StatusBadRequest},
		{"validation", `{}`, serr.BadRequest(nil, "Missing required fields for minting."), http.StatusBadRequest},
		{"forbidden", `{}`, serr.NewServiceError(nil, http.StatusForbidden, "nope"), http.StatusForbidden},
		{"upstream", `{}`, serr.NewServiceError(nil, http.StatusBadGateway, "Failed to pin NFT metadata to IPFS."), http.StatusBadGateway},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			srv := &mockContentService{mintFunc: func(ctx context.Context, r service.MintRequest) (service.MintResult, error) {
				return service.MintResult{}, c.err
			}}

			rec := testutil.SendRequest(t, newTestAPI(srv), "POST", "/content/mint", c.body)
			assert.Equal(t, c.status, rec.Code)
		})
	}
}

func TestPOSTMedia(t *testing.T) {
	var gotName, gotData string
	srv := &mockContentService{uploadMediaFunc: func(ctx context.Context, name string, r io.Reader) (string, error) {
		b, _ := io.ReadAll(r)
		gotName, gotData = name, string(b)
		return "ipfs://QmFile", nil
	}}

	rec := testutil.SendFile(t, newTestAPI(srv), "POST", "/content/media", testutil.TestFile{
		Name:      "cover.png",
		FieldName: "file",
		Content:   strings.NewReader("image bytes"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "cover.png", gotName)
	assert.Equal(t, "image bytes", gotData)
	assert.Equal(t, "ipfs://QmFile", testutil.ParseResponse[uploadMediaResponse](t, rec).IpfsURL)
}

func TestPOSTMedia_MissingFile(t *testing.T) {
	rec := testutil.SendFile(t, newTestAPI(&mockContentService{}), "POST", "/content/media", testutil.TestFile{
		Name:      "cover.png",
		FieldName: "image",
		Content:   strings.NewReader("x"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPOSTMedia_ServiceError(t *testing.T) {
	srv := &mockContentService{uploadMediaFunc: func(ctx context.Context, name string, r io.Reader) (string, error) {
		return "", serr.NewServiceError(nil, http.StatusRequestEntityTooLarge, "Media size exceeded.")
	}}

	rec := testutil.SendFile(t, newTestAPI(srv), "POST", "/content/media", testutil.TestFile{
		Name:      "big.png",
		FieldName: "file",
		Content:   strings.NewReader("x"),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAPI_RequiresAuth(t *testing.T) {
	key := []byte("test-session-key")
	api := NewAPI(WithContentService(&mockContentService{}), WithAuth(middleware.Auth(key)))

	rec := testutil.SendRequest(t, api, "POST", "/content/mint", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewAPI_Panics(t *testing.T) {
	assert.Panics(t, func() { NewAPI(WithAuth(fakeAuth())) })
	assert.Panics(t, func() { NewAPI(WithContentService(&mockContentService{})) })
}
