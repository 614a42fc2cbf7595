package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "static-secret", WithLogger(zaptest.NewLogger(t)))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestLogin(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Auth/Login", r.URL.Path)
		assert.Equal(t, "static-secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			writeJSON(w, http.StatusOK, `{"status":1,"message":"Invalid credentials","data":null}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"status":0,"message":null,"data":{"accessToken":"a1","refreshToken":"r1","expiresIn":3600,"refreshExpiresIn":7200,"tokenType":"Bearer"}}`)
	})

	grant, err := client.Login(context.Background(), "op@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, &domain.TokenGrant{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 3600, RefreshExpiresIn: 7200, TokenType: "Bearer"}, grant)

	_, err = client.Login(context.Background(), "op@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantAccess string
	}{
		{
			name:       "success",
			status:     http.StatusOK,
			body:       `{"status":0,"data":{"accessToken":"a2","refreshToken":"r2","expiresIn":3600}}`,
			wantAccess: "a2",
		},
		{
			name:    "embedded failure with 200",
			status:  http.StatusOK,
			body:    `{"status":401,"message":"Refresh token expired","data":null}`,
			wantErr: domain.ErrRefreshRejected,
		},
		{
			name:    "success status without data",
			status:  http.StatusOK,
			body:    `{"status":0,"message":"OK"}`,
			wantErr: domain.ErrRefreshRejected,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: domain.ErrTransport,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: domain.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/Auth/RefreshTokenLogin", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})

			grant, err := client.Refresh(context.Background(), "r1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, grant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, grant.AccessToken)
		})
	}
}

func TestListCollections(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Collection/GetAll", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{
			"meta":{"page":2,"pageSize":10,"totalCount":11,"totalPages":2,"hasPreviousPage":true,"hasNextPage":false},
			"data":[{"id":5,"type":0,"salesChannelId":1,"filters":{"useOrLogic":true,"filters":null},"info":{"id":5,"name":"Summer","description":"","url":"summer","langCode":"en"}}]
		}`)
	})

	collections, meta, err := client.ListCollections(context.Background(), "a1", 2, 10)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, int64(5), collections[0].ID)
	assert.Equal(t, "Summer", collections[0].Info.Name)
	assert.True(t, collections[0].Filters.UseOrLogic)
	assert.Equal(t, 11, meta.TotalCount)
	assert.False(t, meta.HasNextPage)
}

func TestFetchProductsPage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Collection/7/GetProductsForConstants", r.URL.Path)
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))

		var body productsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 2, body.Page)
		assert.Equal(t, 36, body.PageSize)
		assert.Equal(t, []domain.AdditionalFilter{{ID: "color", Value: "red", ComparisonType: 0}}, body.AdditionalFilters)

		writeJSON(w, http.StatusOK, `{"status":200,"message":"OK","data":{
			"meta":{"page":2,"pageSize":36,"totalProduct":40},
			"data":[{"productCode":"P1","colorCode":"01","name":null,"outOfStock":false,"isSaleB2B":true,"imageUrl":"https://img/p1.jpg"}]
		}}`)
	})

	filters := domain.FilterSet{Filters: []domain.AdditionalFilter{{ID: "color", Value: "red"}}}
	page, err := client.FetchProductsPage(context.Background(), "a1", 7, filters, 2, 36)
	require.NoError(t, err)
	assert.Equal(t, 40, page.TotalCount)
	assert.Equal(t, 36, page.Offset())
	require.Len(t, page.Items, 1)
	assert.Equal(t, domain.NewVariantKey("P1", "01"), page.Items[0].Key())
	assert.Nil(t, page.Items[0].Name)
	assert.True(t, page.Items[0].IsSaleB2B)
}

func TestFetchProductsPageEmbeddedFailure(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":500,"message":"Upstream timeout","data":null}`)
	})

	_, err := client.FetchProductsPage(context.Background(), "a1", 7, domain.FilterSet{}, 1, 36)
	var transport *domain.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "fetch products", transport.Op)
	assert.Contains(t, err.Error(), "Upstream timeout")
}

func TestFetchCollectionFilters(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/Collection/7/GetFiltersForConstants", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":200,"data":[{"id":"color","title":"Color","values":[{"value":"red","valueName":"Red"}],"currency":null,"comparisonType":0}]}`)
	})

	filters, err := client.FetchCollectionFilters(context.Background(), "a1", 7)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, "Color", filters[0].Title)
	require.Len(t, filters[0].Values, 1)
	assert.Equal(t, "Red", *filters[0].Values[0].ValueName)
}

func TestSubmitOrder(t *testing.T) {
	req := domain.SaveRequest{
		CollectionID: 7,
		Products:     []domain.PayloadEntry{{ProductCode: "P1", ColorCode: "01", Position: 1}},
	}

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "accepted",
			status: http.StatusOK,
			body:   `{"status":200,"message":"OK","data":{"collectionId":7,"updatedProductsCount":1,"updatedAt":"2026-03-01T10:00:00Z","saveId":"01J"}}`,
		},
		{
			name:    "validation failure",
			status:  http.StatusBadRequest,
			body:    `{"status":400,"message":"Invalid product structure"}`,
			wantErr: domain.ErrSaveRejected,
		},
		{
			name:    "embedded failure",
			status:  http.StatusOK,
			body:    `{"status":409,"message":"Collection locked"}`,
			wantErr: domain.ErrSaveRejected,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"status":500,"message":"Internal server error"}`,
			wantErr: domain.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/collections/7/save", r.URL.Path)
				assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
				var got domain.SaveRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, req, got)
				writeJSON(w, tt.status, tt.body)
			})

			result, err := client.SubmitOrder(context.Background(), "a1", req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, result.UpdatedProductsCount)
			assert.Equal(t, "01J", result.SaveID)
		})
	}
}

func TestSubmitOrderRejectionMessageVerbatim(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"status":400,"message":"Invalid product structure"}`)
	})

	_, err := client.SubmitOrder(context.Background(), "a1", domain.SaveRequest{CollectionID: 7, Products: []domain.PayloadEntry{}})
	var rejected *domain.SaveRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
	assert.Equal(t, "Invalid product structure", rejected.Message)
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL, "s")

	_, err := client.FetchCollectionFilters(context.Background(), "a1", 7)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
