// Package remote talks to the catalog API (auth, collections, products, filters)
// and to the save endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

const (
	DefaultTimeout = 20 * time.Second

	// embedded status codes
	authSuccessStatus = 0
	dataSuccessStatus = 200

	maxBodyBytes = 8 << 20
)

type Client struct {
	baseURL     string
	saveURL     string
	secretToken string
	http        *http.Client
	logger      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithSaveURL points SubmitOrder at the save service. Defaults to the catalog base URL.
func WithSaveURL(u string) Option {
	return func(cl *Client) { cl.saveURL = strings.TrimRight(u, "/") }
}

func WithLogger(lg *zap.Logger) Option {
	return func(cl *Client) { cl.logger = lg }
}

func NewClient(baseURL, secretToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretToken: secretToken,
		http:        &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.saveURL == "" {
		c.saveURL = c.baseURL
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.TokenGrant, error) {
	body := map[string]string{"username": username, "password": password}
	grant, err := c.authCall(ctx, "login", "/Auth/Login", body)
	if errors.Is(err, errEmbeddedFailure) {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, err)
	}
	return grant, err
}

// Refresh exchanges the refresh token for a new pair. An embedded failure status is
// reported as domain.ErrRefreshRejected even when the HTTP status is 200.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	body := map[string]string{"refreshToken": refreshToken}
	grant, err := c.authCall(ctx, "refresh token", "/Auth/RefreshTokenLogin", body)
	if errors.Is(err, errEmbeddedFailure) {
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshRejected, err)
	}
	return grant, err
}

var errEmbeddedFailure = errors.New("remote reported failure")

func (c *Client) authCall(ctx context.Context, op, path string, body any) (*domain.TokenGrant, error) {
	resp, err := c.do(ctx, op, http.MethodPost, c.baseURL+path, c.secretAuth, body)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New(http.StatusText(resp.status))}
	}

	env, err := parseEnvelope(op, resp)
	if err != nil {
		return nil, err
	}
	if env.status != authSuccessStatus || !env.hasData() {
		return nil, fmt.Errorf("%w: status %d: %s", errEmbeddedFailure, env.status, env.message)
	}

	var grant domain.TokenGrant
	if err := json.Unmarshal([]byte(env.data.Raw), &grant); err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode token grant: %w", err)}
	}
	return &grant, nil
}

// ListCollections returns one page of the collection list.
func (c *Client) ListCollections(ctx context.Context, accessToken string, page, pageSize int) ([]domain.Collection, *domain.CollectionListMeta, error) {
	const op = "list collections"
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	resp, err := c.do(ctx, op, http.MethodGet, c.baseURL+"/Collection/GetAll?"+q.Encode(), bearer(accessToken), nil)
	if err != nil {
		return nil, nil, err
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, nil, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New(http.StatusText(resp.status))}
	}
	if !gjson.ValidBytes(resp.body) {
		return nil, nil, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New("invalid JSON body")}
	}

	// The list is served either bare ({meta, data}) or inside the usual envelope.
	root := gjson.ParseBytes(resp.body)
	if !root.Get("meta").Exists() && root.Get("data.meta").Exists() {
		root = root.Get("data")
	}

	var meta domain.CollectionListMeta
	if m := root.Get("meta"); m.Exists() {
		if err := json.Unmarshal([]byte(m.Raw), &meta); err != nil {
			return nil, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode meta: %w", err)}
		}
	}
	collections := []domain.Collection{}
	if d := root.Get("data"); d.IsArray() {
		if err := json.Unmarshal([]byte(d.Raw), &collections); err != nil {
			return nil, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode collections: %w", err)}
		}
	}
	return collections, &meta, nil
}

type productsRequest struct {
	AdditionalFilters []domain.AdditionalFilter `json:"additionalFilters"`
	Page              int                       `json:"page"`
	PageSize          int                       `json:"pageSize"`
}

// FetchProductsPage returns one page of the collection's products under filters.
func (c *Client) FetchProductsPage(ctx context.Context, accessToken string, collectionID int64, filters domain.FilterSet, page, pageSize int) (*domain.ProductPage, error) {
	const op = "fetch products"
	body := productsRequest{
		AdditionalFilters: filters.Filters,
		Page:              page,
		PageSize:          pageSize,
	}
	if body.AdditionalFilters == nil {
		body.AdditionalFilters = []domain.AdditionalFilter{}
	}

	endpoint := fmt.Sprintf("%s/Collection/%d/GetProductsForConstants", c.baseURL, collectionID)
	data, err := c.dataCall(ctx, op, http.MethodPost, endpoint, accessToken, body)
	if err != nil {
		return nil, err
	}

	result := &domain.ProductPage{
		Items:      []domain.Product{},
		TotalCount: int(data.Get("meta.totalProduct").Int()),
		Page:       page,
		PageSize:   pageSize,
	}
	if p := data.Get("meta.page"); p.Exists() {
		result.Page = int(p.Int())
	}
	if ps := data.Get("meta.pageSize"); ps.Exists() && ps.Int() > 0 {
		result.PageSize = int(ps.Int())
	}
	if items := data.Get("data"); items.IsArray() {
		if err := json.Unmarshal([]byte(items.Raw), &result.Items); err != nil {
			return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode products: %w", err)}
		}
	}
	return result, nil
}

// FetchCollectionFilters returns the filter dimensions offered for a collection.
func (c *Client) FetchCollectionFilters(ctx context.Context, accessToken string, collectionID int64) ([]domain.Filter, error) {
	const op = "fetch filters"
	endpoint := fmt.Sprintf("%s/Collection/%d/GetFiltersForConstants", c.baseURL, collectionID)
	data, err := c.dataCall(ctx, op, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}

	filters := []domain.Filter{}
	if data.IsArray() {
		if err := json.Unmarshal([]byte(data.Raw), &filters); err != nil {
			return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode filters: %w", err)}
		}
	}
	return filters, nil
}

// SubmitOrder posts the derived payload to the save endpoint. A 4xx answer or an embedded
// failure status is a *domain.SaveRejectedError carrying the remote message verbatim.
func (c *Client) SubmitOrder(ctx context.Context, accessToken string, req domain.SaveRequest) (*domain.SaveResult, error) {
	const op = "submit order"
	endpoint := fmt.Sprintf("%s/api/collections/%d/save", c.saveURL, req.CollectionID)

	resp, err := c.do(ctx, op, http.MethodPost, endpoint, bearer(accessToken), req)
	if err != nil {
		return nil, err
	}
	if resp.status >= 500 {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New(http.StatusText(resp.status))}
	}

	if !gjson.ValidBytes(resp.body) {
		if resp.status >= 400 {
			return nil, &domain.SaveRejectedError{Status: resp.status, Message: strings.TrimSpace(string(resp.body))}
		}
		return nil, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New("invalid JSON body")}
	}
	env, err := parseEnvelope(op, resp)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 || env.status != dataSuccessStatus || !env.hasData() {
		status := int(env.status)
		if resp.status >= 400 {
			status = resp.status
		}
		return nil, &domain.SaveRejectedError{Status: status, Message: env.message}
	}

	var result domain.SaveResult
	if err := json.Unmarshal([]byte(env.data.Raw), &result); err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode save result: %w", err)}
	}
	return &result, nil
}

func (c *Client) dataCall(ctx context.Context, op, method, endpoint, accessToken string, body any) (gjson.Result, error) {
	resp, err := c.do(ctx, op, method, endpoint, bearer(accessToken), body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.status < 200 || resp.status > 299 {
		return gjson.Result{}, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New(http.StatusText(resp.status))}
	}

	env, err := parseEnvelope(op, resp)
	if err != nil {
		return gjson.Result{}, err
	}
	if env.status != dataSuccessStatus || !env.hasData() {
		return gjson.Result{}, &domain.TransportError{
			Op:         op,
			StatusCode: resp.status,
			Err:        fmt.Errorf("%w: status %d: %s", errEmbeddedFailure, env.status, env.message),
		}
	}
	return env.data, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, authorize func(*http.Request), body any) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	authorize(req)

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote call failed", zap.String("op", op), zap.Error(err))
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: res.StatusCode, Err: err}
	}

	c.logger.Debug("remote call",
		zap.String("op", op),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return &response{status: res.StatusCode, body: raw}, nil
}

func (c *Client) secretAuth(req *http.Request) {
	req.Header.Set("Authorization", c.secretToken)
}

func bearer(accessToken string) func(*http.Request) {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	return token.SetAuthHeader
}

type envelope struct {
	status  int64
	message string
	data    gjson.Result
}

func (e envelope) hasData() bool {
	return e.data.Exists() && e.data.Type != gjson.Null
}

func parseEnvelope(op string, resp *response) (envelope, error) {
	if !gjson.ValidBytes(resp.body) {
		return envelope{}, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New("invalid JSON body")}
	}
	fields := gjson.GetManyBytes(resp.body, "status", "message", "data")
	if !fields[0].Exists() {
		return envelope{}, &domain.TransportError{Op: op, StatusCode: resp.status, Err: errors.New("response has no status field")}
	}
	return envelope{status: fields[0].Int(), message: fields[1].String(), data: fields[2]}, nil
}

var (
	_ ports.AuthAPI    = (*Client)(nil)
	_ ports.CatalogAPI = (*Client)(nil)
)
