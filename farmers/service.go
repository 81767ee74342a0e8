// Package farmers wraps the farmer directory and adoption endpoints. The
// directory listings adopters browse are hot and change slowly, so List
// reads through a short-TTL cache.
package farmers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	adopt "github.com/adopt-a-farmer/client-go"
	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/log"
)

// DefaultListTTL is how long a directory page stays cached.
const DefaultListTTL = 30 * time.Second

// Service calls the farmer and adoption endpoints through the
// session-aware HTTP client.
type Service struct {
	baseURL string
	client  *http.Client
	cache   *ttlcache.Cache[string, []domain.Farmer]
	logger  log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger.
func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithListTTL overrides the directory cache TTL.
func WithListTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = newListCache(ttl)
	}
}

func newListCache(ttl time.Duration) *ttlcache.Cache[string, []domain.Farmer] {
	return ttlcache.New(
		ttlcache.WithTTL[string, []domain.Farmer](ttl),
		ttlcache.WithDisableTouchOnHit[string, []domain.Farmer](),
	)
}

// NewService creates a farmers client. client should wrap the session
// transport so adoption calls carry the bearer token.
func NewService(baseURL string, client *http.Client, opts ...Option) *Service {
	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cache:   newListCache(DefaultListTTL),
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.cache.Start()
	return s
}

// Close stops the cache janitor.
func (s *Service) Close() error {
	s.cache.Stop()
	return nil
}

// ListOptions filter and page the farmer directory.
type ListOptions struct {
	Page         int
	PerPage      int
	County       string
	CropType     string
	VerifiedOnly bool
}

// query renders the options the way the backend expects them.
func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(o.PerPage))
	}
	if o.County != "" {
		q.Set("county", o.County)
	}
	if o.CropType != "" {
		q.Set("cropType", o.CropType)
	}
	if o.VerifiedOnly {
		q.Set("verified", "true")
	}
	return q
}

// List fetches a directory page, serving repeats from cache until the TTL
// lapses.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]domain.Farmer, error) {
	key := opts.query().Encode()
	if item := s.cache.Get(key); item != nil {
		s.logger.Debug(ctx, "farmer listing served from cache", map[string]interface{}{"key": key})
		return item.Value(), nil
	}

	var out struct {
		Data []domain.Farmer `json:"data"`
	}
	if err := s.getJSON(ctx, "/farmers", opts.query(), &out); err != nil {
		return nil, err
	}

	s.cache.Set(key, out.Data, ttlcache.DefaultTTL)
	return out.Data, nil
}

// Get fetches one farmer by ID. Never cached; detail pages want the live
// funding numbers.
func (s *Service) Get(ctx context.Context, id string) (*domain.Farmer, error) {
	var out struct {
		Data domain.Farmer `json:"data"`
	}
	if err := s.getJSON(ctx, "/farmers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// InvalidateListings drops every cached directory page, e.g. after an
// admin verifies a farmer.
func (s *Service) InvalidateListings() {
	s.cache.DeleteAll()
}

// AdoptionRequest is the POST /adoptions payload.
type AdoptionRequest struct {
	FarmerID            string `json:"farmerId"`
	MonthlyContribution int64  `json:"monthlyContribution"`
	Currency            string `json:"currency"`
	Message             string `json:"message,omitempty"`
}

// CreateAdoption starts an adoption for the current user.
func (s *Service) CreateAdoption(ctx context.Context, req AdoptionRequest) (*domain.Adoption, error) {
	if req.FarmerID == "" {
		return nil, fmt.Errorf("adoption requires a farmer id")
	}
	if req.MonthlyContribution <= 0 {
		return nil, fmt.Errorf("adoption requires a positive contribution")
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/adoptions", strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out struct {
		Data domain.Adoption `json:"data"`
	}
	if err := s.send(httpReq, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ListAdoptions returns the current user's adoptions.
func (s *Service) ListAdoptions(ctx context.Context) ([]domain.Adoption, error) {
	var out struct {
		Data []domain.Adoption `json:"data"`
	}
	if err := s.getJSON(ctx, "/adoptions", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (s *Service) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return s.send(req, out)
}

func (s *Service) send(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &adopt.APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
