package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/codefionn/bookshelf/internal/consts"
	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/codefionn/bookshelf/internal/metrics"
	"github.com/codefionn/bookshelf/internal/securemem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/codefionn/bookshelf/internal/catalog"

// maxErrorBody caps how much of a failed response is kept in a ResponseError.
const maxErrorBody = 512

// GoogleBooks implements Catalog against the Google Books volumes API.
type GoogleBooks struct {
	baseURL string
	apiKey  *securemem.Secret
	client  *http.Client
	metrics *metrics.Metrics
	tracer  trace.Tracer
	log     *logger.Logger
}

// GoogleBooksOption configures a GoogleBooks client.
type GoogleBooksOption func(*GoogleBooks)

// WithBaseURL points the client at another volumes endpoint (tests, proxies).
func WithBaseURL(baseURL string) GoogleBooksOption {
	return func(g *GoogleBooks) {
		if baseURL != "" {
			g.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) GoogleBooksOption {
	return func(g *GoogleBooks) {
		g.client = client
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) GoogleBooksOption {
	return func(g *GoogleBooks) {
		g.client.Timeout = timeout
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) GoogleBooksOption {
	return func(g *GoogleBooks) {
		g.metrics = m
	}
}

// NewGoogleBooks creates a Google Books client authenticated with apiKey.
func NewGoogleBooks(apiKey *securemem.Secret, opts ...GoogleBooksOption) *GoogleBooks {
	g := &GoogleBooks{
		baseURL: consts.GoogleBooksURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: consts.DefaultCatalogTimeout},
		tracer:  otel.Tracer(tracerName),
		log:     logger.Global().WithPrefix("catalog"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// googleBooksResponse is the volumes search payload.
type googleBooksResponse struct {
	TotalItems int                `json:"totalItems"`
	Items      []googleBooksVolume `json:"items"`
}

type googleBooksVolume struct {
	ID         string                `json:"id"`
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksVolumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description"`
	PageCount     int      `json:"pageCount"`
	PublishedDate string   `json:"publishedDate"`
	Categories    []string `json:"categories"`
	AverageRating float64  `json:"averageRating"`
	RatingsCount  int      `json:"ratingsCount"`
}

// Search performs one paged volumes query.
func (g *GoogleBooks) Search(ctx context.Context, req book.SearchRequest, page int) ([]book.Book, error) {
	if page < 0 {
		return nil, &RequestError{Op: "search", Err: fmt.Errorf("negative page %d", page)}
	}

	terms := req.Terms()
	if len(terms) == 0 {
		return nil, &RequestError{Op: "search", Err: book.ErrEmptyRequest}
	}
	escaped := make([]string, len(terms))
	for i, term := range terms {
		escaped[i] = url.QueryEscape(term)
	}

	params := url.Values{}
	if page > 0 {
		params.Set("startIndex", strconv.Itoa(page*book.PageSize))
	}
	params.Set("maxResults", strconv.Itoa(book.PageSize))
	params.Set("key", g.apiKey.String())

	// The field terms are joined with a literal '+', which url.Values would escape.
	fullURL := fmt.Sprintf("%s?q=%s&%s", g.baseURL, strings.Join(escaped, "+"), params.Encode())

	var resp googleBooksResponse
	if err := g.get(ctx, "search", fullURL, &resp); err != nil {
		return nil, err
	}

	books := make([]book.Book, 0, len(resp.Items))
	for _, item := range resp.Items {
		books = append(books, book.Book{
			ID:      item.ID,
			Title:   item.VolumeInfo.Title,
			Authors: item.VolumeInfo.Authors,
		})
	}
	g.log.Debug("search %q page %d: %d of %d results", req.Query(), page, len(books), resp.TotalItems)
	return books, nil
}

// Details fetches one volume by id.
func (g *GoogleBooks) Details(ctx context.Context, id string) (book.Details, error) {
	params := url.Values{}
	params.Set("key", g.apiKey.String())
	fullURL := fmt.Sprintf("%s/%s?%s", g.baseURL, url.PathEscape(id), params.Encode())

	var volume googleBooksVolume
	if err := g.get(ctx, "details", fullURL, &volume); err != nil {
		return book.Details{}, err
	}

	info := volume.VolumeInfo
	return book.Details{
		ID:            volume.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Description:   info.Description,
		PageCount:     info.PageCount,
		PublishedYear: parseYear(info.PublishedDate),
		Categories:    info.Categories,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
	}, nil
}

func (g *GoogleBooks) get(ctx context.Context, op, fullURL string, out interface{}) (err error) {
	ctx, span := g.tracer.Start(ctx, "catalog."+op, trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	defer func() {
		g.metrics.ObserveCatalog(op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: redactKey(err, g.apiKey)}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ResponseError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// Name returns the provider name
func (g *GoogleBooks) Name() string {
	return "google_books"
}

// Validate checks if the client is properly configured
func (g *GoogleBooks) Validate() error {
	if g.apiKey.IsEmpty() {
		return fmt.Errorf("google books API key is not configured")
	}
	return nil
}

// parseYear reads the year from "yyyy", "yyyy-mm" or "yyyy-mm-dd"; anything
// else yields 0.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 0 {
		return 0
	}
	return year
}

// redactKey keeps the API key out of transport errors, which quote the URL.
func redactKey(err error, key *securemem.Secret) error {
	plain := key.String()
	if plain == "" {
		return err
	}
	msg := err.Error()
	redacted := strings.ReplaceAll(strings.ReplaceAll(msg, url.QueryEscape(plain), "REDACTED"), plain, "REDACTED")
	if redacted == msg {
		return err
	}
	return fmt.Errorf("%s", redacted)
}
