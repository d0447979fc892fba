// Package rtdb implements store.Store over the Firebase Realtime Database
// REST API, authenticated with a Google service account.
package rtdb

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/store"
)

// Scopes required for admin access to the Realtime Database.
var Scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the database.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s /%s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Client talks to one database instance.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Ensure Client implements the store interfaces.
var (
	_ store.Store     = (*Client)(nil)
	_ store.KeyLister = (*Client)(nil)
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient      *http.Client
	credentialsFile string
}

// WithHTTPClient uses hc as-is, without adding authentication.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithServiceAccountFile authenticates with the service account key at path.
func WithServiceAccountFile(path string) Option {
	return func(o *clientOptions) { o.credentialsFile = path }
}

// New creates a Client for databaseURL, e.g. https://<project>.firebaseio.com.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	base, err := url.Parse(strings.TrimRight(databaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if base.Scheme != "https" && base.Scheme != "http" {
		return nil, fmt.Errorf("database url must be http(s), got %q", databaseURL)
	}

	hc := o.httpClient
	if hc == nil {
		if o.credentialsFile == "" {
			return nil, fmt.Errorf("service account required for %s", databaseURL)
		}
		data, err := os.ReadFile(o.credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading service account: %w", err)
		}
		conf, err := google.JWTConfigFromJSON(data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parsing service account: %w", err)
		}
		hc = conf.Client(ctx)
		hc.Timeout = defaultTimeout
		log.Debug(log.CatHTTP, "Using service account", "email", conf.Email)
	}

	return &Client{baseURL: base, http: hc}, nil
}

// ReadChildren fetches path and returns its children in Firebase key order.
func (c *Client) ReadChildren(ctx context.Context, path string) (store.Children, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeChildren(body)
}

// ListKeys fetches only the child keys of path.
func (c *Client) ListKeys(ctx context.Context, path string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, path, url.Values{"shallow": {"true"}}, nil)
	if err != nil {
		return nil, err
	}
	children, err := decodeChildren(body)
	if err != nil {
		return nil, err
	}
	return children.Keys(), nil
}

// Update PATCHes fields onto path/key. Fields not named are left untouched.
func (c *Client) Update(ctx context.Context, path, key string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding update: %w", err)
	}
	_, err = c.do(ctx, http.MethodPatch, store.Join(path, key), nil, payload)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	u := c.resourceURL(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug(log.CatHTTP, "Request", "method", method, "path", "/"+path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s /%s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s /%s: reading response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

func (c *Client) resourceURL(path string) *url.URL {
	u := *c.baseURL
	segments := strings.Split(store.Join(path), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(segments, "/") + ".json"
	u.RawPath = ""
	return &u
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// decodeChildren turns a REST response into ordered children. Objects are
// ordered the way the database orders keys; arrays (sequential integer keys)
// keep index order with null holes dropped; scalars and null have no
// children.
func decodeChildren(body []byte) (store.Children, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return store.Children{}, nil
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decoding children: %w", err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeys)
		out := make(store.Children, 0, len(keys))
		for _, k := range keys {
			out = append(out, store.Child{Key: k, Value: obj[k]})
		}
		return out, nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("decoding children: %w", err)
		}
		out := make(store.Children, 0, len(arr))
		for i, v := range arr {
			if string(bytes.TrimSpace(v)) == "null" {
				continue
			}
			out = append(out, store.Child{Key: strconv.Itoa(i), Value: v})
		}
		return out, nil
	default:
		return store.Children{}, nil
	}
}

// compareKeys orders keys the way the database does: keys that are 32-bit
// integers first, numerically, then the rest lexicographically.
func compareKeys(a, b string) int {
	ai, aInt := intKey(a)
	bi, bInt := intKey(b)
	switch {
	case aInt && bInt:
		return cmp.Compare(ai, bi)
	case aInt:
		return -1
	case bInt:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func intKey(k string) (int64, bool) {
	n, err := strconv.ParseInt(k, 10, 32)
	if err != nil {
		return 0, false
	}
	// "007" is a string key to the database.
	if strconv.FormatInt(n, 10) != k {
		return 0, false
	}
	return n, true
}
