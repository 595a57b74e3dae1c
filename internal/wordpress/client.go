package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wpqueue/internal/config"
	"wpqueue/internal/logging"
	"wpqueue/internal/metrics"
)

const userAgent = "wpqueue/1.0"

// HTTPDoer describes the HTTP client used by the WordPress client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials authenticate against one site.
type Credentials struct {
	SiteURL  string
	Username string
	Password string
}

// Options configures a Client.
type Options struct {
	HTTPClient HTTPDoer
	Timeout    time.Duration
	// RequestsPerSecond limits outgoing requests; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// Client wraps the WordPress wp/v2 REST API.
type Client struct {
	http    HTTPDoer
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client from the supplied options.
func New(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		http:    client,
		limiter: limiter,
		logger:  logging.NewComponentLogger(opts.Logger, "wordpress"),
	}
}

// NewFromConfig builds a Client using the wordpress section of cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return New(Options{
		Timeout:           cfg.RequestTimeout(),
		RequestsPerSecond: cfg.WordPress.RequestsPerSecond,
		Burst:             cfg.WordPress.Burst,
		Logger:            logger,
	})
}

// CreatePostRequest describes the placeholder post. It is always created as
// a draft; the publish mode is applied by FinalizePost.
type CreatePostRequest struct {
	Format string
}

// Media is an uploaded attachment.
type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

// FinalizeRequest carries everything needed to render the final post.
type FinalizeRequest struct {
	Text      string
	MediaIDs  []int64
	MediaURLs []string
	Status    string
	Format    string
}

// Post is the remote representation returned by the API.
type Post struct {
	ID     int64  `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
}

// CreatePost creates a draft with placeholder title and content and returns
// its id.
func (c *Client) CreatePost(ctx context.Context, creds Credentials, req CreatePostRequest) (int64, error) {
	base, err := c.prepare(creds)
	if err != nil {
		return 0, err
	}
	body := map[string]any{
		"title":   placeholderTitle,
		"content": placeholderContent,
		"status":  "draft",
	}
	if req.Format != "" {
		body["format"] = req.Format
	}
	var post Post
	if err := c.doJSON(ctx, OpCreatePost, creds, http.MethodPost, base+"/posts", body, &post); err != nil {
		return 0, err
	}
	if post.ID <= 0 {
		return 0, &RemoteError{Op: OpCreatePost, StatusCode: http.StatusOK, Message: "response carried no post id"}
	}
	return post.ID, nil
}

// UploadMedia uploads one image attached to postID. progress, when non-nil,
// receives the fraction of the request body consumed by the transport.
func (c *Client) UploadMedia(ctx context.Context, creds Credentials, postID int64, data []byte, filename string, progress func(float64)) (Media, error) {
	base, err := c.prepare(creds)
	if err != nil {
		return Media{}, err
	}
	if strings.TrimSpace(filename) == "" {
		filename = "image.jpg"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if postID > 0 {
		if err := writer.WriteField("post", strconv.FormatInt(postID, 10)); err != nil {
			return Media{}, fmt.Errorf("build media form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Media{}, fmt.Errorf("build media form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Media{}, fmt.Errorf("build media form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Media{}, fmt.Errorf("build media form: %w", err)
	}

	total := int64(buf.Len())
	body := newProgressReader(bytes.NewReader(buf.Bytes()), total, progress)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/media", body)
	if err != nil {
		return Media{}, fmt.Errorf("build media request: %w", err)
	}
	httpReq.ContentLength = total
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var media Media
	if err := c.send(ctx, OpUploadMedia, creds, httpReq, &media); err != nil {
		return Media{}, err
	}
	if media.ID <= 0 {
		return Media{}, &RemoteError{Op: OpUploadMedia, StatusCode: http.StatusOK, Message: "response carried no media id"}
	}
	if progress != nil {
		progress(1)
	}
	return media, nil
}

// FinalizePost replaces the placeholder with the rendered content and applies
// the requested status and format.
func (c *Client) FinalizePost(ctx context.Context, creds Credentials, postID int64, req FinalizeRequest) (Post, error) {
	base, err := c.prepare(creds)
	if err != nil {
		return Post{}, err
	}
	if postID <= 0 {
		return Post{}, &ValidationError{Field: "post_id", Reason: "must be positive"}
	}
	var featured int64
	if len(req.MediaIDs) > 0 {
		featured = req.MediaIDs[0]
	}
	body := map[string]any{
		"title":          PostTitle(req.Text),
		"content":        RenderContent(req.Text, req.MediaIDs, req.MediaURLs),
		"status":         req.Status,
		"featured_media": featured,
	}
	if req.Format != "" {
		body["format"] = req.Format
	}
	var post Post
	if err := c.doJSON(ctx, OpFinalizePost, creds, http.MethodPost, fmt.Sprintf("%s/posts/%d", base, postID), body, &post); err != nil {
		return Post{}, err
	}
	if post.ID == 0 {
		post.ID = postID
	}
	return post, nil
}

// Ping verifies the credentials by fetching the authenticated user.
func (c *Client) Ping(ctx context.Context, creds Credentials) error {
	base, err := c.prepare(creds)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, OpPing, creds, http.MethodGet, base+"/users/me?context=edit", nil, nil)
}

func (c *Client) prepare(creds Credentials) (string, error) {
	if strings.TrimSpace(creds.SiteURL) == "" || strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return "", &ValidationError{Reason: "Please configure WordPress settings first"}
	}
	return APIBase(creds.SiteURL)
}

func (c *Client) doJSON(ctx context.Context, op string, creds Credentials, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(ctx, op, creds, req, out)
}

func (c *Client) send(ctx context.Context, op string, creds Credentials, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemote(op, 0, time.Since(start))
		c.logger.Debug("wordpress request failed", logging.String("op", op), logging.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveRemote(op, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("wordpress request",
		logging.String("op", op),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRemoteError(op, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}
