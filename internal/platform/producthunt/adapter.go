// Package producthunt implements the launch platform adapter for Product Hunt
// on top of its GraphQL v2 API.
package producthunt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/telemetry"
)

const (
	DefaultAPIURL   = "https://api.producthunt.com/v2/api/graphql"
	DefaultTokenURL = "https://api.producthunt.com/v2/oauth/token"
	defaultTimeout  = 15 * time.Second
	postURLPrefix   = "https://www.producthunt.com/posts/"

	// hunterPage is how many of a topic's most followed users are scanned;
	// at most maxHunters of them are returned.
	hunterPage = 50
	maxHunters = 20

	defaultCommentLimit = 50
	maxCommentLimit     = 100
)

// trendingOrder maps a trending period to the posts order argument.
var trendingOrder = map[string]string{
	"day":   "VOTES_COUNT",
	"week":  "WEEKLY_RANK",
	"month": "RANKING",
}

// Options configures endpoints and the HTTP timeout.
type Options struct {
	APIURL   string
	TokenURL string
	Timeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.APIURL == "" {
		o.APIURL = DefaultAPIURL
	}
	if o.TokenURL == "" {
		o.TokenURL = DefaultTokenURL
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Adapter is a Product Hunt client bound to one user's credentials.
type Adapter struct {
	opts        Options
	httpClient  *http.Client
	tokenSource *clientcredentials.Config
	staticToken string

	mu    sync.Mutex
	token string
}

var (
	_ platform.Adapter        = (*Adapter)(nil)
	_ platform.TrendingSource = (*Adapter)(nil)
	_ platform.HunterSource   = (*Adapter)(nil)
	_ platform.CommentSource  = (*Adapter)(nil)
)

// New builds an adapter. Credentials must hold either accessToken, or
// clientId and clientSecret for the client credentials grant.
func New(creds platform.Credentials, opts Options) (*Adapter, error) {
	opts = opts.withDefaults()
	a := &Adapter{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
	if tok := creds["accessToken"]; tok != "" {
		a.staticToken = tok
		return a, nil
	}
	if err := platform.RequireKeys(creds, "clientId", "clientSecret"); err != nil {
		return nil, err
	}
	a.tokenSource = &clientcredentials.Config{
		ClientID:     creds["clientId"],
		ClientSecret: creds["clientSecret"],
		TokenURL:     opts.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return a, nil
}

// Register installs a Product Hunt builder using opts into reg. The router
// calls it with the endpoints and timeout from config.
func Register(reg *platform.Registry, opts Options) {
	reg.Register(platform.ProductHunt, func(creds platform.Credentials) (platform.Adapter, error) {
		return New(creds, opts)
	})
}

// Authenticate fetches and memoizes an access token. Later calls reuse it
// until Invalidate is called; expired tokens are not refreshed automatically.
func (a *Adapter) Authenticate(ctx context.Context) error {
	_, err := a.accessToken(ctx)
	return err
}

// Invalidate drops the memoized token.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" {
		return a.token, nil
	}
	if a.staticToken != "" {
		a.token = a.staticToken
		return a.token, nil
	}

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.tokenSource.Token(ctx)
	observe("authenticate", start, err)
	if err != nil {
		status := 0
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			status = re.Response.StatusCode
		}
		return "", platform.NewRemoteError(platform.ProductHunt, status, "authentication failed", err)
	}
	a.token = tok.AccessToken
	return a.token, nil
}

func observe(operation string, start time.Time, err error) {
	telemetry.PlatformRequestsTotal.WithLabelValues(platform.ProductHunt, operation, telemetry.Outcome(err)).Inc()
	telemetry.PlatformRequestDuration.WithLabelValues(platform.ProductHunt, operation).Observe(time.Since(start).Seconds())
}

type graphQLError struct {
	Message string `json:"message"`
}

// graphql posts a query and decodes its data member into out.
func (a *Adapter) graphql(ctx context.Context, operation, query string, variables map[string]any, out any) (err error) {
	start := time.Now()
	defer func() { observe(operation, start, err) }()

	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("producthunt: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("producthunt: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return platform.NewRemoteError(platform.ProductHunt, 0, operation+" request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return platform.NewRemoteError(platform.ProductHunt, resp.StatusCode, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return platform.NewRemoteError(platform.ProductHunt, resp.StatusCode, operation+" failed", fmt.Errorf("%s", strings.TrimSpace(string(raw))))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return platform.NewRemoteError(platform.ProductHunt, resp.StatusCode, "decode response", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return platform.NewRemoteError(platform.ProductHunt, resp.StatusCode, strings.Join(msgs, "; "), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return platform.NewRemoteError(platform.ProductHunt, resp.StatusCode, "decode data", err)
	}
	return nil
}

const createPostMutation = `
mutation CreatePost($input: CreatePostInput!) {
  createPost(input: $input) {
    id
    slug
    url
  }
}`

// CreateProduct creates a post and returns its id and public URL.
func (a *Adapter) CreateProduct(ctx context.Context, draft platform.ProductDraft) (*platform.CreatedProduct, error) {
	input := map[string]any{
		"name":        draft.Name,
		"tagline":     draft.Tagline,
		"description": draft.Description,
		"url":         draft.Website,
		"media":       draft.Media,
	}
	if len(draft.Topics) > 0 {
		input["topics"] = draft.Topics
	}

	var data struct {
		CreatePost *struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"createPost"`
	}
	if err := a.graphql(ctx, "create_product", createPostMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}
	if data.CreatePost == nil {
		return nil, platform.NewRemoteError(platform.ProductHunt, 0, "createPost returned no post", nil)
	}
	return &platform.CreatedProduct{
		PlatformID: data.CreatePost.ID,
		URL:        postURLPrefix + data.CreatePost.Slug,
	}, nil
}

// ScheduleLaunch records the launch locally. Product Hunt exposes no
// scheduling API, so the returned id is generated and no request is made.
func (a *Adapter) ScheduleLaunch(_ context.Context, _ string, when time.Time) (*platform.ScheduledLaunch, error) {
	return &platform.ScheduledLaunch{
		PlatformLaunchID: fmt.Sprintf("ph_launch_%d", time.Now().UnixMilli()),
		ScheduledAt:      when,
	}, nil
}

const postMetricsQuery = `
query GetPost($id: ID!) {
  post(id: $id) {
    votesCount
    commentsCount
    rank
  }
}`

// GetLaunchMetrics reads votes, comments and rank for a post.
func (a *Adapter) GetLaunchMetrics(ctx context.Context, platformLaunchID string) (*platform.Metrics, error) {
	var data struct {
		Post *struct {
			VotesCount    int  `json:"votesCount"`
			CommentsCount int  `json:"commentsCount"`
			Rank          *int `json:"rank"`
		} `json:"post"`
	}
	if err := a.graphql(ctx, "get_metrics", postMetricsQuery, map[string]any{"id": platformLaunchID}, &data); err != nil {
		return nil, err
	}
	if data.Post == nil {
		return nil, platform.NewRemoteError(platform.ProductHunt, http.StatusNotFound, "post not found: "+platformLaunchID, nil)
	}
	return &platform.Metrics{
		Votes:      data.Post.VotesCount,
		Comments:   data.Post.CommentsCount,
		Rank:       data.Post.Rank,
		Engagement: platform.EngagementScore(data.Post.VotesCount, data.Post.CommentsCount),
	}, nil
}

const trendingQuery = `
query GetTrending($first: Int!, $order: PostsOrder!) {
  posts(first: $first, order: $order) {
    edges {
      node {
        id
        name
        tagline
        description
        url
        votesCount
        commentsCount
        featured
        media {
          url
        }
      }
    }
  }
}`

// Trending lists top posts for day, week or month.
func (a *Adapter) Trending(ctx context.Context, period string, limit int) ([]platform.TrendingProduct, error) {
	order, ok := trendingOrder[period]
	if !ok {
		return nil, fmt.Errorf("producthunt: invalid trending period %q", period)
	}
	if limit <= 0 {
		limit = 10
	}

	var data struct {
		Posts struct {
			Edges []struct {
				Node struct {
					ID            string `json:"id"`
					Name          string `json:"name"`
					Tagline       string `json:"tagline"`
					Description   string `json:"description"`
					URL           string `json:"url"`
					VotesCount    int    `json:"votesCount"`
					CommentsCount int    `json:"commentsCount"`
					Featured      bool   `json:"featured"`
					Media         []struct {
						URL string `json:"url"`
					} `json:"media"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	}
	vars := map[string]any{"first": limit, "order": order}
	if err := a.graphql(ctx, "trending", trendingQuery, vars, &data); err != nil {
		return nil, err
	}

	out := make([]platform.TrendingProduct, 0, len(data.Posts.Edges))
	for _, e := range data.Posts.Edges {
		n := e.Node
		media := make([]string, 0, len(n.Media))
		for _, m := range n.Media {
			media = append(media, m.URL)
		}
		out = append(out, platform.TrendingProduct{
			ID:          n.ID,
			Name:        n.Name,
			Tagline:     n.Tagline,
			Description: n.Description,
			URL:         n.URL,
			Votes:       n.VotesCount,
			Comments:    n.CommentsCount,
			Featured:    n.Featured,
			Media:       media,
		})
	}
	return out, nil
}

const topicHuntersQuery = `
query FindHunters($topic: String!, $first: Int!) {
  topic(slug: $topic) {
    users(first: $first, order: FOLLOWERS_COUNT) {
      edges {
        node {
          id
          name
          username
          followersCount
          madePosts {
            totalCount
          }
          profileUrl
        }
      }
    }
  }
}`

// FindHunters scans the most followed users of a topic and keeps those with
// at least minFollowers followers.
func (a *Adapter) FindHunters(ctx context.Context, topic string, minFollowers int) ([]platform.Hunter, error) {
	var data struct {
		Topic *struct {
			Users struct {
				Edges []struct {
					Node struct {
						ID             string `json:"id"`
						Name           string `json:"name"`
						Username       string `json:"username"`
						FollowersCount int    `json:"followersCount"`
						MadePosts      struct {
							TotalCount int `json:"totalCount"`
						} `json:"madePosts"`
						ProfileURL string `json:"profileUrl"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"users"`
		} `json:"topic"`
	}
	vars := map[string]any{"topic": strings.ToLower(topic), "first": hunterPage}
	if err := a.graphql(ctx, "find_hunters", topicHuntersQuery, vars, &data); err != nil {
		return nil, err
	}

	out := []platform.Hunter{}
	if data.Topic == nil {
		return out, nil
	}
	for _, e := range data.Topic.Users.Edges {
		n := e.Node
		if n.FollowersCount < minFollowers {
			continue
		}
		out = append(out, platform.Hunter{
			ID:         n.ID,
			Name:       n.Name,
			Username:   n.Username,
			Followers:  n.FollowersCount,
			HuntsCount: n.MadePosts.TotalCount,
			ProfileURL: n.ProfileURL,
		})
		if len(out) == maxHunters {
			break
		}
	}
	return out, nil
}

const postCommentsQuery = `
query GetComments($id: ID!, $first: Int!) {
  post(id: $id) {
    comments(first: $first) {
      edges {
        node {
          id
          body
          votesCount
          user {
            name
            username
          }
          createdAt
        }
      }
    }
  }
}`

// Comments returns up to limit comments of a post, oldest first as the API
// orders them.
func (a *Adapter) Comments(ctx context.Context, platformLaunchID string, limit int) ([]platform.Comment, error) {
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	limit = min(limit, maxCommentLimit)

	var data struct {
		Post *struct {
			Comments struct {
				Edges []struct {
					Node struct {
						ID         string    `json:"id"`
						Body       string    `json:"body"`
						VotesCount int       `json:"votesCount"`
						CreatedAt  time.Time `json:"createdAt"`
						User       struct {
							Name     string `json:"name"`
							Username string `json:"username"`
						} `json:"user"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"comments"`
		} `json:"post"`
	}
	vars := map[string]any{"id": platformLaunchID, "first": limit}
	if err := a.graphql(ctx, "get_comments", postCommentsQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Post == nil {
		return nil, platform.NewRemoteError(platform.ProductHunt, http.StatusNotFound, "post not found: "+platformLaunchID, nil)
	}

	out := make([]platform.Comment, 0, len(data.Post.Comments.Edges))
	for _, e := range data.Post.Comments.Edges {
		n := e.Node
		out = append(out, platform.Comment{
			ID:        n.ID,
			Body:      n.Body,
			Votes:     n.VotesCount,
			Author:    platform.CommentAuthor{Name: n.User.Name, Username: n.User.Username},
			CreatedAt: n.CreatedAt,
		})
	}
	return out, nil
}
