// Package tools maps MCP tool calls onto the LaunchPal HTTP API and the local
// Product Hunt login.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/launchpal/launchpal/internal/mcp/client"
	"github.com/launchpal/launchpal/internal/mcp/localauth"
	"github.com/launchpal/launchpal/internal/mcp/protocol"
)

const trendingLimit = 10

// LoginFlow is the local login server as seen by the login tool.
type LoginFlow interface {
	Start() error
	URL() string
}

// Handler implements protocol.ToolHandler.
type Handler struct {
	api          *client.Client
	store        *localauth.Store
	loginTimeout time.Duration
	newLogin     func() (LoginFlow, error)
	openBrowser  func(string) error
	now          func() time.Time

	mu    sync.Mutex
	login LoginFlow
}

var _ protocol.ToolHandler = (*Handler)(nil)

// NewHandler wires the tools. newLogin is called once, on the first
// login_producthunt call.
func NewHandler(api *client.Client, store *localauth.Store, newLogin func() (LoginFlow, error), loginTimeout time.Duration) *Handler {
	return &Handler{
		api:          api,
		store:        store,
		loginTimeout: loginTimeout,
		newLogin:     newLogin,
		openBrowser:  localauth.OpenBrowser,
		now:          time.Now,
	}
}

// List implements protocol.ToolHandler.
func (h *Handler) List(context.Context) []protocol.Tool {
	return definitions
}

type toolFunc func(h *Handler, ctx context.Context, args args) (string, error)

var calls = map[string]toolFunc{
	"authenticate":           (*Handler).authenticate,
	"connect_platform":       (*Handler).connectPlatform,
	"list_platforms":         (*Handler).listPlatforms,
	"create_product":         (*Handler).createProduct,
	"schedule_launch":        (*Handler).scheduleLaunch,
	"get_launch_metrics":     (*Handler).launchMetrics,
	"get_trending":           (*Handler).trending,
	"find_hunters":           (*Handler).findHunters,
	"get_comments":           (*Handler).comments,
	"generate_launch_report": (*Handler).launchReport,
	"check_usage":            (*Handler).checkUsage,
	"login_producthunt":      (*Handler).loginProductHunt,
	"logout_producthunt":     (*Handler).logoutProductHunt,
	"check_auth_status":      (*Handler).checkAuthStatus,
}

// Call implements protocol.ToolHandler. Argument problems are InvalidParams;
// anything the API or the filesystem reports is InternalError carrying the
// underlying message.
func (h *Handler) Call(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	fn, ok := calls[req.Name]
	if !ok {
		return nil, protocol.Errorf(protocol.MethodNotFound, "Unknown tool: %s", req.Name)
	}
	text, err := fn(h, ctx, args(req.Arguments))
	if err != nil {
		if rpcErr, ok := err.(*protocol.RPCError); ok {
			return nil, rpcErr
		}
		slog.Warn("tool call failed", "tool", req.Name, "error", err)
		return nil, protocol.Errorf(protocol.InternalError, "%s", err.Error())
	}
	return protocol.TextResult(text), nil
}

// ---------------------------------------------------------------------------
// LaunchPal API tools
// ---------------------------------------------------------------------------

func (h *Handler) authenticate(ctx context.Context, a args) (string, error) {
	email, err := a.required("email")
	if err != nil {
		return "", err
	}
	password, err := a.required("password")
	if err != nil {
		return "", err
	}
	s, err := h.api.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	sub := s.User.Subscription
	if sub == "" {
		sub = "free"
	}
	// Keys are stored hashed, so sign-in only returns one when it minted it.
	msg := fmt.Sprintf("Successfully authenticated as %s.\nSubscription: %s", s.User.Email, sub)
	if s.User.APIKey != "" {
		msg += "\nAPI Key: " + s.User.APIKey
	}
	return msg, nil
}

func (h *Handler) connectPlatform(ctx context.Context, a args) (string, error) {
	platform, err := a.required("platform")
	if err != nil {
		return "", err
	}
	creds, err := a.stringMap("credentials")
	if err != nil {
		return "", err
	}
	if len(creds) == 0 {
		tok, ok := "", false
		if platform == "producthunt" {
			tok, ok = h.store.AccessToken()
		}
		if !ok {
			return "", protocol.Errorf(protocol.InvalidParams, "credentials are required")
		}
		creds = map[string]string{"accessToken": tok}
	}
	return h.api.ConnectPlatform(ctx, platform, creds)
}

func (h *Handler) listPlatforms(ctx context.Context, _ args) (string, error) {
	platforms, err := h.api.ListPlatforms(ctx)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(platforms))
	for _, p := range platforms {
		state := "✗ Not connected"
		if p.Connected {
			state = "✓ Connected"
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", p.Name, p.ID, state))
	}
	return "Available platforms:\n" + strings.Join(lines, "\n"), nil
}

func (h *Handler) createProduct(ctx context.Context, a args) (string, error) {
	for _, key := range []string{"platform", "name", "tagline", "description", "website"} {
		if _, err := a.required(key); err != nil {
			return "", err
		}
	}
	for _, key := range []string{"media", "topics"} {
		if _, err := a.stringList(key); err != nil {
			return "", err
		}
	}
	p, err := h.api.CreateProduct(ctx, a)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Product created successfully!\nID: %s\nURL: %s", p.ID, p.URL), nil
}

func (h *Handler) scheduleLaunch(ctx context.Context, a args) (string, error) {
	if _, err := a.required("productId"); err != nil {
		return "", err
	}
	at, err := a.required("scheduledAt")
	if err != nil {
		return "", err
	}
	if _, err := time.Parse(time.RFC3339, at); err != nil {
		return "", protocol.Errorf(protocol.InvalidParams, "scheduledAt must be an ISO 8601 timestamp")
	}
	l, err := h.api.ScheduleLaunch(ctx, a)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Launch scheduled!\nID: %s\nScheduled for: %s", l.ID, l.ScheduledAt.UTC().Format(time.RFC3339)), nil
}

func (h *Handler) launchMetrics(ctx context.Context, a args) (string, error) {
	id, err := a.required("launchId")
	if err != nil {
		return "", err
	}
	m, err := h.api.LaunchMetrics(ctx, id)
	if err != nil {
		return "", err
	}
	rank := "N/A"
	if m.Rank != nil {
		rank = strconv.Itoa(*m.Rank)
	}
	return fmt.Sprintf("Launch Metrics:\nVotes: %d\nComments: %d\nRank: %s\nEngagement: %s",
		m.Votes, m.Comments, rank, formatNumber(m.Engagement)), nil
}

func (h *Handler) trending(ctx context.Context, a args) (string, error) {
	platform, err := a.required("platform")
	if err != nil {
		return "", err
	}
	period, err := a.optional("period")
	if err != nil {
		return "", err
	}
	if period == "" {
		period = "day"
	}
	if !slices.Contains([]string{"day", "week", "month"}, period) {
		return "", protocol.Errorf(protocol.InvalidParams, "period must be one of day, week, month")
	}

	products, err := h.api.Trending(ctx, platform, period, trendingLimit)
	if err != nil {
		return "", err
	}
	if len(products) > trendingLimit {
		products = products[:trendingLimit]
	}
	lines := make([]string, len(products))
	for i, p := range products {
		lines[i] = fmt.Sprintf("%d. %s - %s", i+1, p.Name, p.Tagline)
	}
	return fmt.Sprintf("Trending on %s:\n%s", platform, strings.Join(lines, "\n")), nil
}

func (h *Handler) findHunters(ctx context.Context, a args) (string, error) {
	category, err := a.required("category")
	if err != nil {
		return "", err
	}
	minFollowers, err := a.count("minFollowers")
	if err != nil {
		return "", err
	}
	hunters, err := h.api.FindHunters(ctx, category, minFollowers)
	if err != nil {
		return "", err
	}
	if len(hunters) == 0 {
		return fmt.Sprintf("No hunters found for %s.", category), nil
	}
	lines := make([]string, len(hunters))
	for i, hu := range hunters {
		lines[i] = fmt.Sprintf("%d. %s (@%s) - %d followers, %d hunts\n   %s",
			i+1, hu.Name, hu.Username, hu.Followers, hu.HuntsCount, hu.ProfileURL)
	}
	return fmt.Sprintf("Hunters for %s:\n%s", category, strings.Join(lines, "\n")), nil
}

func (h *Handler) comments(ctx context.Context, a args) (string, error) {
	id, err := a.required("launchId")
	if err != nil {
		return "", err
	}
	limit, err := a.count("limit")
	if err != nil {
		return "", err
	}
	comments, err := h.api.Comments(ctx, id, limit)
	if err != nil {
		return "", err
	}
	if len(comments) == 0 {
		return "No comments yet.", nil
	}
	lines := make([]string, len(comments))
	for i, c := range comments {
		lines[i] = fmt.Sprintf("%s (@%s, %d votes): %s", c.Author.Name, c.Author.Username, c.Votes, c.Body)
	}
	return fmt.Sprintf("Comments (%d):\n%s", len(comments), strings.Join(lines, "\n")), nil
}

func (h *Handler) launchReport(ctx context.Context, a args) (string, error) {
	id, err := a.required("launchId")
	if err != nil {
		return "", err
	}
	withCompetitors, err := a.flag("includeCompetitors")
	if err != nil {
		return "", err
	}
	r, err := h.api.LaunchReport(ctx, id, withCompetitors)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Launch Report:\nVotes: %d\nComments: %d\nRank: %d\nPeak hour: %s\n", r.Votes, r.Comments, r.Rank, r.PeakHour)
	fmt.Fprintf(&b, "Predicted votes: %d (rank %d, %d%% confidence)\n",
		r.Prediction.PredictedVotes, r.Prediction.PredictedRank, r.Prediction.Confidence)
	fmt.Fprintf(&b, "Historical: %s (percentile %d, average launch %d votes)",
		r.Historical.Rating, r.Historical.Percentile, r.Historical.AverageVotes)
	if withCompetitors && len(r.Competitors) > 0 {
		b.WriteString("\nCompetitors:")
		for _, c := range r.Competitors {
			fmt.Fprintf(&b, "\n#%d %s - %d votes", c.Rank, c.Name, c.Votes)
		}
	}
	return b.String(), nil
}

func (h *Handler) checkUsage(ctx context.Context, a args) (string, error) {
	start, err := a.optional("startDate")
	if err != nil {
		return "", err
	}
	end, err := a.optional("endDate")
	if err != nil {
		return "", err
	}
	u, err := h.api.Usage(ctx, start, end)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("API Usage:\nRequests: %d/%d\nCost: $%s\nSubscription: %s",
		u.TotalRequests, u.Limits.MonthlyRequests, formatNumber(u.TotalCost), u.Subscription), nil
}

// ---------------------------------------------------------------------------
// Product Hunt login tools
// ---------------------------------------------------------------------------

func (h *Handler) loginProductHunt(ctx context.Context, _ args) (string, error) {
	flow, err := h.loginFlow()
	if err != nil {
		return "", err
	}
	if err := h.openBrowser(flow.URL()); err != nil {
		slog.Warn("could not open browser", "url", flow.URL(), "error", err)
	}

	tok, err := h.store.WaitForToken(ctx, h.loginTimeout)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "⚠️ Authentication timed out. Please try again.", nil
	}
	return "✅ Successfully authenticated with Product Hunt! You can now use all features.", nil
}

// loginFlow starts the login server on first use and reuses it afterwards.
func (h *Handler) loginFlow() (LoginFlow, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.login != nil {
		return h.login, nil
	}
	if h.newLogin == nil {
		return nil, fmt.Errorf("product hunt login is not configured")
	}
	flow, err := h.newLogin()
	if err != nil {
		return nil, err
	}
	if err := flow.Start(); err != nil {
		return nil, err
	}
	h.login = flow
	return flow, nil
}

func (h *Handler) logoutProductHunt(context.Context, args) (string, error) {
	if err := h.store.Clear(); err != nil {
		return "", err
	}
	return "Successfully logged out from Product Hunt.", nil
}

func (h *Handler) checkAuthStatus(context.Context, args) (string, error) {
	info := h.store.Info()
	if !info.Authenticated {
		return "❌ Not authenticated. Use login_producthunt to authenticate.", nil
	}
	scopes := info.Scopes
	if scopes == "" {
		scopes = "N/A"
	}
	expires := "Never"
	if info.ExpiresAt != nil {
		expires = strconv.Itoa(int(math.Round(info.ExpiresAt.Sub(h.now()).Minutes())))
	}
	return fmt.Sprintf("✅ Authenticated\nScopes: %s\nExpires in: %s minutes", scopes, expires), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
