package tools

import "github.com/launchpal/launchpal/internal/mcp/protocol"

func str(desc string) *protocol.Schema {
	return &protocol.Schema{Type: "string", Description: desc}
}

func strList(desc string) *protocol.Schema {
	return &protocol.Schema{Type: "array", Items: &protocol.Schema{Type: "string"}, Description: desc}
}

func number(desc string) *protocol.Schema {
	return &protocol.Schema{Type: "number", Description: desc}
}

func boolean(desc string) *protocol.Schema {
	return &protocol.Schema{Type: "boolean", Description: desc}
}

func object(desc string) *protocol.Schema {
	return &protocol.Schema{Type: "object", Description: desc}
}

func noArgs() protocol.Schema {
	return protocol.Schema{Type: "object", Properties: map[string]*protocol.Schema{}}
}

var definitions = []protocol.Tool{
	{
		Name:        "authenticate",
		Description: "Authenticate with LaunchPal API",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"email":    str("Your LaunchPal account email"),
				"password": str("Your LaunchPal account password"),
			},
			Required: []string{"email", "password"},
		},
	},
	{
		Name:        "connect_platform",
		Description: "Connect a launch platform (Product Hunt, Hacker News, etc.)",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"platform": {
					Type:        "string",
					Enum:        []string{"producthunt", "hackernews", "reddit", "indiehackers"},
					Description: "Platform to connect",
				},
				"credentials": object("Platform-specific credentials. Optional for producthunt after login_producthunt."),
			},
			Required: []string{"platform"},
		},
	},
	{
		Name:        "list_platforms",
		Description: "List available launch platforms and their connection status",
		InputSchema: noArgs(),
	},
	{
		Name:        "create_product",
		Description: "Create a product on a connected platform",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"platform":    str("Target platform for the product"),
				"name":        str("Product name"),
				"tagline":     str("Product tagline"),
				"description": str("Product description"),
				"website":     str("Product website URL"),
				"media":       strList("Array of media URLs"),
				"topics":      strList("Product topics/categories"),
			},
			Required: []string{"platform", "name", "tagline", "description", "website"},
		},
	},
	{
		Name:        "schedule_launch",
		Description: "Schedule a product launch",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"productId":   str("Product ID to launch"),
				"scheduledAt": str("ISO 8601 date string for launch time"),
				"options":     object("Platform-specific launch options"),
			},
			Required: []string{"productId", "scheduledAt"},
		},
	},
	{
		Name:        "get_launch_metrics",
		Description: "Get metrics for a launch",
		InputSchema: protocol.Schema{
			Type:       "object",
			Properties: map[string]*protocol.Schema{"launchId": str("Launch ID")},
			Required:   []string{"launchId"},
		},
	},
	{
		Name:        "get_trending",
		Description: "Get trending products from a platform",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"platform": str("Platform to get trending from"),
				"period": {
					Type:        "string",
					Enum:        []string{"day", "week", "month"},
					Description: "Time period for trending",
				},
			},
			Required: []string{"platform"},
		},
	},
	{
		Name:        "find_hunters",
		Description: "Find Product Hunt hunters active in a category",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"category":     str("Product category or topic, e.g. developer-tools"),
				"minFollowers": number("Minimum follower count (default 1000)"),
			},
			Required: []string{"category"},
		},
	},
	{
		Name:        "get_comments",
		Description: "Read the comments on a launch",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"launchId": str("Launch ID"),
				"limit":    number("Maximum number of comments (default 50)"),
			},
			Required: []string{"launchId"},
		},
	},
	{
		Name:        "generate_launch_report",
		Description: "Generate an analytics report for a launch",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"launchId":           str("Launch ID"),
				"includeCompetitors": boolean("Include the top competing products"),
			},
			Required: []string{"launchId"},
		},
	},
	{
		Name:        "check_usage",
		Description: "Check your API usage and limits",
		InputSchema: protocol.Schema{
			Type: "object",
			Properties: map[string]*protocol.Schema{
				"startDate": str("Start date for usage period"),
				"endDate":   str("End date for usage period"),
			},
		},
	},
	{
		Name:        "login_producthunt",
		Description: "Open browser to login to Product Hunt",
		InputSchema: noArgs(),
	},
	{
		Name:        "logout_producthunt",
		Description: "Logout from Product Hunt",
		InputSchema: noArgs(),
	},
	{
		Name:        "check_auth_status",
		Description: "Check Product Hunt authentication status",
		InputSchema: noArgs(),
	},
}
