package tools

import (
	"context"
	"strings"

	"github.com/launchpal/launchpal/internal/mcp/protocol"
)

// Prompts implements protocol.PromptHandler.
type Prompts struct{}

var _ protocol.PromptHandler = Prompts{}

type promptTemplate struct {
	protocol.Prompt
	// text has {argument_name} placeholders for every declared argument.
	text string
}

var (
	productName = protocol.PromptArgument{Name: "product_name", Description: "Name of the product", Required: true}

	prompts = []promptTemplate{
		{
			Prompt: protocol.Prompt{
				Name:        "launch_strategy",
				Description: "Get a comprehensive launch strategy for your product",
				Arguments: []protocol.PromptArgument{
					{Name: "product_type", Description: "Type of product (SaaS, mobile app, hardware, etc.)", Required: true},
					{Name: "target_audience", Description: "Primary target audience", Required: true},
				},
			},
			text: "Create a comprehensive launch strategy for a {product_type} targeting {target_audience}. Include platform selection, timing, messaging, and engagement tactics.",
		},
		{
			Prompt: protocol.Prompt{
				Name:        "launch_checklist",
				Description: "Complete Product Hunt launch checklist",
			},
			text: "Generate a comprehensive Product Hunt launch checklist covering the weeks before launch, launch day and the follow-up.",
		},
		{
			Prompt: protocol.Prompt{
				Name:        "product_description",
				Description: "Generate compelling product description",
				Arguments:   []protocol.PromptArgument{productName},
			},
			text: "Help me write a compelling product description for Product Hunt. My product is: {product_name}",
		},
		{
			Prompt: protocol.Prompt{
				Name:        "hunter_outreach",
				Description: "Template for reaching out to hunters",
				Arguments: []protocol.PromptArgument{
					productName,
					{Name: "category", Description: "Product category", Required: true},
				},
			},
			text: "Create an outreach message for Product Hunt hunters. Product: {product_name}, Category: {category}",
		},
		{
			Prompt: protocol.Prompt{
				Name:        "launch_announcement",
				Description: "Social media launch announcement template",
				Arguments: []protocol.PromptArgument{
					productName,
					{Name: "tagline", Description: "Product tagline", Required: true},
				},
			},
			text: "Create social media posts announcing our Product Hunt launch. Product: {product_name}, Tagline: {tagline}",
		},
	}
)

// List implements protocol.PromptHandler.
func (Prompts) List(context.Context) []protocol.Prompt {
	out := make([]protocol.Prompt, len(prompts))
	for i, p := range prompts {
		out[i] = p.Prompt
	}
	return out
}

// Get implements protocol.PromptHandler.
func (Prompts) Get(_ context.Context, req *protocol.GetPromptRequest) (*protocol.GetPromptResult, error) {
	for _, p := range prompts {
		if p.Name != req.Name {
			continue
		}
		replacements := make([]string, 0, 2*len(p.Arguments))
		for _, arg := range p.Arguments {
			v := req.Arguments[arg.Name]
			if arg.Required && v == "" {
				return nil, protocol.Errorf(protocol.InvalidParams, "missing required argument: %s", arg.Name)
			}
			replacements = append(replacements, "{"+arg.Name+"}", v)
		}
		text := strings.NewReplacer(replacements...).Replace(p.text)
		return &protocol.GetPromptResult{
			Description: p.Description,
			Messages:    []protocol.PromptMessage{{Role: "user", Content: protocol.Content{Type: "text", Text: text}}},
		}, nil
	}
	return nil, protocol.Errorf(protocol.MethodNotFound, "Unknown prompt: %s", req.Name)
}
