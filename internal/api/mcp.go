package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tidydrive/tidydrive/internal/catalog"
)

// NewMCPServer creates an MCP server exposing the organizer as tools and the
// configuration document as a resource.
func NewMCPServer(engine Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"tidydrive",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tidydrive organizes cloud drive files: categorize files by rules and AI, mirror folders, manage the review queue."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("categorize_file",
			mcp.WithDescription("Categorize a drive file using the user's rules and AI settings. Assigns a category or queues the file for review."),
			mcp.WithString("fileId", mcp.Description("Drive file id"), mcp.Required()),
		),
		mcpCategorizeFile(engine),
	)

	s.AddTool(
		mcp.NewTool("sync_folders",
			mcp.WithDescription("Mirror non-empty drive folders into categories."),
			mcp.WithBoolean("force", mcp.Description("Bypass the sync throttle window")),
		),
		mcpSyncFolders(engine),
	)

	s.AddTool(
		mcp.NewTool("list_review_queue",
			mcp.WithDescription("List files waiting for category confirmation."),
		),
		mcpListReviewQueue(engine),
	)

	s.AddTool(
		mcp.NewTool("resolve_review",
			mcp.WithDescription("Accept or reject a queued review item. Accepting with a categoryId overrides the suggestion."),
			mcp.WithString("fileId", mcp.Description("Drive file id of the queued item"), mcp.Required()),
			mcp.WithString("action", mcp.Description("accept or reject"), mcp.Required()),
			mcp.WithString("categoryId", mcp.Description("Category to assign on accept; defaults to the suggestion")),
		),
		mcpResolveReview(engine),
	)

	s.AddTool(
		mcp.NewTool("add_rule",
			mcp.WithDescription("Add a deterministic categorization rule mapping a file attribute to a category."),
			mcp.WithString("field", mcp.Description("File attribute: name, mimeType, or owner"), mcp.Required()),
			mcp.WithString("operator", mcp.Description("contains, equals, startsWith, endsWith, or matches"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to match; contains accepts comma-separated alternatives"), mcp.Required()),
			mcp.WithString("categoryId", mcp.Description("Target category id"), mcp.Required()),
		),
		mcpAddRule(engine),
	)

	s.AddResource(
		mcp.NewResource(
			"organizer://document",
			"Organizer Document",
			mcp.WithResourceDescription("The full configuration document: categories, rules, assignments, review queue, settings"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDocument(engine),
	)

	return s
}

func mcpCategorizeFile(engine Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fileID, err := req.RequireString("fileId")
		if err != nil {
			return mcpError("fileId is required"), nil
		}
		res, err := engine.Categorize(ctx, fileID)
		if err != nil {
			return mcpError(fmt.Sprintf("categorize failed: %v", err)), nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSyncFolders(engine Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		force := req.GetBool("force", false)
		res, err := engine.SyncFolders(ctx, force)
		if err != nil {
			return mcpError(fmt.Sprintf("sync failed: %v", err)), nil
		}
		if !res.Ran {
			return mcpText("sync skipped: a recent sync is still fresh"), nil
		}
		return mcpText(fmt.Sprintf("sync complete: %d categories created or linked", res.Created)), nil
	}
}

func mcpListReviewQueue(engine Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items, err := engine.ReviewQueue(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list review queue: %v", err)), nil
		}
		if len(items) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(items)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal queue: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResolveReview(engine Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fileID, err := req.RequireString("fileId")
		if err != nil {
			return mcpError("fileId is required"), nil
		}
		action, err := req.RequireString("action")
		if err != nil {
			return mcpError("action is required"), nil
		}

		switch action {
		case "accept":
			categoryID := req.GetString("categoryId", "")
			res, err := engine.AcceptReview(ctx, fileID, categoryID)
			if err != nil {
				return mcpError(fmt.Sprintf("accept failed: %v", err)), nil
			}
			return mcpText(fmt.Sprintf("accepted: %s assigned to %s", res.FileID, res.CategoryID)), nil
		case "reject":
			res, err := engine.RejectReview(ctx, fileID)
			if err != nil {
				return mcpError(fmt.Sprintf("reject failed: %v", err)), nil
			}
			return mcpText(fmt.Sprintf("rejected: %s left uncategorized", res.FileID)), nil
		default:
			return mcpError("action must be accept or reject"), nil
		}
	}
}

func mcpAddRule(engine Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		operator, err := req.RequireString("operator")
		if err != nil {
			return mcpError("operator is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		categoryID, err := req.RequireString("categoryId")
		if err != nil {
			return mcpError("categoryId is required"), nil
		}

		rule, err := engine.AddRule(ctx, catalog.Rule{
			Field:      field,
			Operator:   operator,
			Value:      value,
			CategoryID: categoryID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add rule: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("added rule %s: %s %s %q -> %s", rule.ID, rule.Field, rule.Operator, rule.Value, rule.CategoryID)), nil
	}
}

func mcpResourceDocument(engine Engine) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		doc, err := engine.Document(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load document: %w", err)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal document: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
