package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/syncer"
)

// NewMCPServer creates an MCP server with the wordsync tools and resources registered.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"wordsync",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("wordsync keeps a vocabulary notebook and mirrors it into Anki as cloze notes."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("find_note",
			mcp.WithDescription("Find the Anki note id for a word captured at the given timestamp. Returns 0 when there is none."),
			mcp.WithNumber("date", mcp.Description("Capture timestamp in milliseconds since the epoch"), mcp.Required()),
		),
		mcpFindNote(deps),
	)

	s.AddTool(
		mcp.NewTool("update_note",
			mcp.WithDescription("Rewrite the word fields of an existing Anki note."),
			mcp.WithNumber("note_id", mcp.Description("Anki note id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Headword"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Sentence the word was captured in")),
			mcp.WithString("translation", mcp.Description("Translation of the context")),
			mcp.WithString("url", mcp.Description("Source page")),
			mcp.WithNumber("date", mcp.Description("Capture timestamp in milliseconds"), mcp.Required()),
			mcp.WithString("note", mcp.Description("Free-form note shown as the card hint")),
		),
		mcpUpdateNote(deps),
	)

	s.AddTool(
		mcp.NewTool("sync_words",
			mcp.WithDescription("Create Anki notes for captured words that have none yet."),
			mcp.WithString("words", mcp.Description("JSON array of words {text, context, trans, url, date, note}")),
			mcp.WithBoolean("force", mcp.Description("Sync the whole notebook instead of the given words")),
		),
		mcpSyncWords(deps),
	)

	s.AddTool(
		mcp.NewTool("lookup_word",
			mcp.WithDescription("Look up pronunciations and definitions for a word."),
			mcp.WithString("word", mcp.Description("Headword"), mcp.Required()),
		),
		mcpLookupWord(deps),
	)

	s.AddTool(
		mcp.NewTool("capture_word",
			mcp.WithDescription("Add a word to the local notebook."),
			mcp.WithString("text", mcp.Description("Headword"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Sentence the word was seen in")),
			mcp.WithString("translation", mcp.Description("Translation of the context")),
			mcp.WithString("url", mcp.Description("Source page")),
			mcp.WithString("note", mcp.Description("Free-form note")),
		),
		mcpCaptureWord(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"notebook://recent",
			"Recent Words",
			mcp.WithResourceDescription("Last 20 captured words"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentWords(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"notebook://sync-runs",
			"Sync Runs",
			mcp.WithResourceDescription("Outcome of the last 10 sync passes"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSyncRuns(deps),
	)

	return s
}

func mcpFindNote(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date, err := req.RequireFloat("date")
		if err != nil {
			return mcpError("date is required"), nil
		}

		id, _ := deps.Syncer.FindNote(ctx, int64(date))
		return mcpText(fmt.Sprintf("%d", id)), nil
	}
}

func mcpUpdateNote(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		noteID, err := req.RequireFloat("note_id")
		if err != nil || noteID <= 0 {
			return mcpError("note_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		date, err := req.RequireFloat("date")
		if err != nil {
			return mcpError("date is required"), nil
		}

		w := notebook.Word{
			Text:        text,
			Context:     req.GetString("context", ""),
			Translation: req.GetString("translation", ""),
			URL:         req.GetString("url", ""),
			Date:        int64(date),
			Note:        req.GetString("note", ""),
		}
		if err := deps.Syncer.UpdateWord(ctx, int64(noteID), w); err != nil {
			return mcpError(fmt.Sprintf("update failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Updated note %d", int64(noteID))), nil
	}
}

func mcpSyncWords(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		force := req.GetBool("force", false)

		var words []notebook.Word
		if raw := req.GetString("words", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &words); err != nil {
				return mcpError(fmt.Sprintf("invalid words JSON: %v", err)), nil
			}
		}
		if len(words) == 0 && !force {
			return mcpError("either words or force is required"), nil
		}

		report, err := deps.Syncer.Sync(ctx, words, syncer.Options{ForceReload: force})
		if err != nil && !errors.Is(err, syncer.ErrAddFailed) {
			return mcpError(fmt.Sprintf("sync failed: %v", err)), nil
		}

		b, mErr := json.Marshal(report)
		if mErr != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", mErr)), nil
		}
		if err != nil {
			res := mcpText(string(b) + "\n" + err.Error())
			res.IsError = true
			return res, nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpLookupWord(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		word, err := req.RequireString("word")
		if err != nil {
			return mcpError("word is required"), nil
		}

		res, err := deps.Enricher.Lookup(ctx, word)
		if errors.Is(err, enrichment.ErrUnavailable) {
			return mcpError(fmt.Sprintf("no dictionary entry for %q", word)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCaptureWord(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		w := notebook.Word{
			Text:        text,
			Context:     req.GetString("context", ""),
			Translation: req.GetString("translation", ""),
			URL:         req.GetString("url", ""),
			Date:        time.Now().UnixMilli(),
			Note:        req.GetString("note", ""),
		}
		id, err := deps.Words.SaveWord(ctx, w)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Captured word %s", id)), nil
	}
}

func mcpResourceRecentWords(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		words, err := deps.Words.ListWords(ctx, 20, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list words: %w", err)
		}
		if words == nil {
			words = []notebook.Word{}
		}
		return jsonResource(req.Params.URI, words)
	}
}

func mcpResourceSyncRuns(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := deps.Words.RecentSyncRuns(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to list sync runs: %w", err)
		}
		if runs == nil {
			runs = []notebook.SyncRun{}
		}
		return jsonResource(req.Params.URI, runs)
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
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
