// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is an MCP server exposing the paper search workflow as
// tools for LLM agent integration, with mandatory human-in-the-loop
// checkpoints (§4.10, §6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mesh-intelligence/paper-search/internal/export"
	"github.com/mesh-intelligence/paper-search/internal/session"
	"github.com/mesh-intelligence/paper-search/internal/workflow"
	"github.com/mesh-intelligence/paper-search/pkg/types"
)

// trivialResponses are rejected by decide when a substantive
// user_response is required, so an agent can't rubber-stamp a checkpoint
// without actually relaying it to a human.
var trivialResponses = map[string]bool{
	"ok": true, "okay": true, "yes": true, "y": true,
	"approve": true, "approved": true, "sure": true, "fine": true,
}

func main() {
	sessions := session.NewSessionManager()

	s := server.NewMCPServer(
		"paper-search",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	s.AddTool(searchPapersTool(), searchPapersHandler(sessions))
	s.AddTool(decideTool(), decideHandler(sessions))
	s.AddTool(getSessionTool(), getSessionHandler(sessions))
	s.AddTool(exportResultsTool(), exportResultsHandler(sessions))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintln(os.Stderr, "mcp server error:", err)
		os.Exit(1)
	}
}

var version = "dev"

const instructions = `Paper search workflow with MANDATORY human-in-the-loop checkpoints.

INTERACTION FLOW:
1. Call search_papers(query) -> returns session_id + strategy_confirmation checkpoint
2. When the response contains "user_action_required": true, you MUST present the
   user_question to the user and wait for their explicit decision (approve/edit/reject).
3. Call decide(session_id, action, user_response=<user's verbatim response>).
   user_response is REQUIRED and must contain the user's actual input.
4. The pipeline runs (searching -> dedup -> scoring -> organizing); poll with
   get_session(session_id) if it is still running.
5. When a result_review checkpoint arrives, repeat steps 2-3.
6. If approved, call export_results(session_id, format) for the final output.

CRITICAL RULES:
- Do NOT auto-approve checkpoints. Always present checkpoint data to the user.
- Trivial responses like "ok" or "yes" are rejected by decide.`

func searchPapersTool() mcp.Tool {
	return mcp.NewTool("search_papers",
		mcp.WithDescription("Search academic papers. Returns a session_id and the first checkpoint or results."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language search query")),
		mcp.WithString("domain", mcp.Description(`Research domain, e.g. "general" or "materials_science"`)),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return")),
	)
}

func searchPapersHandler(sessions *session.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cfg := types.Defaults()
		if domain := req.GetString("domain", ""); domain != "" {
			cfg.Domain = domain
		}
		if maxResults := req.GetInt("max_results", 0); maxResults > 0 {
			cfg.DefaultMaxResults = maxResults
		}

		id, err := sessions.Create(cfg, query)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		time.Sleep(100 * time.Millisecond)
		snap, err := sessions.WaitForCheckpointOrComplete(id, waitTimeout(cfg))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(snap)
	}
}

func decideTool() mcp.Tool {
	return mcp.NewTool("decide",
		mcp.WithDescription("Make a decision on a pending checkpoint in a paper search session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from search_papers")),
		mcp.WithString("action", mcp.Required(), mcp.Description(`One of "approve", "edit", "reject"`)),
		mcp.WithString("user_response", mcp.Description("The user's verbatim response; required and must be substantive")),
		mcp.WithObject("data", mcp.Description("Optional revised data (SearchStrategy for strategy, UserFeedback for results)")),
		mcp.WithString("note", mcp.Description("Optional note explaining the decision")),
	)
}

func decideHandler(sessions *session.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		action, err := req.RequireString("action")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		switch workflow.DecisionAction(action) {
		case workflow.Approve, workflow.Edit, workflow.Reject:
		default:
			return errJSON(fmt.Sprintf(`invalid action %q: must be one of "approve", "edit", "reject"`, action))
		}

		userResponse := req.GetString("user_response", "")
		if strings.TrimSpace(strings.ToLower(userResponse)) == "" || trivialResponses[strings.TrimSpace(strings.ToLower(userResponse))] {
			return errJSON("user_response is required and must be substantive; present the checkpoint's " +
				"user_question to the user and relay their actual reply, not a bare 'ok' or 'yes'")
		}

		if _, err := sessions.Get(sessionID); err != nil {
			return errJSON(err.Error())
		}

		decision := workflow.Decision{
			Action: workflow.DecisionAction(action),
			Note:   req.GetString("note", ""),
		}
		if raw := req.GetArguments()["data"]; raw != nil {
			if m, ok := raw.(map[string]any); ok {
				decision.RevisedData = m
			}
		}

		snap, err := sessions.Decide(sessionID, decision, sessions.DecideTimeout(sessionID))
		if err != nil {
			return errJSON(err.Error())
		}
		return jsonResult(snap)
	}
}

func getSessionTool() mcp.Tool {
	return mcp.NewTool("get_session",
		mcp.WithDescription("Get current state of a search session: phase, checkpoint, or final result."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID to inspect")),
	)
}

func getSessionHandler(sessions *session.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if _, err := sessions.Get(sessionID); err != nil {
			return errJSON(err.Error())
		}
		snap, err := sessions.WaitForCheckpointOrComplete(sessionID, 0)
		if err != nil {
			return errJSON(err.Error())
		}
		return jsonResult(snap)
	}
}

func exportResultsTool() mcp.Tool {
	return mcp.NewTool("export_results",
		mcp.WithDescription("Export a completed search session's results."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from a completed search")),
		mcp.WithString("format", mcp.Description(`One of "json", "bibtex", "markdown", "csl" (default "markdown")`)),
	)
}

func exportResultsHandler(sessions *session.SessionManager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format := req.GetString("format", "markdown")

		result, err := sessions.Result(sessionID)
		if err != nil {
			return errJSON(err.Error())
		}

		switch format {
		case "json":
			out, err := export.JSON(*result)
			if err != nil {
				return errJSON(err.Error())
			}
			return mcp.NewToolResultText(out), nil
		case "bibtex":
			return mcp.NewToolResultText(export.BibTeX(*result)), nil
		case "markdown":
			return mcp.NewToolResultText(export.Markdown(*result)), nil
		case "csl":
			out, err := export.CSL(*result)
			if err != nil {
				return errJSON(err.Error())
			}
			return mcp.NewToolResultText(out), nil
		default:
			return errJSON(fmt.Sprintf(`unknown format %q: must be one of "json", "bibtex", "markdown", "csl"`, format))
		}
	}
}

func waitTimeout(cfg types.AppConfig) time.Duration {
	seconds := cfg.SessionDecideTimeoutS
	if seconds <= 0 {
		seconds = 15.0
	}
	return time.Duration(seconds * float64(time.Second))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errJSON(msg string) (*mcp.CallToolResult, error) {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return mcp.NewToolResultText(string(b)), nil
}
