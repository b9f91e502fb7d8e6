package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// initMCPServer initializes the MCP server with all tools
func (b *Bridge) initMCPServer() {
	b.mcpServer = server.NewMCPServer(
		"x-ferris-say",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`x-ferris-say - MCP Interface

Direct-message chat over a WebSocket relay. The bridge keeps a background
connection to the relay and caches what it sees.

AVAILABLE TOOLS:
- send_message: Send a text message to another user
- online_users: List users currently connected to the relay
- recent_messages: Show recently received messages
- status: Show whether the relay connection is up
- reconnect: Drop and re-establish the relay connection
- save_settings: Persist username and server address for the next start`),
	)

	// Register all tools
	b.registerTools()
}

// registerTools registers all MCP tools
func (b *Bridge) registerTools() {
	b.mcpServer.AddTool(mcp.Tool{
		Name:        "send_message",
		Description: "Send a text message to another user on the relay",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Username of the recipient",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Message text to send",
				},
			},
			Required: []string{"to", "text"},
		},
	}, b.handleSendMessage)

	b.mcpServer.AddTool(mcp.Tool{
		Name:        "online_users",
		Description: "List users currently connected to the relay",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, b.handleOnlineUsers)

	b.mcpServer.AddTool(mcp.Tool{
		Name:        "recent_messages",
		Description: "Show recently received messages, oldest first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, b.handleRecentMessages)

	b.mcpServer.AddTool(mcp.Tool{
		Name:        "status",
		Description: "Show whether the relay connection is currently up",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, b.handleStatus)

	b.mcpServer.AddTool(mcp.Tool{
		Name:        "reconnect",
		Description: "Drop the current relay connection and establish a new one",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, b.handleReconnect)

	b.mcpServer.AddTool(mcp.Tool{
		Name:        "save_settings",
		Description: "Persist username and relay server address; applied on next start",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": map[string]interface{}{
					"type":        "string",
					"description": "Identity to connect with",
				},
				"server": map[string]interface{}{
					"type":        "string",
					"description": "Relay server address, host:port",
				},
			},
			Required: []string{"username", "server"},
		},
	}, b.handleSaveSettings)
}

func (b *Bridge) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	to, _ := args["to"].(string)
	text, _ := args["text"].(string)

	result, err := b.sendMessage(to, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(result), nil
}

func (b *Bridge) handleOnlineUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := b.onlineUsers()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(result), nil
}

func (b *Bridge) handleRecentMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(b.recentMessages()), nil
}

func (b *Bridge) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("Relay connection: " + b.status()), nil
}

func (b *Bridge) handleReconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := b.reconnect()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(result), nil
}

func (b *Bridge) handleSaveSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	username, _ := args["username"].(string)
	serverAddr, _ := args["server"].(string)

	result, err := b.saveSettings(username, serverAddr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(result), nil
}
