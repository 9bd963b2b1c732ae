package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Search the ingested documents semantically. Returns matching excerpts with their source document, location, and similarity score."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithString("document_id",
		mcp.Description("Restrict the search to one document (content hash)"),
	),
)

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List the ingested documents with their content hash, kind, and extraction counts."),
)

// getStatsTool defines the get_stats MCP tool.
var getStatsTool = mcp.NewTool("get_stats",
	mcp.WithDescription("Get corpus statistics: document and chunk totals with a per-kind breakdown."),
)

// getDocumentTablesTool defines the get_document_tables MCP tool.
var getDocumentTablesTool = mcp.NewTool("get_document_tables",
	mcp.WithDescription("Get the structured tables extracted from one document."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Content hash of the document"),
	),
)
