// Package logging configures structured slog logging for casesearch.
//
// Logs are JSON lines written to a size-rotated file under
// ~/.casesearch/logs/ and, unless the process serves MCP over stdio,
// mirrored to stderr.
package logging
