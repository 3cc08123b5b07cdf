// Package analysis provides stateless content analyzers for conversation
// messages: entity extraction, code block detection, URL extraction, and
// custom rule matching, combined into a single ContentAnalysis per message.
package analysis
