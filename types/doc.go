// Package types defines the shared vocabulary of contextgate: conversation
// messages, structured errors, and the token estimation interface.
package types
