// Package adaptive implements content-aware context reduction. Three
// strategies (hierarchical layering, incremental rolling summaries, and
// score-based selection) run under an Orchestrator that bounds execution
// time, validates output quality, and falls back to plain truncation so
// reduction always completes.
package adaptive
