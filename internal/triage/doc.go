// Package triage provides the business boundary for ticket triage.
// It defines the Service (sequential directory run, output lifecycle),
// Engine (single model call per ticket), Provider interface (model backends),
// Store interface (per-run results), and the parsed Report.
package triage
