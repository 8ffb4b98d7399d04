// Package core defines the shared language of the epmforge system.
//
// This package contains:
//   - Domain entities (Dimension, Rule, Settings, GenerationConfig)
//   - Generation outputs (Result, Batch)
//   - Run tracking types and the Store interface
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
