// Package env loads dotenv files and expands ${VAR} references.
//
// It provides functionality for:
//   - Loading environment files (.env, .env.local, etc.)
//   - Exporting loaded values to the process environment
//   - ${VAR} and ${VAR:-default} expansion with a variables overlay
//   - Reading prefixed variables from the process environment
package env
