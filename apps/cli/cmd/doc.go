// Package cmd implements the httphelper CLI commands using Cobra.
//
// Available commands:
//   - send: Send one request and print the response
//   - bench: Send a request repeatedly and summarise latencies
//   - validate: Check request files without sending them
//   - cookies: Inspect and clear the persistent cookie jar
//   - import: Convert curl command lines into request files
//   - init: Create a config file and an example request file
//   - version: Show httphelper version information
//
// Settings come from a .httphelper.yaml/.json config file, HTTPHELPER_*
// environment variables and flags, in increasing order of precedence.
package cmd
