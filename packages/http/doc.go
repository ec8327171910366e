// Package http provides the request lifecycle engine of httphelper.
//
// It builds outbound requests and parses raw responses:
//   - URL, query parameter, cookie and header assembly
//   - Dispatch through a Conn (the connection handle collaborator)
//   - Raw response framing (interim 100 Continue blocks, header block, body)
//   - Set-Cookie extraction and charset detection of response bodies
//   - Automatic redirect following with a hop limit
package http
