// Package types defines the Anthropic Messages API wire types the proxy
// serves, written by hand rather than generated or imported from an SDK.
//
// Rationale:
//
//  1. SERVER-SIDE PERSPECTIVE: SDK types model the CLIENT side of the
//     protocol, with request-builder parameter wrappers and decode-only
//     response unions. This proxy sits on the other end: it decodes
//     requests and encodes responses, so it needs plain structs that work
//     symmetrically with encoding/json in both directions.
//
//  2. FIELD PATTERNS: optional scalars are pointers (*string, *int,
//     *float64) so absent and present-but-zero stay distinguishable on the
//     wire; polymorphic members (message content, system, tool_result
//     content) are json.RawMessage with decode helpers, since the protocol
//     allows both string and block-array forms for each of them.
//
//  3. DEPENDENCIES: the surface is small and closed, so standard
//     encoding/json is sufficient; no generator toolchain or SDK module is
//     pulled in for a protocol the proxy must control byte for byte.
//
// The shapes follow the public Messages API: content blocks are a tagged
// union discriminated by "type", streaming uses named SSE events, and
// errors use the {"type":"error","error":{...}} envelope.
package types
