// Package nvidianim adapts the Anthropic Messages API onto an
// OpenAI-compatible NVIDIA NIM endpoint.
//
// The adapter owns every translation concern:
//
//   - Message transformation: system prompts, conversation turns, images
//     and tool results into chat-completion form, and back.
//   - Structure recovery: <think> spans and Hermes-style <tool_call>
//     payloads embedded in plain model output become typed content blocks
//     again, incrementally and independent of fragment boundaries.
//   - Streaming: chat-completion chunks re-emit as the ordered Messages
//     event protocol with strict block-index discipline.
//   - Flow control: a shared sliding-window limiter with reactive cooldown,
//     plus bounded exponential retry for transient backend failures.
//
// # Adapters
//
// CreateMessageAdapter implements anthropicadapter.CreateMessageAdapter.
// The HTTP layer stays protocol-agnostic and hands every request through
// that contract together with the authenticated transport.
package nvidianim
