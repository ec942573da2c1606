// Package models defines the core domain models for the billing chat core.
//
// # Models
//
//   - UserProfile: The authenticated user's identity and account reference
//   - Bill: One billing period's record, immutable once issued
//   - LineItem: Individual charge on a bill
//   - Message: One chat message (user or assistant)
//   - ConversationContext: Ordered, append-only message history for a session
//
// # Design Principles
//
//  1. **Single-user scope**: every model that can be looked up carries the
//     owning user ID; nothing is ever shared across users
//  2. **Immutability**: bills and messages never change after creation;
//     conversation history grows only by appending
//  3. **Avoid circular references**: relationships use ID strings, not pointers
package models
