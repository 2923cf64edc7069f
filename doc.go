// Package quill is a personal note-taking web client backed by a hosted
// SurrealDB instance.
//
// The server owns the authenticated session and an in-memory projection of
// the signed-in user's notes, serves a JSON and websocket API to the browser
// UI, and is itself a client of SurrealDB for storage, authentication, and
// the real-time change stream.
//
// # Features
//
//   - Email/password sign-up and sign-in via SurrealDB record access
//   - Note CRUD with pin, archive, and soft-delete flags driving two list
//     views (active and archived)
//   - Real-time reconciliation: changes made from other sessions of the
//     same user arrive over a filtered live query and are merged into the
//     local list and pushed to the UI over a websocket
//   - Write-after-confirm mutations: nothing changes locally until the
//     store confirms, and every confirmed write reloads the full snapshot
//   - Demo mode with an in-memory store and authenticator, no backend
//     required
//
// # Architecture Overview
//
//   - Store Contract: [github.com/quillnotes/quill/pkg/store.Store]
//     abstracts the remote note table and its change stream, with a
//     SurrealDB implementation and an in-process one
//   - Reconciliation Core: [github.com/quillnotes/quill/pkg/notebook.Notebook]
//     folds snapshot reloads and remote change events through a single
//     apply loop so state updates never interleave
//   - Session Lifecycle: [github.com/quillnotes/quill/pkg/session.Provider]
//     announces sign-in and sign-out transitions; the application builds a
//     notebook on sign-in and tears it down on sign-out
//   - Command Pattern: [github.com/quillnotes/quill/pkg/quill.Command]
//     organizes application operations with their specific configurations
//
// # Data Model
//
// A single entity, the note, with typed identifiers that marshal to plain
// strings in JSON and to SurrealDB RecordIDs in the binary protocol. See
// [github.com/quillnotes/quill/pkg/models].
//
// # Getting Started
//
// For command-line usage and configuration, see
// [github.com/quillnotes/quill/pkg/quill]. The
// [github.com/quillnotes/quill/pkg/client] package provides a Go HTTP
// client for programmatic access to the API; the end-to-end handler tests
// drive the server through it.
package quill
