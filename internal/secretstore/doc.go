// Package secretstore provides storage abstractions for the platform client
// secret.
//
// Supports three backends with different security and deployment tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Env: Read-only environment variable access (requires external secret management)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// The env backend is read-only, so `secret set` requires file or keyring
// storage.
package secretstore
