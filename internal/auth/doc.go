// Package auth provides agent token issuance and verification. Agents
// receive an HMAC-signed JWT at registration and present it on every
// subsequent request; the raw API key is bcrypt-hashed before storage and
// can be exchanged for a fresh token.
package auth
