// Package cli is the interactive vaultguard terminal client.
//
// App wires configuration, the local metadata database, the API client and
// the controllers, and renders their navigation and notifications as text.
// The REPL is started with App.Run, which blocks until the user exits.
//
// Typical flow for a new account:
//
//	signup -> verify <code> -> setpassword -> login -> addlogin / list
//
// A restarted client resumes a valid server session in the locked state;
// 'unlock' re-derives the vault key from the master password.
package cli
