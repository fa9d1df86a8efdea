// Package cli is the sandboxrt command tree.
//
//	sandboxrt up [--session ID | --new] [--attach-only] [--env K=V] [--env-file FILE]
//	sandboxrt pause --session ID
//	sandboxrt resume --session ID
//	sandboxrt delete SESSION
//	sandboxrt ps
//	sandboxrt prune [--yes]
//
// Every command accepts --config FILE and --debug. Without --session, up
// derives the session id from the working directory, so running it twice in
// the same project reattaches to the same sandbox.
package cli
