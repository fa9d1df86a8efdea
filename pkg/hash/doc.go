// Package hash provides path hashing utilities.
//
// Hashes give stable, short identifiers derived from inputs that are
// themselves long or awkward to embed in names:
//   - Default session ids (first 8 chars of MD5 of the working directory)
//   - Runtime image tags (MD5 of base image, extra deps and platform)
//
// Example usage:
//
//	sid := hash.PathHash("/workspace/myproject")
//	// Returns: "a1b2c3d4"
//
//	tag := hash.Parts(baseImage, extraDeps, platform)
package hash
