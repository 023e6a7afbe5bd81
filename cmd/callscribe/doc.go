// Command callscribe is the CLI and daemon entry point for the call
// transcription queue.
package main
