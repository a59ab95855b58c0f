// Package pipeline provides the client side of an image-processing pipeline editor.
//
// A Pipeline keeps an ordered list of steps, each one an operation of the server catalog with its parameters, and
// synchronises it with the processing endpoint. User intents are expressed as commands. Each command is applied to
// the State by a reducer that returns a list of effects (render, status change, processing, artifact release) which
// the Pipeline then executes.
//
// Only one processing request is in flight at a time. Every request carries a token taken from the state version at
// submission: a response that comes back after the steps or the image changed is discarded, and in live mode a fresh
// request is issued.
//
// The status shown to the user follows a small state machine. Transient states (done, error, disabled) revert on
// their own after a delay, and any explicit status change cancels a pending revert.
package pipeline
