// Package model provides the data structures shared by the pipeline package and its collaborators.
// It defines the operation catalog served by the processing server, the steps of a pipeline,
// the artifacts returned by the server, and the read-only view handed to renderers.
package model
