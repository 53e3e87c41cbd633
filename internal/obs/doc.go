// Package obs wires the process-wide observability pieces: logrus output
// (optionally rotated to a file) and the Prometheus collectors used by the
// chat pipeline.
package obs
