// Package statsview serves runtime statistics over HTTP when the binary is
// built with the statsview build tag:
//
//	go build -tags statsview ./cmd/desktop
//
// After launch, graphs are viewable at localhost:18066/debug/statsview and
// the standard pprof pages at localhost:18066/debug/pprof/. Without the tag
// Launch only reports that the server is unavailable.
package statsview

// Address is where the statistics server listens.
const Address = "localhost:18066"

const url = "/debug/statsview"
