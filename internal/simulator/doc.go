// Package simulator is the simulator-target backend.
//
// Generate emits a single-process harness program and its aggregation file.
// Both embed the plan shared with the Envoy backend, so a query compiled
// for either target computes the same result for the same hop
// observations.
//
// The package also runs scenarios in process. Simulator.Run replays a
// Scenario through the propagation protocol or the centralized matcher,
// and with checking enabled it runs both and fails when they disagree:
//
//	sim := simulator.New(cfg, simulator.WithCheck(true))
//	report, err := sim.Run(model, scenario)
//
// Golden snapshots of reports live under testdata/golden; regenerate them
// with:
//
//	go test ./internal/simulator -update
package simulator
