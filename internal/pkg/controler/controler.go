// Package controler wires the agent together and owns its lifecycle: it
// starts and stops the stores, the qualification chain, the governors, the
// fetcher, the orchestrator and the control plane, and it supervises the
// orchestrator task.
package controler

// Start boots the agent.
func Start() error {
	return startAgent()
}

// Stop tears the agent down in reverse boot order. Safe to call more than
// once; later calls are no-ops.
func Stop() {
	stopAgent()
}
