//go:build jobsystemdebug

package jobsystem

// debugAssertions is enabled by the jobsystemdebug build tag, and makes every
// stall panic.
const debugAssertions = true
