//go:build !jobsystemdebug

package jobsystem

// debugAssertions is enabled by the jobsystemdebug build tag.
const debugAssertions = false
